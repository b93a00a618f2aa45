package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/R3E-Network/origin-gateway/internal/errors"
)

// writeServiceError renders a ServiceError as the gateway's JSON error
// envelope.
func writeServiceError(w http.ResponseWriter, serviceErr *errors.ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(serviceErr.HTTPStatus)

	body := map[string]interface{}{
		"error": serviceErr.Message,
		"code":  serviceErr.Code,
	}
	if len(serviceErr.Details) > 0 {
		body["details"] = serviceErr.Details
	}
	_ = json.NewEncoder(w).Encode(body)
}
