// Package httpapi exposes the gateway's health, policy administration and
// diagnostic endpoints.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/origin-gateway/internal/audit"
	"github.com/R3E-Network/origin-gateway/internal/config"
	"github.com/R3E-Network/origin-gateway/internal/errors"
	"github.com/R3E-Network/origin-gateway/internal/logging"
	"github.com/R3E-Network/origin-gateway/internal/metrics"
	"github.com/R3E-Network/origin-gateway/internal/middleware"
	"github.com/R3E-Network/origin-gateway/internal/originpolicy"
)

// Options wires the handler's collaborators.
type Options struct {
	Provider         *originpolicy.Provider
	Audit            *audit.Log
	Hub              *Hub
	Logger           *logging.Logger
	Users            []config.AdminUser
	JWTSecret        []byte
	TokenTTL         time.Duration
	AuthEnabled      bool
	AllowCredentials bool
	Version          string
}

// Handler serves the gateway's own endpoints. CORS and rate limiting wrap
// it from outside; authentication for the /api subtree is applied here.
type Handler struct {
	provider         *originpolicy.Provider
	audit            *audit.Log
	hub              *Hub
	log              *logging.Logger
	users            []config.AdminUser
	secret           []byte
	tokenTTL         time.Duration
	authEnabled      bool
	allowCredentials bool
	version          string
	started          time.Time
}

// NewHandler builds the routed HTTP handler.
func NewHandler(opts Options) http.Handler {
	h := &Handler{
		provider:         opts.Provider,
		audit:            opts.Audit,
		hub:              opts.Hub,
		log:              opts.Logger,
		users:            opts.Users,
		secret:           opts.JWTSecret,
		tokenTTL:         opts.TokenTTL,
		authEnabled:      opts.AuthEnabled,
		allowCredentials: opts.AllowCredentials,
		version:          opts.Version,
		started:          time.Now().UTC(),
	}
	if h.version == "" {
		h.version = "dev"
	}
	if h.tokenTTL == 0 {
		h.tokenTTL = 24 * time.Hour
	}

	r := mux.NewRouter()
	r.HandleFunc("/", h.index).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	if h.hub != nil {
		r.HandleFunc("/ws", h.serveWS).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/policy", h.policy).Methods(http.MethodGet)
	api.HandleFunc("/policy/check", h.policyCheck).Methods(http.MethodGet)
	api.Handle("/policy/reload", h.adminOnly(http.HandlerFunc(h.policyReload))).Methods(http.MethodPost)
	api.Handle("/audit", h.adminOnly(http.HandlerFunc(h.auditList))).Methods(http.MethodGet)
	api.Handle("/system", h.adminOnly(http.HandlerFunc(h.systemInfo))).Methods(http.MethodGet)

	if h.authEnabled {
		authMw := middleware.NewAuthMiddleware(h.secret, h.log, []string{"/api/auth/login"})
		api.Use(authMw.Handler)
	}

	return r
}

// adminOnly guards mutating and sensitive endpoints. With authentication
// disabled the guard is a no-op, matching the rest of the API surface.
func (h *Handler) adminOnly(next http.Handler) http.Handler {
	if !h.authEnabled {
		return next
	}
	return middleware.RequireRole("admin")(next)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "origin-gateway",
		"version": h.version,
		"endpoints": []string{
			"/health",
			"/metrics",
			"/ws",
			"/api/auth/login",
			"/api/policy",
			"/api/policy/check",
			"/api/policy/reload",
			"/api/audit",
			"/api/system",
		},
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	snapshot := h.provider.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"service":         "origin-gateway",
		"version":         h.version,
		"allowed_origins": len(snapshot.List),
		"policy_source":   snapshot.Source,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeServiceError(w, errors.BadRequest(err.Error()))
		return
	}
	if payload.Username == "" || payload.Password == "" {
		writeServiceError(w, errors.BadRequest("username and password are required"))
		return
	}

	user, ok := h.findUser(payload.Username)
	if !ok || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)) != nil {
		h.log.LogSecurityEvent(r.Context(), "failed_login", map[string]interface{}{
			"username": payload.Username,
		})
		writeServiceError(w, errors.Unauthorized("invalid credentials"))
		return
	}

	token, err := middleware.GenerateToken(h.secret, user.Username, user.Role, h.tokenTTL)
	if err != nil {
		writeServiceError(w, errors.Internal("failed to issue token", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"role":       user.Role,
		"expires_at": time.Now().UTC().Add(h.tokenTTL).Format(time.RFC3339),
	})
}

func (h *Handler) findUser(username string) (config.AdminUser, bool) {
	for _, user := range h.users {
		if user.Username == username {
			return user, true
		}
	}
	return config.AdminUser{}, false
}

func (h *Handler) policy(w http.ResponseWriter, r *http.Request) {
	snapshot := h.provider.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"origins":           snapshot.List,
		"count":             len(snapshot.List),
		"source":            snapshot.Source,
		"loaded_at":         snapshot.LoadedAt.Format(time.RFC3339),
		"allow_credentials": h.allowCredentials,
	})
}

// policyCheck answers "would this origin be allowed right now", without
// sending a real cross-origin request.
func (h *Handler) policyCheck(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	if origin == "" {
		writeServiceError(w, errors.BadRequest("origin query parameter is required"))
		return
	}

	decision := originpolicy.Evaluate(h.provider.Current(), origin)
	body := map[string]interface{}{
		"origin":  origin,
		"allowed": decision.Allowed,
	}
	if decision.Reason != "" {
		body["reason"] = decision.Reason
	}
	if headers := decision.Headers(h.allowCredentials); len(headers) > 0 {
		body["headers"] = headers
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) policyReload(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.provider.Reload(r.Context())
	if err != nil {
		writeServiceError(w, errors.Internal("allowlist reload failed", err).
			WithDetails("source", snapshot.Source))
		return
	}

	h.log.WithContext(r.Context()).WithField("count", len(snapshot.List)).Info("allowlist reloaded via api")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"origins":   snapshot.List,
		"count":     len(snapshot.List),
		"source":    snapshot.Source,
		"loaded_at": snapshot.LoadedAt.Format(time.RFC3339),
	})
}

func (h *Handler) auditList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeServiceError(w, errors.BadRequest("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	entries := h.audit.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":       entries,
		"count":         len(entries),
		"sink_failures": h.audit.SinkFailures(),
	})
}

// writeJSON renders v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError renders a ServiceError as the JSON error envelope.
func writeServiceError(w http.ResponseWriter, serviceErr *errors.ServiceError) {
	body := map[string]interface{}{
		"error": serviceErr.Message,
		"code":  serviceErr.Code,
	}
	if len(serviceErr.Details) > 0 {
		body["details"] = serviceErr.Details
	}
	writeJSON(w, serviceErr.HTTPStatus, body)
}

// decodeJSON parses the request body strictly, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
