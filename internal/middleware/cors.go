// Package middleware provides the HTTP middleware chain for the origin
// gateway: CORS enforcement, tracing, rate limiting and authentication.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/R3E-Network/origin-gateway/internal/errors"
	"github.com/R3E-Network/origin-gateway/internal/logging"
	"github.com/R3E-Network/origin-gateway/internal/metrics"
	"github.com/R3E-Network/origin-gateway/internal/originpolicy"
)

// DecisionRecorder receives every evaluated cross-origin decision, for
// audit trails and live streams. Implementations must not block.
type DecisionRecorder interface {
	RecordDecision(r *http.Request, d originpolicy.Decision)
}

// CORSOptions carries the static parts of the CORS response, everything
// except the per-request origin echo.
type CORSOptions struct {
	AllowCredentials bool
	AllowedMethods   string
	AllowedHeaders   string
	ExposedHeaders   string
	MaxAge           int
}

// CORSMiddleware enforces the origin allowlist on every route, the
// health and metrics endpoints included.
type CORSMiddleware struct {
	provider *originpolicy.Provider
	opts     CORSOptions
	maxAge   string
	logger   *logging.Logger
	recorder DecisionRecorder
}

// NewCORSMiddleware creates the CORS middleware. recorder may be nil.
func NewCORSMiddleware(provider *originpolicy.Provider, opts CORSOptions, logger *logging.Logger, recorder DecisionRecorder) *CORSMiddleware {
	return &CORSMiddleware{
		provider: provider,
		opts:     opts,
		maxAge:   strconv.Itoa(opts.MaxAge),
		logger:   logger,
		recorder: recorder,
	}
}

// Handler evaluates the request origin against the live allowlist.
// Allowed origins get their exact value echoed back; denied preflights
// are answered 403; denied simple requests pass through without CORS
// headers, leaving the block to the browser.
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		decision := originpolicy.Evaluate(m.provider.Current(), origin)
		preflight := r.Method == http.MethodOptions && origin != ""

		if origin != "" {
			// Responses differ per origin, so caches must key on it.
			w.Header().Set("Vary", "Origin")
			metrics.RecordDecision(decision.Outcome())
			if m.recorder != nil {
				m.recorder.RecordDecision(r, decision)
			}
		}

		for name, value := range decision.Headers(m.opts.AllowCredentials) {
			w.Header().Set(name, value)
		}

		if !decision.Allowed {
			m.logger.LogSecurityEvent(r.Context(), "origin_denied", map[string]interface{}{
				"origin": origin,
				"method": r.Method,
				"path":   r.URL.Path,
				"reason": decision.Reason,
			})
			if preflight {
				// A denied preflight has no legitimate follow-up request.
				metrics.RecordPreflight("denied")
				writeServiceError(w, errors.OriginDenied(origin))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if preflight {
			w.Header().Set("Access-Control-Allow-Methods", m.opts.AllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", m.opts.AllowedHeaders)
			w.Header().Set("Access-Control-Max-Age", m.maxAge)
			metrics.RecordPreflight("allowed")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if decision.Origin != "" && m.opts.ExposedHeaders != "" {
			w.Header().Set("Access-Control-Expose-Headers", m.opts.ExposedHeaders)
		}

		next.ServeHTTP(w, r)
	})
}
