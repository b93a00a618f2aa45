package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/R3E-Network/origin-gateway/internal/logging"
)

func TestTracingGeneratesTraceID(t *testing.T) {
	mw := NewTracingMiddleware(logging.New("test", "error", "json"))

	var inContext string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inContext = logging.GetTraceID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if inContext == "" {
		t.Error("no trace ID in request context")
	}
	if got := rec.Header().Get("X-Trace-ID"); got != inContext {
		t.Errorf("X-Trace-ID header = %q, want %q", got, inContext)
	}
}

func TestTracingPreservesIncomingTraceID(t *testing.T) {
	mw := NewTracingMiddleware(logging.New("test", "error", "json"))

	var inContext string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inContext = logging.GetTraceID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Trace-ID", "upstream-trace")
	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, req)

	if inContext != "upstream-trace" {
		t.Errorf("trace ID in context = %q, want %q", inContext, "upstream-trace")
	}
	if got := rec.Header().Get("X-Trace-ID"); got != "upstream-trace" {
		t.Errorf("X-Trace-ID header = %q, want %q", got, "upstream-trace")
	}
}

func TestTracingPreservesStatus(t *testing.T) {
	mw := NewTracingMiddleware(logging.New("test", "error", "json"))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})

	rec := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusGone)
	}
}

func TestResponseWriterIgnoresDuplicateWriteHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	w.WriteHeader(http.StatusNotFound)
	w.WriteHeader(http.StatusInternalServerError)

	if w.status != http.StatusNotFound {
		t.Errorf("status = %d, want first write %d", w.status, http.StatusNotFound)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("recorded status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
