package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"financeai/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	m := NewMiddleware(nil, log.Discard())

	var seen string
	var scoped *log.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		scoped = log.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if !strings.HasPrefix(seen, "req_") {
			t.Errorf("request id = %q", seen)
		}
		if rr.Header().Get(RequestIDHeader) != seen {
			t.Errorf("response header = %q, want %q", rr.Header().Get(RequestIDHeader), seen)
		}
		if scoped == nil || scoped.Component() != log.ComponentHTTP {
			t.Errorf("request logger not attached")
		}
	})

	t.Run("propagated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		r.Header.Set(RequestIDHeader, "abc-123")
		h.ServeHTTP(rr, r)
		if seen != "abc-123" {
			t.Errorf("request id = %q, want abc-123", seen)
		}
	})

	t.Run("invalid incoming id replaced", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		r.Header.Set(RequestIDHeader, "bad id\twith spaces")
		h.ServeHTTP(rr, r)
		if !strings.HasPrefix(seen, "req_") {
			t.Errorf("request id = %q", seen)
		}
	})

	if got := m.GetMetrics().TotalRequests; got != 3 {
		t.Errorf("TotalRequests = %d, want 3", got)
	}
}
