package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware_PropagatesIncomingRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")
	t.Cleanup(func() { Setup("", "") })

	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seen != "trace-123" {
		t.Errorf("trace id in context = %q", seen)
	}
	if got := w.Header().Get("X-Request-ID"); got != "trace-123" {
		t.Errorf("X-Request-ID = %q", got)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("access log is not JSON: %v (%s)", err, buf.String())
	}
	if line["trace_id"] != "trace-123" || line["status"] != float64(http.StatusTeapot) {
		t.Errorf("access log = %v", line)
	}
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	SetupWriter(&bytes.Buffer{}, "error", "text")
	t.Cleanup(func() { Setup("", "") })

	h := Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a UUID", got)
	}
}
