package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "fintrack/internal/log"
)

func TestHandlerAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(&buf, nil)})
	m := NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" })

	var seen string
	var ctxLogger *applog.Logger
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		ctxLogger = applog.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	if !strings.HasPrefix(seen, "req_") || len(seen) != 20 {
		t.Errorf("unexpected request id %q", seen)
	}
	if got := rec.Header().Get(HeaderRequestID); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
	if ctxLogger == nil || ctxLogger.Component() != applog.ComponentHTTP {
		t.Error("request logger not attached to context")
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", "status_code=418", "client_ip=10.0.0.1", "request_id=" + seen, "component=trace", "duration_human="} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestHandlerKeepsValidIncomingID(t *testing.T) {
	tests := []struct {
		header string
		keep   bool
	}{
		{"abc-123", true},
		{"", false},
		{"bad id with spaces", false},
		{strings.Repeat("x", 65), false},
	}
	m := NewMiddleware(applog.Discard(), nil)
	for _, tt := range tests {
		var seen string
		h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, tt.header)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if (seen == tt.header) != tt.keep {
			t.Errorf("header %q: got id %q, keep=%v", tt.header, seen, tt.keep)
		}
	}
}

func TestMetrics(t *testing.T) {
	m := NewMiddleware(applog.Discard(), nil)
	codes := []int{200, 500, 404, 503}
	for _, code := range codes {
		h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	got := m.Metrics()
	if got.TotalRequests != 4 || got.ServerErrors != 2 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestRequestIDMissing(t *testing.T) {
	if id := RequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Errorf("RequestID = %q, want empty", id)
	}
}
