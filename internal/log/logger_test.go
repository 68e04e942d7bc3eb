package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentLedger, Output: &buf})
	l.Info("loaded", FieldCount, 3)
	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "count=3") {
		t.Fatalf("unexpected output %q", out)
	}

	buf.Reset()
	l.WithComponent(ComponentAdvice).Warn("fallback")
	if !strings.Contains(buf.String(), "component=advice") {
		t.Fatalf("component not replaced: %q", buf.String())
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, Component: ComponentLedger}))
	sl.LogTransactionCreated(context.Background(), "id-1", "expense", "1200", "Еда")
	sl.LogError(context.Background(), "persist failed", errors.New("disk full"), OpPersist, nil)
	out := buf.String()
	for _, want := range []string{"transaction_id=id-1", "operation=create", "error=\"disk full\"", "operation=persist"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestContextLogger(t *testing.T) {
	base := New(Config{Output: &bytes.Buffer{}, Component: ComponentHTTP})
	ctx := NewContext(context.Background(), base.With(FieldRequestID, "req_1"))
	if got := FromContext(ctx); got.Component() != ComponentHTTP {
		t.Fatalf("logger not propagated: %+v", got)
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("fallback logger should be tagged unknown")
	}
}
