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
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponentIsLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: "app", Handler: slog.NewTextHandler(&buf, nil)})

	logger.WithComponent(ComponentGuest).Info("seeded", FieldKey, "guest_categories")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=guest_store") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestFromContext(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("fallback component = %q", l.Component())
	}
	want := Discard().WithComponent(ComponentHTTP)
	if got := FromContext(WithLogger(context.Background(), want)); got != want {
		t.Error("logger not carried by context")
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))
	sl.LogError(context.Background(), "write failed", errors.New("disk full"), ComponentStorage, OpCreate, nil)

	out := buf.String()
	for _, want := range []string{"level=ERROR", "disk full", "operation=create", "component=storage"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}
