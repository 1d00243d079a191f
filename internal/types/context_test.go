package types

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("empty context should yield empty id, got %q", got)
	}
}

func TestTenantIDRoundTrip(t *testing.T) {
	ctx := WithTenantID(context.Background(), "tenant-9")
	if got := GetTenantID(ctx); got != "tenant-9" {
		t.Errorf("GetTenantID() = %q", got)
	}
}

func TestLoggerFromContext(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	scoped := fallback.With("request_id", "req-2")

	if got := LoggerFromContext(context.Background(), fallback); got != fallback {
		t.Error("expected fallback logger when none stored")
	}
	if got := LoggerFromContext(WithLogger(context.Background(), scoped), fallback); got != scoped {
		t.Error("expected stored logger")
	}
	if got := LoggerFromContext(context.Background(), nil); got == nil {
		t.Error("expected slog.Default when no fallback")
	}
}
