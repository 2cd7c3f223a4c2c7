package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_LevelMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
	}{
		{name: "debug level", level: "debug", debugEnabled: true},
		{name: "info level", level: "info", debugEnabled: false},
		{name: "upper case", level: " WARN ", debugEnabled: false},
		{name: "empty level defaults to info", level: "", debugEnabled: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled=%v, want=%v", got, tc.debugEnabled)
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("loud")
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
	if logger != nil {
		t.Fatal("expected nil logger for invalid level")
	}
}

func TestContextIDs(t *testing.T) {
	t.Parallel()

	ctx := WithPageID(WithRequestID(context.Background(), "req-1"), "page-1")

	if got, ok := RequestIDFromContext(ctx); !ok || got != "req-1" {
		t.Fatalf("request id = (%q, %v), want req-1", got, ok)
	}
	if got, ok := PageIDFromContext(ctx); !ok || got != "page-1" {
		t.Fatalf("page id = (%q, %v), want page-1", got, ok)
	}

	if _, ok := RequestIDFromContext(context.Background()); ok {
		t.Fatal("expected request id to be missing")
	}
	if _, ok := PageIDFromContext(WithPageID(context.Background(), "")); ok {
		t.Fatal("empty page id should count as missing")
	}
}

func TestWithContextLogger(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	ctx := WithPageID(WithRequestID(context.Background(), "req-789"), "page-42")
	WithContextLogger(baseLogger, ctx).Info("campaign saved")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["requestId"] != "req-789" {
		t.Fatalf("requestId=%v, want=%q", fields["requestId"], "req-789")
	}
	if fields["pageId"] != "page-42" {
		t.Fatalf("pageId=%v, want=%q", fields["pageId"], "page-42")
	}
}

func TestWithContextLogger_NoIDs(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	WithContextLogger(baseLogger, context.Background()).Info("no ids")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}
	if len(entries[0].ContextMap()) != 0 {
		t.Fatalf("fields = %v, want none", entries[0].ContextMap())
	}
}

func TestWithContextLogger_NilLogger(t *testing.T) {
	t.Parallel()

	if got := WithContextLogger(nil, context.Background()); got != nil {
		t.Fatal("expected nil logger")
	}
}
