package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "newsletter-dispatch"

type (
	requestIDKey struct{}
	pageIDKey    struct{}
)

// NewLogger builds the JSON production logger. Every entry carries the
// service name so lines from the API and CLI tools can be told apart.
func NewLogger(level string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.InitialFields = map[string]any{"service": serviceName}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var parsed zapcore.Level
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "info"
	}

	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return parsed, nil
}

// WithRequestID stores the X-Request-ID of the current HTTP request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey{})
}

// WithPageID tags the context with the newsletter page an action runs on.
func WithPageID(ctx context.Context, pageID string) context.Context {
	return withValue(ctx, pageIDKey{}, pageID)
}

func PageIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, pageIDKey{})
}

// WithContextLogger adds the request and page IDs found in ctx.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	fields := make([]zap.Field, 0, 2)
	if requestID, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, zap.String("requestId", requestID))
	}
	if pageID, ok := PageIDFromContext(ctx); ok {
		fields = append(fields, zap.String("pageId", pageID))
	}
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

func withValue(ctx context.Context, key any, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}

	value, ok := ctx.Value(key).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
