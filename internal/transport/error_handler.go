package transport

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-dispatch/internal/audience"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
	"go.uber.org/zap"
)

const notConfiguredMessage = "campaign backend is not configured"

// ErrorHandler renders errors as {"error": message} with a status derived
// from the error taxonomy.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code, message := Classify(err)
		reqLogger := observability.WithContextLogger(logger, c.UserContext())

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if code >= fiber.StatusInternalServerError {
			reqLogger.Error("request error", fields...)
		} else {
			reqLogger.Warn("request error", fields...)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}

// Classify maps an error to an HTTP status and a client-safe message.
func Classify(err error) (int, string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	var configErr *provider.ConfigError
	if errors.As(err, &configErr) {
		return fiber.StatusInternalServerError, notConfiguredMessage
	}

	var backendErr *provider.BackendError
	if errors.As(err, &backendErr) {
		return fiber.StatusBadGateway, backendErr.Message
	}

	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, audience.ErrFiltersNotSupported):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, err.Error()
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}

// RequestID propagates X-Request-ID, generating one when absent, and stores
// it in the request's user context for loggers.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(fiber.HeaderXRequestID, requestID)
		c.Locals("requestid", requestID)
		c.SetUserContext(observability.WithRequestID(c.UserContext(), requestID))

		return c.Next()
	}
}
