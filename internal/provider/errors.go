package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"go.uber.org/zap"
)

// ErrAudienceNotFound signals that an audience (or, for backends without
// segments, the segment concept itself) does not exist remotely.
var ErrAudienceNotFound = fmt.Errorf("%w: audience", domain.ErrNotFound)

// APIError is the provider-neutral transport error returned by the HTTP
// adapters. Text is the remote explanatory message, if any.
type APIError struct {
	StatusCode int
	Text       string
	Transient  bool
	Cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "api client error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Text); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// BackendError is the only failure exposed above the backend boundary.
// Error() returns the human-readable message; status and text are kept
// for logging.
type BackendError struct {
	Message    string
	StatusCode int
	Text       string
	Cause      error
}

func (e *BackendError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ConfigError reports a missing or malformed backend setting.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Reason == "" {
		return fmt.Sprintf("%s is not set", e.Setting)
	}
	return fmt.Sprintf("%s is invalid: %s", e.Setting, e.Reason)
}

func IsBackendError(err error) bool {
	var backendErr *BackendError
	return errors.As(err, &backendErr)
}

func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsTransient reports whether a failure is temporary on the provider side.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

func isNotFoundStatus(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

// logAndWrap logs the remote diagnostics with the caller context and
// returns a BackendError carrying only message.
func logAndWrap(logger *zap.Logger, err error, message string, fields ...zap.Field) error {
	return wrap(logger, err, message, false, fields...)
}

// logAndWrapWithDetail is logAndWrap for state-changing actions, where the
// provider's explanation of a rejection is appended to the message.
func logAndWrapWithDetail(logger *zap.Logger, err error, message string, fields ...zap.Field) error {
	return wrap(logger, err, message, true, fields...)
}

func wrap(logger *zap.Logger, err error, message string, withDetail bool, fields ...zap.Field) error {
	backendErr := &BackendError{Message: message, Cause: err}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		backendErr.StatusCode = apiErr.StatusCode
		backendErr.Text = apiErr.Text
		fields = append(fields,
			zap.Int("statusCode", apiErr.StatusCode),
			zap.String("text", apiErr.Text),
		)
		if withDetail && strings.TrimSpace(apiErr.Text) != "" {
			backendErr.Message = fmt.Sprintf("%s: %s", message, strings.TrimSpace(apiErr.Text))
		}
	}

	if logger != nil {
		// Rate limits, 5xx answers and timeouts are expected to clear on
		// their own and are logged below error level.
		transient := IsTransient(err)
		fields = append(fields, zap.Bool("transient", transient), zap.Error(err))
		if transient {
			logger.Warn(message, fields...)
		} else {
			logger.Error(message, fields...)
		}
	}

	return backendErr
}
