package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/ratelimit"
)

const defaultProviderTimeout = 30 * time.Second

// RequestObserver receives one observation per provider HTTP round trip.
type RequestObserver interface {
	ObserveProviderRequest(backend string, method string, statusCode int, duration time.Duration)
}

// ClientOptions configures the HTTP adapters.
type ClientOptions struct {
	Timeout  time.Duration
	Limiter  ratelimit.RateLimiter
	Observer RequestObserver
	// BaseURL overrides the computed API host; used against test servers.
	BaseURL string
}

// restClient is the resty wrapper shared by the provider adapters.
type restClient struct {
	name        string
	client      *resty.Client
	limiter     ratelimit.RateLimiter
	observer    RequestObserver
	requireJSON bool
}

func newRestClient(name string, baseURL string, opts ClientOptions) *restClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetRetryCount(0)
	client.SetHeader("Accept", "application/json")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	client.SetTimeout(timeout)

	return &restClient{
		name:     name,
		client:   client,
		limiter:  opts.Limiter,
		observer: opts.Observer,
	}
}

type request struct {
	method string
	path   string
	query  map[string]string
	body   any
}

// do performs one round trip and decodes a 2xx JSON body into out.
func (c *restClient) do(ctx context.Context, req request, out any) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("api client is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.name); err != nil {
			return &APIError{
				Transient: !errors.Is(err, context.Canceled),
				Cause:     fmt.Errorf("rate limit wait failed: %w", err),
			}
		}
	}

	r := c.client.R().SetContext(ctx)
	if len(req.query) > 0 {
		r.SetQueryParams(req.query)
	}
	if req.body != nil {
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(req.body)
	}

	start := time.Now()
	response, err := r.Execute(req.method, req.path)
	if err != nil {
		c.observe(req.method, 0, time.Since(start))
		return &APIError{
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	c.observe(req.method, response.StatusCode(), time.Since(start))

	statusCode := response.StatusCode()
	body := response.Body()
	isJSON := strings.Contains(response.Header().Get("Content-Type"), "json")

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		text := ""
		if isJSON || !c.requireJSON {
			text = extractErrorText(body)
		}
		return &APIError{
			StatusCode: statusCode,
			Text:       text,
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	if c.requireJSON && !isJSON {
		return &APIError{
			StatusCode: statusCode,
			Cause:      fmt.Errorf("unexpected content type %q", response.Header().Get("Content-Type")),
		}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{
			StatusCode: statusCode,
			Cause:      fmt.Errorf("invalid JSON response: %w", err),
		}
	}

	return nil
}

func (c *restClient) observe(method string, statusCode int, duration time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveProviderRequest(c.name, method, statusCode, duration)
}

// extractErrorText pulls the explanatory message out of an error body.
// Non-JSON bodies and bodies without a known field yield "".
func extractErrorText(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"message", "detail", "title"} {
		if value, ok := payload[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}

	return ""
}
