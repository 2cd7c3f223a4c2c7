package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsletter"

// Metrics stores the Prometheus collectors for the API, the campaign
// backends and the audience cache.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec
	cacheLookupsTotal      *prometheus.CounterVec
	campaignActionsTotal   *prometheus.CounterVec
	auditSinkFailuresTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		backendRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_requests_total",
				Help:      "Campaign backend API calls by backend, method and status (0 = transport error).",
			},
			[]string{"backend", "method", "status"},
		),
		backendRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Campaign backend API call duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"backend", "method"},
		),
		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audience_cache_lookups_total",
				Help:      "Audience cache lookups by key kind and result.",
			},
			[]string{"kind", "result"},
		),
		campaignActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "campaign_actions_total",
				Help:      "Campaign actions by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		auditSinkFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_sink_failures_total",
				Help:      "Audit log entries a sink failed to record.",
			},
			[]string{"sink"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.backendRequestsTotal,
		m.backendRequestDuration,
		m.cacheLookupsTotal,
		m.campaignActionsTotal,
		m.auditSinkFailuresTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

// ObserveProviderRequest records one campaign backend round trip.
func (m *Metrics) ObserveProviderRequest(backend string, method string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}

	backendLabel := normalizeLabel(backend)
	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	m.backendRequestsTotal.WithLabelValues(backendLabel, methodLabel, strconv.Itoa(statusCode)).Inc()
	m.backendRequestDuration.WithLabelValues(backendLabel, methodLabel).Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) ObserveCacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(normalizeLabel(kind), result).Inc()
}

func (m *Metrics) IncCampaignAction(action string, succeeded bool) {
	if m == nil {
		return
	}

	outcome := "failure"
	if succeeded {
		outcome = "success"
	}
	m.campaignActionsTotal.WithLabelValues(normalizeLabel(action), outcome).Inc()
}

func (m *Metrics) IncAuditSinkFailure(sink string) {
	if m == nil {
		return
	}
	m.auditSinkFailuresTotal.WithLabelValues(normalizeLabel(sink)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
