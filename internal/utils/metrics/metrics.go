package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Entitlement metrics
	EntitlementChecksTotal *prometheus.CounterVec
	UpgradePromptsTotal    *prometheus.CounterVec

	// Usage metrics
	TokensConsumedTotal    *prometheus.CounterVec
	DocumentsIngestedTotal *prometheus.CounterVec

	// Billing metrics
	StripeWebhooksTotal *prometheus.CounterVec
	CheckoutsTotal      *prometheus.CounterVec

	// Retention metrics
	RetentionSweepsTotal   prometheus.Counter
	RetentionDeletedTotal  prometheus.Counter
	RetentionSweepDuration prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance registered on the default registry.
func New(namespace string) *Metrics {
	return NewWith(prometheus.DefaultRegisterer, namespace)
}

// NewWith creates a new Metrics instance registered on the given
// registerer. Tests use a fresh registry to avoid collisions.
func NewWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "ragpdf"
	}

	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		EntitlementChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "entitlement",
				Name:      "checks_total",
				Help:      "Total number of entitlement checks",
			},
			[]string{"check", "plan", "outcome"}, // outcome: allowed, denied
		),
		UpgradePromptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "entitlement",
				Name:      "upgrade_prompts_total",
				Help:      "Total number of upgrade recommendations returned",
			},
			[]string{"plan", "recommended"},
		),

		TokensConsumedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "usage",
				Name:      "tokens_consumed_total",
				Help:      "Total number of AI tokens recorded",
			},
			[]string{"plan"},
		),
		DocumentsIngestedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "usage",
				Name:      "documents_ingested_total",
				Help:      "Total number of documents ingested",
			},
			[]string{"plan", "status"}, // status: ingested, failed
		),

		StripeWebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "stripe_webhooks_total",
				Help:      "Total number of Stripe webhook events processed",
			},
			[]string{"type", "status"}, // status: processed, skipped, failed
		),
		CheckoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "checkouts_total",
				Help:      "Total number of checkout sessions created",
			},
			[]string{"plan"},
		),

		RetentionSweepsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "sweeps_total",
				Help:      "Total number of retention sweeps run",
			},
		),
		RetentionDeletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "documents_deleted_total",
				Help:      "Total number of documents deleted by retention sweeps",
			},
		),
		RetentionSweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "sweep_duration_seconds",
				Help:      "Retention sweep duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "Database query duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEntitlementCheck records the outcome of an entitlement check.
func (m *Metrics) RecordEntitlementCheck(check, plan string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.EntitlementChecksTotal.WithLabelValues(check, plan, outcome).Inc()
}

// RecordUpgradePrompt records an upgrade recommendation.
func (m *Metrics) RecordUpgradePrompt(plan, recommended string) {
	m.UpgradePromptsTotal.WithLabelValues(plan, recommended).Inc()
}

// RecordTokens records token consumption.
func (m *Metrics) RecordTokens(plan string, tokens int64) {
	if tokens > 0 {
		m.TokensConsumedTotal.WithLabelValues(plan).Add(float64(tokens))
	}
}

// RecordDocumentIngested records a document ingestion outcome.
func (m *Metrics) RecordDocumentIngested(plan, status string) {
	m.DocumentsIngestedTotal.WithLabelValues(plan, status).Inc()
}

// RecordStripeWebhook records a Stripe webhook event.
func (m *Metrics) RecordStripeWebhook(eventType, status string) {
	m.StripeWebhooksTotal.WithLabelValues(eventType, status).Inc()
}

// RecordCheckout records a checkout session creation.
func (m *Metrics) RecordCheckout(plan string) {
	m.CheckoutsTotal.WithLabelValues(plan).Inc()
}

// RecordRetentionSweep records a completed retention sweep.
func (m *Metrics) RecordRetentionSweep(deleted int64, duration time.Duration) {
	m.RetentionSweepsTotal.Inc()
	m.RetentionDeletedTotal.Add(float64(deleted))
	m.RetentionSweepDuration.Observe(duration.Seconds())
}

// RecordDBQuery records a database query.
func (m *Metrics) RecordDBQuery(operation string, duration time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
