package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics
type Collector struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	InboundTotal    *prometheus.CounterVec
	RateLimited     prometheus.Counter

	// Selection metrics
	SelectionsTotal      *prometheus.CounterVec
	SelectionErrorsTotal *prometheus.CounterVec
	BackendWeight        *prometheus.GaugeVec
	BackendShare         *prometheus.GaugeVec
	ProjectionLength     prometheus.Gauge
	RebuildsTotal        *prometheus.CounterVec

	// Retry metrics
	RetriesTotal      *prometheus.CounterVec
	RetryBudgetTokens prometheus.Gauge
}

// NewCollector creates all metrics and registers them with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weightsel_requests_total",
				Help: "Total number of forwarded requests",
			},
			[]string{"backend", "method", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weightsel_request_duration_seconds",
				Help:    "Forwarded request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "method"},
		),

		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "weightsel_active_requests",
				Help: "Number of active requests per backend",
			},
			[]string{"backend"},
		),

		InboundTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weightsel_inbound_requests_total",
				Help: "Total number of requests received by the dispatcher",
			},
			[]string{"method", "status"},
		),

		RateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "weightsel_rate_limited_total",
				Help: "Requests rejected by the inbound rate limiter",
			},
		),

		SelectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weightsel_selections_total",
				Help: "Backend selections by strategy and backend",
			},
			[]string{"strategy", "backend"},
		),

		SelectionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weightsel_selection_errors_total",
				Help: "Selections that failed because the strategy was exhausted",
			},
			[]string{"strategy"},
		),

		BackendWeight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "weightsel_backend_weight",
				Help: "Configured weight per backend",
			},
			[]string{"backend"},
		),

		BackendShare: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "weightsel_backend_share",
				Help: "Expected share of selections per backend (weight / total weight)",
			},
			[]string{"backend"},
		),

		ProjectionLength: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "weightsel_projection_length",
				Help: "Length of the active weight projection",
			},
		),

		RebuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weightsel_selector_rebuilds_total",
				Help: "Selector rebuilds by result",
			},
			[]string{"result"},
		),

		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weightsel_retries_total",
				Help: "Total number of retries",
			},
			[]string{"reason"},
		),

		RetryBudgetTokens: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "weightsel_retry_budget_tokens",
				Help: "Available retry budget tokens",
			},
		),
	}
}
