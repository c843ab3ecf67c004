package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kse_bridge"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	SubmissionsTotal   *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec
	ItemErrors         *prometheus.CounterVec
	OrderLinesListed   prometheus.Gauge
}

// NewMetrics creates the service metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Submitted order lines by carrier and outcome",
			},
			[]string{"carrier", "outcome"},
		),
		SubmissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_duration_seconds",
				Help:      "Duration of one provider submission in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"carrier"},
		),
		ItemErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "item_errors_total",
				Help:      "Failed order lines by carrier and error class",
			},
			[]string{"carrier", "class"},
		),
		OrderLinesListed: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "order_lines_listed",
				Help:      "Number of order lines in the most recent listing",
			},
		),
	}
}

// RecordRequest records an HTTP request metric.
func (m *Metrics) RecordRequest(route, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration)
}

// RecordSubmission records the outcome of one order line.
func (m *Metrics) RecordSubmission(carrier, outcome string, duration float64) {
	m.SubmissionsTotal.WithLabelValues(carrier, outcome).Inc()
	if duration > 0 {
		m.SubmissionDuration.WithLabelValues(carrier).Observe(duration)
	}
}

// RecordError records a failed order line by error class.
func (m *Metrics) RecordError(carrier, class string) {
	m.ItemErrors.WithLabelValues(carrier, class).Inc()
}

// RecordListing records the size of an order listing.
func (m *Metrics) RecordListing(lines int) {
	m.OrderLinesListed.Set(float64(lines))
}
