// Package metrics provides Prometheus metrics for the dispatch engine.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// DispatchMetrics contains the Prometheus metrics of the dispatch engine.
// All methods are safe to call on a nil receiver so that components can run
// without metrics.
type DispatchMetrics struct {
	DeliveriesTotal   *prometheus.CounterVec   // Deliveries by scheme and status
	DeliveryDuration  *prometheus.HistogramVec // Latency by scheme
	DeliveryErrors    *prometheus.CounterVec   // Failures by scheme and error category
	RetryAttempts     *prometheus.CounterVec   // Re-sends by scheme
	ThrottleWait      *prometheus.HistogramVec // Time spent waiting on throttle or rate limit
	AttachmentFetches *prometheus.CounterVec   // Attachment resolutions by source kind and result
	DispatchTotal     prometheus.Counter       // Notify calls
	DispatchActive    prometheus.Gauge         // Instances currently sending
	CachedInstances   prometheus.Gauge         // Adapter instances held by the dispatcher
	ErrorsTotal       *prometheus.CounterVec   // Errors built by component and category

	registry *prometheus.Registry
}

// NewDispatchMetrics creates the metrics and registers them with registry.
func NewDispatchMetrics(registry *prometheus.Registry) (*DispatchMetrics, error) {
	m := &DispatchMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register dispatch metrics: %w", err)
	}
	return m, nil
}

func (m *DispatchMetrics) initMetrics() {
	m.DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcore_deliveries_total",
			Help: "Total number of deliveries by scheme and status",
		},
		[]string{"scheme", "status"},
	)

	m.DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushcore_delivery_duration_seconds",
			Help:    "Time taken for one instance to deliver a notification, retries included",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"scheme"},
	)

	m.DeliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcore_delivery_errors_total",
			Help: "Total number of failed deliveries by scheme and error category",
		},
		[]string{"scheme", "error_category"},
	)

	m.RetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcore_retry_attempts_total",
			Help: "Total number of retry attempts by scheme",
		},
		[]string{"scheme"},
	)

	m.ThrottleWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushcore_throttle_wait_seconds",
			Help:    "Time spent waiting before an outbound request",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"scheme", "reason"}, // reason: throttle, rate_limit
	)

	m.AttachmentFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcore_attachment_fetches_total",
			Help: "Total number of attachment resolutions by source and result",
		},
		[]string{"source", "result"},
	)

	m.DispatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pushcore_dispatch_total",
			Help: "Total number of notifications dispatched",
		},
	)

	m.DispatchActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushcore_dispatch_active",
			Help: "Number of adapter instances currently sending",
		},
	)

	m.CachedInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushcore_cached_instances",
			Help: "Number of adapter instances held by the dispatcher",
		},
	)

	m.ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcore_errors_total",
			Help: "Total number of errors raised by component and category",
		},
		[]string{"component", "category"},
	)
}

// RecordDelivery records the outcome of one instance's delivery.
func (m *DispatchMetrics) RecordDelivery(scheme, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(scheme, status).Inc()
	m.DeliveryDuration.WithLabelValues(scheme).Observe(duration.Seconds())
}

// RecordDeliveryError records a failed delivery.
func (m *DispatchMetrics) RecordDeliveryError(scheme, errorCategory string) {
	if m == nil {
		return
	}
	m.DeliveryErrors.WithLabelValues(scheme, errorCategory).Inc()
}

// RecordRetryAttempt records a re-send after a transient failure.
func (m *DispatchMetrics) RecordRetryAttempt(scheme string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(scheme).Inc()
}

// RecordWait records time spent in the throttle or rate-limit gate.
func (m *DispatchMetrics) RecordWait(scheme, reason string, d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.ThrottleWait.WithLabelValues(scheme, reason).Observe(d.Seconds())
}

// RecordAttachmentFetch records one attachment resolution.
func (m *DispatchMetrics) RecordAttachmentFetch(source, result string) {
	if m == nil {
		return
	}
	m.AttachmentFetches.WithLabelValues(source, result).Inc()
}

// IncrementDispatchTotal increments the dispatch counter.
func (m *DispatchMetrics) IncrementDispatchTotal() {
	if m == nil {
		return
	}
	m.DispatchTotal.Inc()
}

// AddDispatchActive adjusts the active gauge by delta.
func (m *DispatchMetrics) AddDispatchActive(delta int) {
	if m == nil {
		return
	}
	m.DispatchActive.Add(float64(delta))
}

// SetCachedInstances sets the cached instance gauge.
func (m *DispatchMetrics) SetCachedInstances(n int) {
	if m == nil {
		return
	}
	m.CachedInstances.Set(float64(n))
}

// RecordError counts one error raised by component.
func (m *DispatchMetrics) RecordError(component, category string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, category).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *DispatchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DeliveriesTotal.Collect(ch)
	m.DeliveryDuration.Collect(ch)
	m.DeliveryErrors.Collect(ch)
	m.RetryAttempts.Collect(ch)
	m.ThrottleWait.Collect(ch)
	m.AttachmentFetches.Collect(ch)
	m.DispatchTotal.Collect(ch)
	m.DispatchActive.Collect(ch)
	m.CachedInstances.Collect(ch)
	m.ErrorsTotal.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *DispatchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DeliveriesTotal.Describe(ch)
	m.DeliveryDuration.Describe(ch)
	m.DeliveryErrors.Describe(ch)
	m.RetryAttempts.Describe(ch)
	m.ThrottleWait.Describe(ch)
	m.AttachmentFetches.Describe(ch)
	m.DispatchTotal.Describe(ch)
	m.DispatchActive.Describe(ch)
	m.CachedInstances.Describe(ch)
	m.ErrorsTotal.Describe(ch)
}
