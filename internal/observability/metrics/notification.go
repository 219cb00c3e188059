package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics tracks shoutrrr deliveries.
type NotificationMetrics struct {
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewNotificationMetrics creates and registers notification metrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Notification deliveries by service and result",
		}, []string{"service", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_delivery_duration_seconds",
			Help:    "Notification delivery latency by service",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"service"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// RecordDelivery counts one delivery to service.
func (m *NotificationMetrics) RecordDelivery(service string, started time.Time, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.deliveries.WithLabelValues(service, result).Inc()
	m.duration.WithLabelValues(service).Observe(time.Since(started).Seconds())
}

// Describe implements prometheus.Collector.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.deliveries.Describe(ch)
	m.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.deliveries.Collect(ch)
	m.duration.Collect(ch)
}
