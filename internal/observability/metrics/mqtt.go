package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics tracks the broker connection and record publication.
type MQTTMetrics struct {
	Connected   prometheus.Gauge
	Published   *prometheus.CounterVec
	Reconnects  prometheus.Counter
	Disconnects prometheus.Counter
	PayloadSize prometheus.Histogram
	Latency     prometheus.Histogram
}

// NewMQTTMetrics creates and registers MQTT metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camruler_mqtt_connected",
			Help: "1 while connected to the MQTT broker",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camruler_mqtt_records_published_total",
			Help: "Saved records published to MQTT by result",
		}, []string{"result"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camruler_mqtt_reconnects_total",
			Help: "Reconnection attempts to the MQTT broker",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camruler_mqtt_connection_lost_total",
			Help: "Unexpected losses of the broker connection",
		}),
		PayloadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "camruler_mqtt_payload_bytes",
			Help:    "Size of published record payloads",
			Buckets: prometheus.ExponentialBuckets(64, 2, 8),
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "camruler_mqtt_publish_duration_seconds",
			Help:    "Time until the broker acknowledged a publish",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// SetConnected updates the connection gauge.
func (m *MQTTMetrics) SetConnected(connected bool) {
	if connected {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

// ObservePublish records one publish attempt. Failed attempts only count.
func (m *MQTTMetrics) ObservePublish(size int, started time.Time, err error) {
	if err != nil {
		m.Published.WithLabelValues(ResultError).Inc()
		return
	}
	m.Published.WithLabelValues(ResultSuccess).Inc()
	m.PayloadSize.Observe(float64(size))
	m.Latency.Observe(time.Since(started).Seconds())
}

// Describe implements prometheus.Collector.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Connected.Describe(ch)
	m.Published.Describe(ch)
	m.Reconnects.Describe(ch)
	m.Disconnects.Describe(ch)
	m.PayloadSize.Describe(ch)
	m.Latency.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Connected.Collect(ch)
	m.Published.Collect(ch)
	m.Reconnects.Collect(ch)
	m.Disconnects.Collect(ch)
	m.PayloadSize.Collect(ch)
	m.Latency.Collect(ch)
}
