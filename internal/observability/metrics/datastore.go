package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics tracks record persistence.
type DatastoreMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	records    prometheus.Gauge
}

// NewDatastoreMetrics creates and registers datastore metrics.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camruler_datastore_operations_total",
			Help: "Datastore operations by operation and result",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camruler_datastore_operation_duration_seconds",
			Help:    "Datastore operation latency",
			Buckets: fastBuckets,
		}, []string{"operation"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camruler_datastore_records",
			Help: "Records in the measurement table",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

// RecordOperation counts one datastore call and its latency.
func (m *DatastoreMetrics) RecordOperation(operation string, started time.Time, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// SetRecordCount updates the table size gauge.
func (m *DatastoreMetrics) SetRecordCount(n int) {
	m.records.Set(float64(n))
}

// IncRecordCount counts one appended record.
func (m *DatastoreMetrics) IncRecordCount() {
	m.records.Inc()
}

// Describe implements prometheus.Collector.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operations.Describe(ch)
	m.duration.Describe(ch)
	m.records.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operations.Collect(ch)
	m.duration.Collect(ch)
	m.records.Collect(ch)
}
