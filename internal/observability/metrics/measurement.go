package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// MeasurementMetrics tracks operator actions on sessions.
type MeasurementMetrics struct {
	Captures         prometheus.Counter
	Calibrations     *prometheus.CounterVec
	Saves            *prometheus.CounterVec
	ProductsStarted  prometheus.Counter
	ActiveSessions   prometheus.Gauge
	CalibrationRatio prometheus.Gauge
	PointsPerRecord  prometheus.Histogram
}

// NewMeasurementMetrics creates and registers measurement metrics.
func NewMeasurementMetrics(registry *prometheus.Registry) (*MeasurementMetrics, error) {
	m := &MeasurementMetrics{
		Captures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camruler_captures_total",
			Help: "Total number of frames captured into sessions",
		}),
		Calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camruler_calibrations_total",
			Help: "Calibration attempts by result",
		}, []string{"result"}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camruler_saves_total",
			Help: "Measure and save attempts by result",
		}, []string{"result"}),
		ProductsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camruler_products_started_total",
			Help: "Total number of Start New Product actions",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camruler_sessions_active",
			Help: "Number of live operator sessions",
		}),
		CalibrationRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camruler_calibration_ratio",
			Help: "Most recent successful calibration ratio in units per pixel",
		}),
		PointsPerRecord: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "camruler_record_points",
			Help:    "Number of points in saved records",
			Buckets: prometheus.LinearBuckets(2, 2, 8),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register measurement metrics: %w", err)
	}
	return m, nil
}

// RecordCalibration counts a calibration attempt and tracks the ratio on
// success.
func (m *MeasurementMetrics) RecordCalibration(result string, ratio float64) {
	m.Calibrations.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		m.CalibrationRatio.Set(ratio)
	}
}

// RecordSave counts a save attempt.
func (m *MeasurementMetrics) RecordSave(result string, points int) {
	m.Saves.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		m.PointsPerRecord.Observe(float64(points))
	}
}

// Describe implements prometheus.Collector.
func (m *MeasurementMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Captures.Describe(ch)
	m.Calibrations.Describe(ch)
	m.Saves.Describe(ch)
	m.ProductsStarted.Describe(ch)
	m.ActiveSessions.Describe(ch)
	m.CalibrationRatio.Describe(ch)
	m.PointsPerRecord.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *MeasurementMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Captures.Collect(ch)
	m.Calibrations.Collect(ch)
	m.Saves.Collect(ch)
	m.ProductsStarted.Collect(ch)
	m.ActiveSessions.Collect(ch)
	m.CalibrationRatio.Collect(ch)
	m.PointsPerRecord.Collect(ch)
}
