package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// VideoMetrics tracks the live frame feed.
type VideoMetrics struct {
	Frames         *prometheus.CounterVec
	FrameSize      prometheus.Histogram
	LastFrameTime  prometheus.Gauge
	RejectedFrames *prometheus.CounterVec
	WebsocketPeers prometheus.Gauge
}

// NewVideoMetrics creates and registers video metrics.
func NewVideoMetrics(registry *prometheus.Registry) (*VideoMetrics, error) {
	m := &VideoMetrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camruler_frames_total",
			Help: "Frames stored in the live frame slot by source",
		}, []string{"source"}),
		FrameSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "camruler_frame_size_bytes",
			Help:    "Size of JPEG frames stored in the live frame slot",
			Buckets: frameBuckets,
		}),
		LastFrameTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camruler_last_frame_timestamp_seconds",
			Help: "Unix time of the most recent live frame",
		}),
		RejectedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camruler_frames_rejected_total",
			Help: "Pushed frames dropped by reason",
		}, []string{"reason"}),
		WebsocketPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camruler_websocket_peers",
			Help: "Connected live frame websocket clients",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register video metrics: %w", err)
	}
	return m, nil
}

// ObserveFrame records a frame stored from source.
func (m *VideoMetrics) ObserveFrame(source string, size int) {
	m.Frames.WithLabelValues(source).Inc()
	m.FrameSize.Observe(float64(size))
	m.LastFrameTime.SetToCurrentTime()
}

// Describe implements prometheus.Collector.
func (m *VideoMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Frames.Describe(ch)
	m.FrameSize.Describe(ch)
	m.LastFrameTime.Describe(ch)
	m.RejectedFrames.Describe(ch)
	m.WebsocketPeers.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *VideoMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Frames.Collect(ch)
	m.FrameSize.Collect(ch)
	m.LastFrameTime.Collect(ch)
	m.RejectedFrames.Collect(ch)
	m.WebsocketPeers.Collect(ch)
}
