// Package metrics provides the Prometheus collectors of each camruler
// subsystem.
package metrics

import "time"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	// ResultRejected marks an action refused for bad input, such as a
	// degenerate calibration.
	ResultRejected = "rejected"
	ResultWaiting  = "waiting"
)

const (
	// ShutdownTimeout bounds the metrics listener shutdown.
	ShutdownTimeout = 5 * time.Second
)

// Latency buckets in seconds.
var (
	fastBuckets  = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}
	frameBuckets = []float64{4 << 10, 16 << 10, 64 << 10, 128 << 10, 256 << 10, 512 << 10, 1 << 20, 4 << 20}
)
