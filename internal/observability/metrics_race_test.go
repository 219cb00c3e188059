package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/logger"
)

// NewMetrics builds a fresh registry each call, so concurrent calls must not
// collide.
func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()
	const numGoroutines = 20

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Measurement)
			assert.NotNil(t, m.Video)
			assert.NotNil(t, m.Datastore)
			assert.NotNil(t, m.HTTP)
			assert.NotNil(t, m.MQTT)
			assert.NotNil(t, m.Notification)
		})
	}
	wg.Wait()
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics()
	require.NoError(t, err)
	m.Measurement.Captures.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "camruler_captures_total 1"))
}

func TestNewEndpointRequiresTelemetry(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics()
	require.NoError(t, err)
	log := logger.NewSlogLogger(nil, logger.LogLevelError, nil)

	_, err = NewEndpoint(&conf.TelemetrySettings{}, m, log)
	require.Error(t, err)
	_, err = NewEndpoint(&conf.TelemetrySettings{Enabled: true}, m, log)
	require.Error(t, err)

	e, err := NewEndpoint(&conf.TelemetrySettings{Enabled: true, Listen: "127.0.0.1:0"}, m, log)
	require.NoError(t, err)
	assert.Same(t, m, e.GetMetrics())
}
