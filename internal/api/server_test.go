package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v2 "github.com/camruler/camruler/internal/api/v2"
	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/datastore"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/observability"
	"github.com/camruler/camruler/internal/session"
	"github.com/camruler/camruler/internal/video"
)

func newTestServer(t *testing.T, cfg *Config) (*Server, *observability.Metrics) {
	t.Helper()
	log := logger.NewSlogLogger(nil, logger.LogLevelError, time.UTC)
	settings := conf.Default()
	settings.Output.CSV.Path = t.TempDir() + "/measurements.csv"

	store, err := datastore.New(t.Context(), &settings.Output, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	mgr := session.NewManager(session.DefaultConfig(), store, []byte("0123456789abcdef0123456789abcdef"), time.Hour, log)
	srv, err := New(cfg, v2.Deps{
		Settings: settings,
		Sessions: mgr,
		Mailbox:  video.NewMailbox(),
		Store:    store,
		Metrics:  m,
		Logger:   log,
	})
	require.NoError(t, err)
	return srv, m
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Address())

	cfg.Host = "127.0.0.1"
	assert.Equal(t, "127.0.0.1:8080", cfg.Address())

	cfg.Port = ""
	assert.Error(t, cfg.Validate())
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()
	s := conf.Default()
	s.WebServer.Port = "9090"
	s.Telemetry.Enabled = true
	cfg := ConfigFromSettings(s)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.ServeMetrics)

	s.Telemetry.Listen = ":9100"
	assert.False(t, ConfigFromSettings(s).ServeMetrics)
}

func TestServerServesUIAndAPI(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.ServeMetrics = true
	srv, _ := newTestServer(t, cfg)

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Measure &amp; Save")

	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, v2.Prefix+"/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))

	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/v2/health",status_code="200"} 1`)
}

func TestServerWithoutMetricsRoute(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, DefaultConfig())

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = "0"
	srv, _ := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool { return srv.Echo().ListenerAddr() != nil }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
