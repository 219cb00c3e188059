package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/observability/metrics"
)

// Endpoint serves metrics on a listener of its own, separate from the web
// server.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
}

// NewEndpoint returns an endpoint for settings.Listen. It fails when telemetry
// is disabled or no listen address is set.
func NewEndpoint(settings *conf.TelemetrySettings, m *Metrics, log logger.Logger) (*Endpoint, error) {
	if !settings.Enabled {
		return nil, errors.New("telemetry not enabled in settings")
	}
	if settings.Listen == "" {
		return nil, errors.New("telemetry listen address not set")
	}
	return &Endpoint{
		listenAddress: settings.Listen,
		metrics:       m,
		log:           log.Module("telemetry"),
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (e *Endpoint) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)
	e.server = &http.Server{
		Addr:              e.listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.log.Info("telemetry endpoint starting", logger.String("address", e.listenAddress))
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	e.log.Info("stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metrics.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.log.Error("telemetry server shutdown error", logger.Error(err))
		return err
	}
	return <-errCh
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
