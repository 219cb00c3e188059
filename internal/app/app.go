// Package app assembles camruler's components from settings and runs them.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/camruler/camruler/internal/buildinfo"
	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/datastore"
	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
	"github.com/camruler/camruler/internal/session"
)

// hookTimeout bounds a single MQTT publish or notification after a save.
const hookTimeout = 15 * time.Second

// Context carries what every command needs once configuration is loaded.
type Context struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	Log      logger.Logger

	central *logger.CentralLogger
}

// New builds the logger from settings and installs the Sentry reporter when
// enabled.
func New(settings *conf.Settings, build *buildinfo.Context) (*Context, error) {
	c := &Context{Build: build}
	if err := c.Init(settings); err != nil {
		return nil, err
	}
	return c, nil
}

// Init sets up c once settings are loaded. Commands hold a Context from
// construction and initialize it before running.
func (c *Context) Init(settings *conf.Settings) error {
	logging := settings.Logging
	if settings.Debug {
		logging.DefaultLevel = "debug"
		if logging.Console != nil {
			console := *logging.Console
			console.Level = "debug"
			logging.Console = &console
		}
	}
	central, err := logger.NewCentralLogger(&logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if s := settings.Telemetry.Sentry; settings.Telemetry.Enabled && s.Enabled {
		if err := errors.InitSentry(s.DSN, c.Build.Release(), settings.Debug); err != nil {
			// telemetry must never prevent startup
			fmt.Fprintln(os.Stderr, "sentry disabled:", err)
		}
	}

	c.Settings = settings
	c.Log = central.Module("camruler")
	c.central = central
	return nil
}

// Close flushes log output.
func (c *Context) Close() error {
	if c.central == nil {
		return nil
	}
	return c.central.Close()
}

// SessionConfig derives the per-session defaults from settings.
func SessionConfig(s *conf.Settings) session.Config {
	return session.Config{
		DefaultRatio: s.Measurement.DefaultRatio,
		KnownLength:  s.Calibration.KnownLength,
		MinLength:    s.Calibration.MinLength,
		Epsilon:      s.Calibration.Epsilon,
		Unit:         s.Measurement.Unit,
		Ratio:        s.Calibration.Ratio,
	}
}

// SessionSecret returns the cookie signing key. Without a configured secret a
// random one is used, so cookies do not survive a restart.
func (c *Context) SessionSecret() []byte {
	if secret := c.Settings.WebServer.SessionSecret; secret != "" {
		return []byte(secret)
	}
	c.Log.Warn("webserver.sessionsecret not set, sessions end on restart")
	return []byte(conf.GenerateRandomSecret())
}

// OpenStore opens the configured record table and its mirrors.
func (c *Context) OpenStore(ctx context.Context) (datastore.Store, error) {
	return datastore.New(ctx, &c.Settings.Output, c.Log)
}

// PersistRatio writes ratio to the config file when calibration.persist is
// on. It reports whether the ratio was written.
func (c *Context) PersistRatio(ratio float64) (bool, error) {
	if !c.Settings.Calibration.Persist {
		return false, nil
	}
	if !measure.ValidRatio(ratio) {
		return false, measure.ErrInvalidRatio
	}
	if err := conf.SaveCalibrationRatio(c.Settings, ratio); err != nil {
		return false, err
	}
	c.Log.Info("calibration ratio persisted", logger.Float64("ratio", ratio), logger.String("config", conf.ConfigFileUsed()))
	return true, nil
}

// asyncHooks runs save hooks off the request path. Wait blocks until all
// started hooks have returned.
type asyncHooks struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

func (h *asyncHooks) wrap(fn session.SaveHook) session.SaveHook {
	return func(ctx context.Context, rec measure.Record) {
		hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		h.wg.Go(func() {
			defer cancel()
			fn(hookCtx, rec)
		})
	}
}

func (h *asyncHooks) Wait() {
	h.wg.Wait()
}
