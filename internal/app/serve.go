package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/camruler/camruler/internal/api"
	v2 "github.com/camruler/camruler/internal/api/v2"
	"github.com/camruler/camruler/internal/datastore"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/mqtt"
	"github.com/camruler/camruler/internal/notification"
	"github.com/camruler/camruler/internal/observability"
	"github.com/camruler/camruler/internal/overlay"
	"github.com/camruler/camruler/internal/session"
	"github.com/camruler/camruler/internal/video"
)

// Serve runs the video source, the session janitor, the web server and the
// optional metrics listener until ctx is cancelled or SIGINT/SIGTERM
// arrives. The first component to fail stops the others.
func (c *Context) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := c.Settings
	log := c.Log

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	opened, err := c.OpenStore(ctx)
	if err != nil {
		return err
	}
	store := datastore.Instrument(opened, m.Datastore)
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close record store", logger.Error(err))
		}
	}()
	if _, err := store.List(ctx); err != nil {
		log.Warn("record table unreadable", logger.Error(err))
	}

	src, err := video.NewSource(&s.Video, log)
	if err != nil {
		return err
	}

	// the server is built after the mailbox; the source starts only once
	// it exists
	var server *api.Server
	mb := video.NewMailbox(video.WithOnPut(func(f video.Frame) {
		m.Video.ObserveFrame(src.Name(), len(f.Data))
		if server != nil {
			server.Controller().BroadcastFrame(f)
		}
	}))
	push, _ := src.(*video.PushSource)
	if push != nil {
		push.Attach(mb)
		if !s.WebServer.Enabled {
			log.Warn("push video source without web server, no frames will arrive")
		}
	}

	var (
		mqttClient mqtt.Client
		notifier   *notification.Notifier
	)
	if s.MQTT.Enabled {
		mqttClient = mqtt.NewClient(mqtt.ConfigFromSettings(&s.MQTT), m.MQTT, log)
		defer mqttClient.Disconnect()
	}
	if s.Notification.Enabled {
		if notifier, err = notification.New(s.Notification.URLs, s.Measurement.Unit, hookTimeout, m.Notification, log); err != nil {
			return err
		}
	}

	// hooks finish before the MQTT client disconnects and the store closes
	hooks := &asyncHooks{timeout: hookTimeout}
	defer hooks.Wait()

	opts := []session.Option{session.WithMetrics(m.Measurement)}
	if mqttClient != nil {
		publisher := mqtt.NewPublisher(mqttClient, mqtt.ConfigFromSettings(&s.MQTT), s.Measurement.Unit, log)
		opts = append(opts, session.WithSaveHook(hooks.wrap(publisher.OnSave)))
	}
	if notifier != nil {
		opts = append(opts, session.WithSaveHook(hooks.wrap(notifier.OnSave)))
	}
	if s.Calibration.Persist {
		opts = append(opts, session.WithCalibrateHook(func(ratio float64) {
			if _, err := c.PersistRatio(ratio); err != nil {
				log.Warn("failed to persist calibration ratio", logger.Error(err))
			}
		}))
	}

	mgr := session.NewManager(SessionConfig(s), store, c.SessionSecret(), s.WebServer.SessionTTL, log, opts...)

	var endpoint *observability.Endpoint
	if s.Telemetry.Enabled && s.Telemetry.Listen != "" {
		if endpoint, err = observability.NewEndpoint(&s.Telemetry, m, log); err != nil {
			return err
		}
	}

	if s.WebServer.Enabled {
		server, err = api.New(api.ConfigFromSettings(s), v2.Deps{
			Settings: s,
			Sessions: mgr,
			Mailbox:  mb,
			Push:     push,
			Store:    store,
			Renderer: overlay.NewRenderer(overlay.DefaultStyle, s.Video.JPEGQuality),
			Metrics:  m,
			Build:    c.Build,
			Logger:   log,
		})
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if server != nil {
		g.Go(func() error { return server.Run(gctx) })
	}
	if endpoint != nil {
		g.Go(func() error { return endpoint.Run(gctx) })
	}
	if mqttClient != nil {
		g.Go(func() error {
			// the client keeps reconnecting after a failed first attempt
			if err := mqttClient.Connect(gctx); err != nil {
				log.Warn("mqtt connect failed", logger.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := src.Run(gctx, mb); err != nil {
			return fmt.Errorf("video source %s: %w", src.Name(), err)
		}
		return nil
	})
	g.Go(func() error { return mgr.Run(gctx) })

	log.Info("camruler started",
		logger.String("version", c.Build.GetVersion()),
		logger.String("video_source", src.Name()),
		logger.Bool("web", s.WebServer.Enabled),
		logger.String("csv", s.Output.CSV.Path))

	err = g.Wait()
	log.Info("camruler stopped")
	return err
}
