package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
)

const maxSnapshotBytes = 16 << 20

// SnapshotConfig configures a camera polled for JPEG stills over HTTP.
type SnapshotConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// SnapshotSource polls a camera snapshot URL.
type SnapshotSource struct {
	cfg    SnapshotConfig
	client *http.Client
	log    logger.Logger
}

// NewSnapshotSource creates a polling source. A nil client gets one with
// cfg.Timeout.
func NewSnapshotSource(cfg SnapshotConfig, client *http.Client, log logger.Logger) *SnapshotSource {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &SnapshotSource{cfg: cfg, client: client, log: log.Module("snapshot")}
}

func (s *SnapshotSource) Name() string { return "snapshot" }

// Run polls until ctx is cancelled. Failed polls back off up to maxBackoff.
func (s *SnapshotSource) Run(ctx context.Context, mb *Mailbox) error {
	var backoff time.Duration
	for {
		wait := s.cfg.Interval
		if err := s.poll(ctx, mb); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			backoff = nextBackoff(backoff)
			wait = max(wait, backoff)
			s.log.Warn("snapshot poll failed",
				logger.String("url", SanitizeURL(s.cfg.URL)),
				logger.Error(err),
				logger.Duration("retry_in", wait))
		} else {
			backoff = 0
		}
		if !sleepCtx(ctx, wait) {
			return nil
		}
	}
}

// poll fetches one still and stores it.
func (s *SnapshotSource) poll(ctx context.Context, mb *Mailbox) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryNetwork).
			Context("operation", "snapshot_fetch").
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("snapshot returned status %d", resp.StatusCode).
			Component(componentName).
			Category(errors.CategoryNetwork).
			Context("status", resp.StatusCode).
			Build()
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes+1))
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) > maxSnapshotBytes {
		return fmt.Errorf("snapshot larger than %d bytes", maxSnapshotBytes)
	}
	f, err := DecodeJPEG(data)
	if err != nil {
		return err
	}
	mb.Put(f)
	return nil
}
