package video

import (
	"context"
	"fmt"
	"time"

	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/logger"
)

// Source produces frames into a mailbox until ctx is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context, mb *Mailbox) error
}

// Restart backoff for sources that reconnect after failures.
const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// NewSource builds the source selected by settings.Source. A push source is
// returned for "push"; frames arrive through PushSource.Ingest.
func NewSource(settings *conf.VideoSettings, log logger.Logger) (Source, error) {
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	switch settings.Source {
	case conf.VideoSourcePush, "":
		return NewPushSource(log), nil
	case conf.VideoSourceDevice:
		return NewDeviceSource(settings.Device, settings.FPS, settings.JPEGQuality, log), nil
	case conf.VideoSourceRTSP:
		ffmpegPath, err := conf.ValidateToolPath(settings.FfmpegPath, conf.GetFfmpegBinaryName())
		if err != nil {
			return nil, fmt.Errorf("rtsp source: %w", err)
		}
		return NewFFmpegSource(FFmpegConfig{
			FfmpegPath: ffmpegPath,
			URL:        settings.RTSP.URL,
			Transport:  settings.RTSP.Transport,
			FPS:        settings.FPS,
		}, log), nil
	case conf.VideoSourceSnapshot:
		return NewSnapshotSource(SnapshotConfig{
			URL:      settings.Snapshot.URL,
			Interval: settings.Snapshot.Interval,
			Timeout:  settings.Snapshot.Timeout,
		}, nil, log), nil
	default:
		return nil, fmt.Errorf("unknown video source %q", settings.Source)
	}
}

// nextBackoff doubles d within [minBackoff, maxBackoff].
func nextBackoff(d time.Duration) time.Duration {
	if d < minBackoff {
		return minBackoff
	}
	return min(d*2, maxBackoff)
}

// sleepCtx waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
