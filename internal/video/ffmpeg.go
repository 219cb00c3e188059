package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
)

const (
	stderrTailSize = 4096
	maxJPEGSize    = 8 << 20
	// A stream that ran this long before failing resets the backoff.
	healthyRunTime = 30 * time.Second
)

// FFmpegConfig configures an RTSP source decoded by ffmpeg.
type FFmpegConfig struct {
	FfmpegPath string
	URL        string
	Transport  string
	FPS        int
}

// FFmpegState is the lifecycle state of the ffmpeg process.
type FFmpegState int

const (
	StateIdle FFmpegState = iota
	StateStarting
	StateRunning
	StateBackoff
	StateStopped
)

func (s FFmpegState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// FFmpegSource runs ffmpeg against an RTSP camera and reads MJPEG frames from
// its stdout. The process is restarted with exponential backoff.
type FFmpegSource struct {
	cfg    FFmpegConfig
	log    logger.Logger
	stderr *stderrTail

	mu       sync.Mutex
	state    FFmpegState
	restarts int
}

// NewFFmpegSource creates an RTSP source. Nothing runs until Run.
func NewFFmpegSource(cfg FFmpegConfig, log logger.Logger) *FFmpegSource {
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	return &FFmpegSource{
		cfg:    cfg,
		log:    log.Module("ffmpeg"),
		stderr: newStderrTail(stderrTailSize),
	}
}

func (s *FFmpegSource) Name() string { return "rtsp" }

// State returns the current state and the number of restarts so far.
func (s *FFmpegSource) State() (FFmpegState, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.restarts
}

func (s *FFmpegSource) transition(to FFmpegState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	if to == StateStarting && from == StateBackoff {
		s.restarts++
	}
	s.mu.Unlock()
	s.log.Debug("state transition",
		logger.String("from", from.String()),
		logger.String("to", to.String()))
}

// Run keeps ffmpeg running until ctx is cancelled.
func (s *FFmpegSource) Run(ctx context.Context, mb *Mailbox) error {
	defer s.transition(StateStopped)

	var backoff time.Duration
	for {
		s.transition(StateStarting)
		started := time.Now()
		err := s.runOnce(ctx, mb)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > healthyRunTime {
			backoff = 0
		}
		backoff = nextBackoff(backoff)

		s.log.Warn("ffmpeg exited, restarting",
			logger.String("url", SanitizeURL(s.cfg.URL)),
			logger.Error(err),
			logger.String("stderr", s.stderr.String()),
			logger.Duration("backoff", backoff))

		s.transition(StateBackoff)
		if !sleepCtx(ctx, backoff) {
			return nil
		}
	}
}

func (s *FFmpegSource) args() []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-rtsp_transport", s.cfg.Transport,
		"-i", s.cfg.URL,
		"-an",
	}
	if s.cfg.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(s.cfg.FPS))
	}
	return append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "5", "pipe:1")
}

func (s *FFmpegSource) runOnce(ctx context.Context, mb *Mailbox) error {
	s.stderr.Reset()

	cmd := exec.CommandContext(ctx, s.cfg.FfmpegPath, s.args()...)
	setupProcessGroup(cmd)
	cmd.Stderr = s.stderr
	cmd.Cancel = func() error { return killProcessGroup(cmd) }

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryVideoSource).
			Context("operation", "ffmpeg_stdout_pipe").
			Build()
	}
	if err := cmd.Start(); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryVideoSource).
			Context("operation", "ffmpeg_start").
			Context("ffmpeg_path", s.cfg.FfmpegPath).
			Build()
	}
	s.transition(StateRunning)
	s.log.Info("ffmpeg started",
		logger.String("url", SanitizeURL(s.cfg.URL)),
		logger.Int("pid", cmd.Process.Pid))

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 256<<10), maxJPEGSize)
	scanner.Split(splitJPEG)
	for scanner.Scan() {
		f, err := DecodeJPEG(bytes.Clone(scanner.Bytes()))
		if err != nil {
			s.log.Debug("skipping undecodable frame", logger.Error(err))
			continue
		}
		mb.Put(f)
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	if scanErr != nil {
		_ = killProcessGroup(cmd)
		return fmt.Errorf("read frames: %w", scanErr)
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg: %w", waitErr)
	}
	return fmt.Errorf("ffmpeg: stream ended")
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images from a
// concatenated MJPEG stream. Bytes before a start-of-image marker are
// skipped.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		// keep a trailing 0xFF, it may start the next marker
		if n := len(data); n > 0 && data[n-1] == 0xFF && !atEOF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}
	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}

// SanitizeURL removes credentials from a camera URL for logging.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid url]"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
