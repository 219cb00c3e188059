package video

import (
	"context"
	"time"

	"gocv.io/x/gocv"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
)

// DeviceSource reads frames from a local camera through OpenCV.
type DeviceSource struct {
	device  int
	fps     int
	quality int
	log     logger.Logger
}

// NewDeviceSource creates a source for camera index device.
func NewDeviceSource(device, fps, quality int, log logger.Logger) *DeviceSource {
	if fps <= 0 {
		fps = 10
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &DeviceSource{device: device, fps: fps, quality: quality, log: log.Module("device")}
}

func (s *DeviceSource) Name() string { return "device" }

// Run reopens the device with backoff whenever it stops delivering frames.
func (s *DeviceSource) Run(ctx context.Context, mb *Mailbox) error {
	var backoff time.Duration
	for {
		err := s.capture(ctx, mb)
		if ctx.Err() != nil {
			return nil
		}
		backoff = nextBackoff(backoff)
		s.log.Warn("camera capture stopped, reopening",
			logger.Int("device", s.device),
			logger.Error(err),
			logger.Duration("backoff", backoff))
		if !sleepCtx(ctx, backoff) {
			return nil
		}
	}
}

func (s *DeviceSource) capture(ctx context.Context, mb *Mailbox) error {
	vc, err := gocv.OpenVideoCapture(s.device)
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryVideoSource).
			Context("device", s.device).
			Build()
	}
	defer vc.Close()
	vc.Set(gocv.VideoCaptureFPS, float64(s.fps))

	img := gocv.NewMat()
	defer img.Close()

	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()

	s.log.Info("camera opened", logger.Int("device", s.device), logger.Int("fps", s.fps))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if ok := vc.Read(&img); !ok || img.Empty() {
			return errors.Newf("camera %d returned no frame", s.device).
				Component(componentName).
				Category(errors.CategoryVideoSource).
				Build()
		}
		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, s.quality})
		if err != nil {
			return errors.New(err).
				Component(componentName).
				Category(errors.CategoryImageProcessing).
				Context("operation", "encode_frame").
				Build()
		}
		data := append([]byte(nil), buf.GetBytes()...)
		buf.Close()
		mb.Put(Frame{Data: data, Width: img.Cols(), Height: img.Rows(), Captured: time.Now()})
	}
}
