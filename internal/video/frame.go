// Package video produces live camera frames and hands the most recent one to
// readers through a single-slot mailbox.
package video

import (
	"bytes"
	"image"
	_ "image/jpeg" // registers the JPEG decoder for DecodeConfig
	"slices"
	"time"

	"github.com/camruler/camruler/internal/errors"
)

const componentName = "video"

var (
	// ErrNoFrame means no frame has been produced yet.
	ErrNoFrame = errors.NewStd("no frame available")
	// ErrInvalidFrame means frame data is not a decodable JPEG.
	ErrInvalidFrame = errors.NewStd("invalid frame data")
)

// Frame is one JPEG-encoded image from the live feed.
type Frame struct {
	Data     []byte    // JPEG bytes
	Width    int       // pixels
	Height   int       // pixels
	Seq      uint64    // assigned by the mailbox, increases by one per Put
	Captured time.Time // when the producer received the frame
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	f.Data = slices.Clone(f.Data)
	return f
}

// Contains reports whether (x, y) lies inside the frame.
func (f Frame) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// DecodeJPEG validates data as a JPEG and builds a Frame around it. Only the
// header is parsed.
func DecodeJPEG(data []byte) (Frame, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || format != "jpeg" {
		return Frame{}, errors.New(ErrInvalidFrame).
			Component(componentName).
			Category(errors.CategoryVideoSource).
			Context("bytes", len(data)).
			Build()
	}
	return Frame{
		Data:     data,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Captured: time.Now(),
	}, nil
}
