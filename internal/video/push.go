package video

import (
	"context"
	"sync/atomic"

	"github.com/camruler/camruler/internal/logger"
)

// PushSource accepts frames pushed by clients, typically the operator's
// browser webcam over a websocket.
type PushSource struct {
	log logger.Logger
	mb  atomic.Pointer[Mailbox]
}

// NewPushSource creates a push source. Ingest works once Run has attached it
// to a mailbox, or after Attach.
func NewPushSource(log logger.Logger) *PushSource {
	return &PushSource{log: log.Module("push")}
}

func (s *PushSource) Name() string { return "push" }

// Attach binds the source to mb without blocking. It is safe to call while
// frames are being ingested.
func (s *PushSource) Attach(mb *Mailbox) { s.mb.Store(mb) }

// Run attaches to mb unless the source is already attached and blocks until
// ctx is done.
func (s *PushSource) Run(ctx context.Context, mb *Mailbox) error {
	s.mb.CompareAndSwap(nil, mb)
	<-ctx.Done()
	return nil
}

// Ingest validates a JPEG and stores it as the latest frame.
func (s *PushSource) Ingest(data []byte) (Frame, error) {
	f, err := DecodeJPEG(data)
	if err != nil {
		s.log.Debug("rejected pushed frame", logger.Int("bytes", len(data)), logger.Error(err))
		return Frame{}, err
	}
	mb := s.mb.Load()
	if mb == nil {
		return Frame{}, ErrNoFrame
	}
	f.Seq = mb.Put(f)
	return f, nil
}
