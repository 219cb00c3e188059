package video

import (
	"sync/atomic"
	"time"

	"github.com/camruler/camruler/internal/errors"
)

// Mailbox holds the most recent frame. Put atomically replaces the slot and
// Latest returns a private copy, so readers never observe a partially
// written frame.
type Mailbox struct {
	slot  atomic.Pointer[Frame]
	seq   atomic.Uint64
	onPut func(Frame)
}

// MailboxOption configures a Mailbox.
type MailboxOption func(*Mailbox)

// WithOnPut registers a callback invoked after every Put. It must not retain
// the frame data.
func WithOnPut(fn func(Frame)) MailboxOption {
	return func(m *Mailbox) { m.onPut = fn }
}

// NewMailbox returns an empty mailbox.
func NewMailbox(opts ...MailboxOption) *Mailbox {
	m := &Mailbox{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Put stores f as the latest frame and returns its sequence number. The
// mailbox takes ownership of f.Data. When concurrent writers race, a frame
// never replaces one with a higher sequence number.
func (m *Mailbox) Put(f Frame) uint64 {
	f.Seq = m.seq.Add(1)
	if f.Captured.IsZero() {
		f.Captured = time.Now()
	}
	for {
		cur := m.slot.Load()
		if cur != nil && cur.Seq > f.Seq {
			return f.Seq
		}
		if m.slot.CompareAndSwap(cur, &f) {
			break
		}
	}
	if m.onPut != nil {
		m.onPut(f)
	}
	return f.Seq
}

// Latest returns a copy of the most recent frame, or ErrNoFrame.
func (m *Mailbox) Latest() (Frame, error) {
	f := m.slot.Load()
	if f == nil {
		return Frame{}, errors.New(ErrNoFrame).
			Component(componentName).
			Category(errors.CategoryVideoSource).
			Build()
	}
	return f.Clone(), nil
}

// Seq returns the sequence number of the latest frame, 0 when empty.
func (m *Mailbox) Seq() uint64 {
	if f := m.slot.Load(); f != nil {
		return f.Seq
	}
	return 0
}
