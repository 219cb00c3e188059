package video

import (
	"strings"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// stderrTail keeps the last bytes ffmpeg wrote to stderr so failures can be
// logged with their cause.
type stderrTail struct {
	mu  sync.Mutex
	rb  *ringbuffer.RingBuffer
	cap int
}

func newStderrTail(size int) *stderrTail {
	return &stderrTail{rb: ringbuffer.New(size), cap: size}
}

// Write never fails; older output is discarded to make room.
func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	if len(p) > t.cap {
		p = p[len(p)-t.cap:]
	}
	if need := len(p) - t.rb.Free(); need > 0 {
		discard := make([]byte, need)
		_, _ = t.rb.Read(discard)
	}
	if _, err := t.rb.Write(p); err != nil && err != ringbuffer.ErrIsFull {
		return n, err
	}
	return n, nil
}

// String drains the buffer and returns its content, trimmed.
func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := make([]byte, t.rb.Length())
	n, _ := t.rb.Read(buf)
	return strings.TrimSpace(string(buf[:n]))
}

func (t *stderrTail) Reset() {
	t.mu.Lock()
	t.rb.Reset()
	t.mu.Unlock()
}
