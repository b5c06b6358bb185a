package runner

import (
	"bytes"
	"sync"
)

// maxCaptureBytes bounds a capture stream when the spec carries no
// explicit limit.
const maxCaptureBytes = 4 << 20

// captureBuffer collects at most max bytes of a child's output stream.
// Writes past the cap are discarded but reported as written, so the
// child keeps running instead of blocking on a full pipe. Safe for a
// concurrent writer and reader; a timed-out child's pipe copier may
// still be writing while the result is read.
type captureBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func newCaptureBuffer(max int) *captureBuffer {
	if max <= 0 {
		max = maxCaptureBytes
	}
	return &captureBuffer{max: max}
}

func (b *captureBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remaining := b.max - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *captureBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
