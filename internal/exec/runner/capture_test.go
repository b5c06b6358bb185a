package runner

import (
	"strings"
	"sync"
	"testing"
)

func TestCaptureBufferCapsOutput(t *testing.T) {
	buf := newCaptureBuffer(10)

	n, err := buf.Write([]byte(strings.Repeat("a", 25)))
	if err != nil {
		t.Fatal(err)
	}
	if n != 25 {
		t.Fatalf("reported %d bytes written, want the full 25 so the child keeps running", n)
	}
	if got := buf.String(); got != strings.Repeat("a", 10) {
		t.Fatalf("captured %d bytes, want the 10-byte cap", len(got))
	}

	// Further writes past the cap are discarded silently.
	if _, err := buf.Write([]byte("more")); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); len(got) != 10 {
		t.Fatalf("captured %d bytes after overflow write", len(got))
	}
}

func TestCaptureBufferDefaultCap(t *testing.T) {
	buf := newCaptureBuffer(0)
	if buf.max != maxCaptureBytes {
		t.Fatalf("default cap = %d, want %d", buf.max, maxCaptureBytes)
	}
}

func TestCaptureBufferConcurrentWriteAndRead(t *testing.T) {
	// A timed-out child's pipe copier may still write while the result is
	// read; both sides must be safe to run together.
	buf := newCaptureBuffer(1 << 10)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			buf.Write([]byte("chunk"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = buf.String()
		}
	}()
	wg.Wait()

	if got := buf.String(); len(got) > 1<<10 {
		t.Fatalf("captured %d bytes, exceeds the cap", len(got))
	}
}
