package runner

import (
	"context"
	"time"
)

// Spec describes a single execution of untrusted code.
type Spec struct {
	// Command and Args are the process to run. For the container backend
	// the command runs inside the sandbox image.
	Command string
	Args    []string

	// WorkDir is the host directory holding the source file. The container
	// backend mounts it read-only into the sandbox.
	WorkDir string

	// Stdin is written to the process and the stream closed before output
	// is awaited.
	Stdin string

	// Timeout is the wall-clock limit. On expiry the process tree is
	// hard-killed and the result finalized with TimedOut set.
	Timeout time.Duration

	// Image is the sandbox image for the container backend. Ignored by
	// the process backend.
	Image string

	// MemoryMB caps container memory. Zero means the backend default.
	MemoryMB int

	// MaxOutputBytes caps how much of each output stream is captured.
	// Zero means the backend default; output past the cap is discarded
	// so a print-looping child cannot exhaust memory.
	MaxOutputBytes int

	// CPUFraction is the share of one CPU the container may use, in
	// (0, 1]. Zero means the backend default.
	CPUFraction float64
}

// Output is the result contract shared by every backend.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Runner executes one Spec. Implementations never block past the timeout
// plus a short kill grace period.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Output, error)
}

// Backend identifies a runner implementation.
type Backend int

const (
	BackendProcess Backend = iota
	BackendContainer
)

func (b Backend) String() string {
	switch b {
	case BackendProcess:
		return "process"
	case BackendContainer:
		return "container"
	}
	return "unknown"
}
