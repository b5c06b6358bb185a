package runner

import (
	"context"
	"io"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	apperrors "crucible/pkg/errors"
)

// killGrace is how long we wait for the kill signal to propagate before
// finalizing a timed-out result anyway.
const killGrace = 500 * time.Millisecond

// ProcessRunner runs code directly on the host. Each child gets its own
// process group so the timeout kill reaches the whole tree.
type ProcessRunner struct{}

func NewProcessRunner() *ProcessRunner {
	return &ProcessRunner{}
}

func (r *ProcessRunner) Run(ctx context.Context, spec Spec) (Output, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.WorkDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := newCaptureBuffer(spec.MaxOutputBytes)
	stderr := newCaptureBuffer(spec.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Output{}, apperrors.Wrap(err, apperrors.SandboxUnavailable)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Output{}, apperrors.Wrapf(err, apperrors.SandboxUnavailable, "start %s", spec.Command)
	}
	pgid := cmd.Process.Pid

	// A short-lived process may exit before stdin is fully written; the
	// broken pipe is expected, not a runner failure.
	go func() {
		_, _ = io.WriteString(stdin, spec.Stdin)
		_ = stdin.Close()
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		out := Output{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}
		out.ExitCode = exitCodeOf(waitErr)
		return out, nil

	case <-timer.C:
		killGroup(pgid)
		awaitKill(done)
		return Output{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			TimedOut: true,
			Duration: time.Since(start),
		}, nil

	case <-ctx.Done():
		killGroup(pgid)
		awaitKill(done)
		return Output{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			TimedOut: true,
			Duration: time.Since(start),
		}, ctx.Err()
	}
}

// killGroup hard-kills the whole process group.
func killGroup(pgid int) {
	_ = unix.Kill(-pgid, unix.SIGKILL)
}

// awaitKill waits briefly for the child reaper; the caller finalizes the
// result even if the kill is still propagating.
func awaitKill(done <-chan error) {
	select {
	case <-done:
	case <-time.After(killGrace):
	}
}

func exitCodeOf(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
