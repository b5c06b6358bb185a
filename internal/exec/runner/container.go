package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	apperrors "crucible/pkg/errors"
)

const (
	sandboxMount = "/box"

	defaultMemoryMB    = 256
	defaultCPUFraction = 0.5
	cpuPeriod          = 100000
)

// ContainerRunner runs code inside a throwaway container. The work
// directory is mounted read-only, the network is disabled and the
// container is removed when it exits.
type ContainerRunner struct {
	cli *client.Client
}

func NewContainerRunner() (*ContainerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.SandboxUnavailable)
	}
	return &ContainerRunner{cli: cli}, nil
}

func (r *ContainerRunner) Close() error {
	return r.cli.Close()
}

func (r *ContainerRunner) Run(ctx context.Context, spec Spec) (Output, error) {
	memoryMB := spec.MemoryMB
	if memoryMB <= 0 {
		memoryMB = defaultMemoryMB
	}
	cpu := spec.CPUFraction
	if cpu <= 0 || cpu > 1 {
		cpu = defaultCPUFraction
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	created, err := r.cli.ContainerCreate(ctx, &container.Config{
		Image:           spec.Image,
		Cmd:             append([]string{spec.Command}, spec.Args...),
		WorkingDir:      sandboxMount,
		OpenStdin:       true,
		StdinOnce:       true,
		AttachStdin:     true,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
	}, &container.HostConfig{
		Binds: []string{
			fmt.Sprintf("%s:%s:ro", toBindPath(spec.WorkDir), sandboxMount),
		},
		NetworkMode: "none",
		AutoRemove:  true,
		Resources: container.Resources{
			Memory:     int64(memoryMB) << 20,
			MemorySwap: int64(memoryMB) << 20,
			CPUPeriod:  cpuPeriod,
			CPUQuota:   int64(cpu * cpuPeriod),
		},
	}, nil, nil, "")
	if err != nil {
		return Output{}, apperrors.Wrapf(err, apperrors.SandboxUnavailable, "container create")
	}

	attach, err := r.cli.ContainerAttach(ctx, created.ID, types.ContainerAttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return Output{}, apperrors.Wrapf(err, apperrors.SandboxUnavailable, "container attach")
	}
	defer attach.Close()

	start := time.Now()
	if err := r.cli.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		return Output{}, apperrors.Wrapf(err, apperrors.SandboxUnavailable, "container start")
	}

	// Stdin mirrors the process backend: write, close, swallow failures
	// from an already-exited container.
	go func() {
		_, _ = attach.Conn.Write([]byte(spec.Stdin))
		_ = attach.CloseWrite()
	}()

	stdout := newCaptureBuffer(spec.MaxOutputBytes)
	stderr := newCaptureBuffer(spec.MaxOutputBytes)
	copyDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, attach.Reader)
		copyDone <- err
	}()

	statusCh, errCh := r.cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case status := <-statusCh:
		awaitCopy(copyDone)
		if status.Error != nil && status.Error.Message != "" {
			return Output{}, apperrors.Newf(apperrors.SandboxUnavailable, "container wait: %s", status.Error.Message)
		}
		return Output{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: int(status.StatusCode),
			Duration: time.Since(start),
		}, nil

	case err := <-errCh:
		return Output{}, apperrors.Wrapf(err, apperrors.SandboxUnavailable, "container wait")

	case <-timer.C:
		_ = r.cli.ContainerKill(context.Background(), created.ID, "KILL")
		awaitCopy(copyDone)
		return Output{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			TimedOut: true,
			Duration: time.Since(start),
		}, nil

	case <-ctx.Done():
		_ = r.cli.ContainerKill(context.Background(), created.ID, "KILL")
		return Output{ExitCode: -1, TimedOut: true, Duration: time.Since(start)}, ctx.Err()
	}
}

func awaitCopy(done <-chan error) {
	select {
	case <-done:
	case <-time.After(killGrace):
	}
}

// toBindPath translates a host path into the form the container daemon
// expects in a bind spec. Windows drive paths become /c/... style.
func toBindPath(hostPath string) string {
	p := filepath.ToSlash(hostPath)
	if len(p) >= 2 && p[1] == ':' {
		drive := strings.ToLower(p[:1])
		p = "/" + drive + p[2:]
	}
	return p
}
