package runner

import (
	"context"
	"fmt"
	"strings"

	"crucible/internal/exec/probe"
)

// Mode is the configured backend preference.
type Mode string

const (
	// ModeLocal always uses the process backend.
	ModeLocal Mode = "local"
	// ModeContainer prefers the container backend, falling back to the
	// process backend when the runtime is unreachable.
	ModeContainer Mode = "container"
	// ModeAuto behaves like ModeContainer but degrades silently.
	ModeAuto Mode = "auto"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLocal:
		return ModeLocal, nil
	case ModeContainer:
		return ModeContainer, nil
	case ModeAuto, "":
		return ModeAuto, nil
	}
	return "", fmt.Errorf("unknown execution mode %q", s)
}

// infraPatterns are error-message fragments that indicate the container
// infrastructure itself failed, as opposed to the submitted code.
var infraPatterns = []string{
	"cannot connect to the docker daemon",
	"docker daemon is not running",
	"daemon unreachable",
	"error during connect",
	"connection refused",
	"no such host",
	"executable file not found",
	"command not found",
	"permission denied while trying to connect",
	"dial unix /var/run/docker.sock",
}

// IsInfraError reports whether an error message matches a known
// infrastructure-unavailability pattern.
func IsInfraError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range infraPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Plan is the backend state for one run. It starts on the preferred
// backend and may downgrade to the process backend once, mid-run, when a
// container execution fails with an infrastructure error. It never
// upgrades back.
type Plan struct {
	current    Backend
	downgraded bool
}

// NewPlan resolves the starting backend from the configured mode and the
// capability probe.
func NewPlan(ctx context.Context, mode Mode, p probe.CapabilityProbe) *Plan {
	backend := BackendProcess
	if mode == ModeContainer || mode == ModeAuto {
		if p.ContainerAvailable(ctx) {
			backend = BackendContainer
		}
	}
	return &Plan{current: backend}
}

// Current returns the backend the next execution should use.
func (p *Plan) Current() Backend {
	return p.current
}

// Downgraded reports whether a mid-run fallback has happened.
func (p *Plan) Downgraded() bool {
	return p.downgraded
}

// ObserveFailure inspects an execution error and downgrades to the process
// backend when it looks like the container infrastructure, not the code,
// failed. Returns true when the failed execution should be retried on the
// new backend.
func (p *Plan) ObserveFailure(err error) bool {
	if err == nil || p.current != BackendContainer {
		return false
	}
	if !IsInfraError(err.Error()) {
		return false
	}
	p.current = BackendProcess
	p.downgraded = true
	return true
}
