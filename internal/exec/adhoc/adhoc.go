package adhoc

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"crucible/internal/exec/lang"
	"crucible/internal/exec/remote"
	"crucible/internal/exec/service"
	apperrors "crucible/pkg/errors"
	"crucible/pkg/utils/logger"
)

// TruncationMarker is appended once when stdout itself had to be cut.
const TruncationMarker = "[output truncated]"

// ErrorClass categorizes a failed execution.
type ErrorClass string

const (
	ClassNone           ErrorClass = ""
	ClassCompile        ErrorClass = "compile"
	ClassRuntime        ErrorClass = "runtime"
	ClassTimeout        ErrorClass = "timeout"
	ClassInfrastructure ErrorClass = "infrastructure"
)

// Limits are caller-supplied execution bounds, clamped against config.
type Limits struct {
	TimeoutMs int `json:"timeoutMs"`
}

// Result is the outcome of a custom-input execution.
type Result struct {
	Stdout     string     `json:"stdout"`
	Stderr     string     `json:"stderr"`
	ExitCode   int        `json:"exitCode"`
	TimedOut   bool       `json:"timedOut"`
	Truncated  bool       `json:"truncated"`
	DurationMs int64      `json:"durationMs"`
	Success    bool       `json:"success"`
	ErrorClass ErrorClass `json:"errorClass,omitempty"`
}

// Config bounds the ad-hoc execution path.
type Config struct {
	// MaxCodeBytes rejects oversized source before anything is spawned.
	// Default: 64 KiB.
	MaxCodeBytes int `yaml:"maxCodeBytes"`

	// MaxStdinBytes rejects oversized custom input. Default: 16 KiB.
	MaxStdinBytes int `yaml:"maxStdinBytes"`

	// MaxOutputBytes is the combined stdout+stderr ceiling. Default: 64 KiB.
	MaxOutputBytes int `yaml:"maxOutputBytes"`

	// DefaultTimeout applies when the caller supplies no limit.
	// Default: 10s. MaxTimeout clamps caller-supplied limits. Default: 30s.
	DefaultTimeout time.Duration `yaml:"defaultTimeout"`
	MaxTimeout     time.Duration `yaml:"maxTimeout"`
}

func (c *Config) setDefaults() {
	if c.MaxCodeBytes <= 0 {
		c.MaxCodeBytes = 64 << 10
	}
	if c.MaxStdinBytes <= 0 {
		c.MaxStdinBytes = 16 << 10
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = 64 << 10
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 10 * time.Second
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = 30 * time.Second
	}
}

// Service is the interactive "run with custom input" path. Languages with
// a local toolchain run through the process runner; the rest are offloaded
// to the remote compilation provider.
type Service struct {
	cfg      Config
	runner   *service.RunnerService
	provider *remote.Client
}

// NewService wires the ad-hoc path. provider may be nil when no remote
// provider is configured; remote-only languages then fail with a clear
// infrastructure error.
func NewService(cfg Config, runner *service.RunnerService, provider *remote.Client) *Service {
	cfg.setDefaults()
	return &Service{cfg: cfg, runner: runner, provider: provider}
}

// Execute validates sizes, runs the code and classifies the outcome.
func (s *Service) Execute(ctx context.Context, language lang.Language, code, stdin string, limits *Limits) (*Result, error) {
	if len(code) == 0 {
		return nil, apperrors.New(apperrors.InvalidParams).WithMessage("code is required")
	}
	if len(code) > s.cfg.MaxCodeBytes {
		return nil, apperrors.Newf(apperrors.CodeTooLarge, "code exceeds %d bytes", s.cfg.MaxCodeBytes)
	}
	if len(stdin) > s.cfg.MaxStdinBytes {
		return nil, apperrors.Newf(apperrors.StdinTooLarge, "stdin exceeds %d bytes", s.cfg.MaxStdinBytes)
	}

	timeout := s.cfg.DefaultTimeout
	if limits != nil && limits.TimeoutMs > 0 {
		timeout = time.Duration(limits.TimeoutMs) * time.Millisecond
		if timeout > s.cfg.MaxTimeout {
			timeout = s.cfg.MaxTimeout
		}
	}

	cfg := lang.ConfigOf(language)
	var result *Result
	var err error
	if cfg.HasLocalRunner() {
		result, err = s.executeLocal(ctx, language, code, stdin, timeout)
	} else {
		result, err = s.executeRemote(ctx, language, code, stdin)
	}
	if err != nil {
		if infra := infraResult(err); infra != nil {
			return infra, nil
		}
		return nil, err
	}

	result.Stdout, result.Stderr, result.Truncated = Truncate(result.Stdout, result.Stderr, s.cfg.MaxOutputBytes)
	result.ErrorClass = Classify(language, result.ExitCode, result.TimedOut, result.Stderr)
	result.Success = result.ErrorClass == ClassNone
	return result, nil
}

func (s *Service) executeLocal(ctx context.Context, language lang.Language, code, stdin string, timeout time.Duration) (*Result, error) {
	out, err := s.runner.RunAdhoc(ctx, language, code, stdin, timeout)
	if err != nil {
		return nil, err
	}
	return &Result{
		Stdout:     out.Stdout,
		Stderr:     out.Stderr,
		ExitCode:   out.ExitCode,
		TimedOut:   out.TimedOut,
		DurationMs: out.DurationMs,
	}, nil
}

func (s *Service) executeRemote(ctx context.Context, language lang.Language, code, stdin string) (*Result, error) {
	if s.provider == nil {
		return nil, apperrors.Newf(apperrors.ProviderUnavailable, "no execution provider configured for %s", language)
	}
	start := time.Now()
	out, err := s.provider.Execute(ctx, language, code, stdin)
	if err != nil {
		return nil, err
	}
	return &Result{
		Stdout:     out.Stdout,
		Stderr:     out.Stderr,
		ExitCode:   out.ExitCode,
		TimedOut:   out.TimedOut,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// infraResult converts an infrastructure-level failure into a classified
// result so the HTTP layer can report it without a 500.
func infraResult(err error) *Result {
	switch apperrors.GetCode(err) {
	case apperrors.SandboxUnavailable, apperrors.ProviderUnavailable, apperrors.InterpreterMissing:
		logger.Warn(context.Background(), "ad-hoc execution hit infrastructure failure", zap.Error(err))
		return &Result{
			Stderr:     apperrors.GetError(err).Message,
			ExitCode:   -1,
			ErrorClass: ClassInfrastructure,
		}
	}
	return nil
}

// Truncate applies the output ceiling. stdout is preserved in full while
// stderr absorbs the cut; when stdout alone leaves no room it is cut
// itself and stderr dropped. The marker is appended exactly once and
// counts against the ceiling, so the combined result never exceeds it.
func Truncate(stdout, stderr string, ceiling int) (string, string, bool) {
	if len(stdout)+len(stderr) <= ceiling {
		return stdout, stderr, false
	}
	if len(stdout)+len(TruncationMarker) <= ceiling {
		keep := ceiling - len(stdout) - len(TruncationMarker)
		return stdout, stderr[:keep] + TruncationMarker, true
	}
	keep := ceiling - len(TruncationMarker)
	if keep < 0 {
		keep = 0
	}
	return stdout[:keep] + TruncationMarker, "", true
}

// Classify infers the error class from the exit code, timeout flag and
// stderr keywords.
func Classify(language lang.Language, exitCode int, timedOut bool, stderr string) ErrorClass {
	if timedOut {
		return ClassTimeout
	}
	if exitCode == 0 {
		return ClassNone
	}
	lower := strings.ToLower(stderr)
	for _, kw := range lang.ConfigOf(language).CompileKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return ClassCompile
		}
	}
	return ClassRuntime
}
