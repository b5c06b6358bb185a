package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crucible/internal/exec/lang"
	"crucible/internal/exec/probe"
	"crucible/internal/exec/runner"
	apperrors "crucible/pkg/errors"
	"crucible/pkg/utils/logger"
)

// TestStatus is the outcome of a single test execution.
type TestStatus string

const (
	TestPassed TestStatus = "passed"
	TestFailed TestStatus = "failed"
	TestError  TestStatus = "error"
)

// TestCase is one hidden input/expected-output pair.
type TestCase struct {
	ID             string
	OrderIndex     int
	Input          string
	ExpectedOutput string
	Points         int
	TimeoutMs      int
	MemoryMB       int
	MaxOutputBytes int
}

// TestResult is the per-test execution record.
type TestResult struct {
	TestCaseID   string
	OrderIndex   int
	Status       TestStatus
	Stdout       string
	Stderr       string
	ExitCode     int
	TimedOut     bool
	DurationMs   int64
	PointsEarned int
	Message      string
}

// RunResult aggregates all test executions of one submission.
type RunResult struct {
	Backend    string
	Downgraded bool
	Tests      []TestResult
}

// AdhocResult is the raw outcome of a single custom-input execution.
type AdhocResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	TimedOut   bool
	DurationMs int64
}

// RunnerService selects a backend, prepares a scratch work directory and
// executes submissions test by test.
type RunnerService struct {
	mode      runner.Mode
	probe     probe.CapabilityProbe
	process   runner.Runner
	container runner.Runner
}

// NewRunnerService wires a runner service. container may be nil when no
// container runtime client could be constructed; the plan then resolves to
// the process backend regardless of mode.
func NewRunnerService(mode runner.Mode, p probe.CapabilityProbe, process, container runner.Runner) *RunnerService {
	return &RunnerService{mode: mode, probe: p, process: process, container: container}
}

// RunTests executes every test case sequentially and scores each by
// trimmed exact-match comparison. It returns nil when tests is empty; a
// failing test never produces an error return.
func (s *RunnerService) RunTests(ctx context.Context, language lang.Language, code string, tests []TestCase) (*RunResult, error) {
	if len(tests) == 0 {
		return nil, nil
	}

	ordered := make([]TestCase, len(tests))
	copy(ordered, tests)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].OrderIndex < ordered[j].OrderIndex })

	cfg := lang.ConfigOf(language)
	if !cfg.HasLocalRunner() {
		return nil, apperrors.Newf(apperrors.LanguageNotSupported, "%s has no local runner", language)
	}

	workDir, cleanup, err := s.prepareWorkDir(code, cfg.SourceFile)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	plan := runner.NewPlan(ctx, s.mode, s.probe)
	if s.container == nil && plan.Current() == runner.BackendContainer {
		plan = runner.NewPlan(ctx, runner.ModeLocal, s.probe)
	}

	// Interpreter resolution is deferred to first use so that a
	// container-only worker never probes the host toolchain.
	var localCmd probe.Command
	var localResolved, localMissing bool

	result := &RunResult{Tests: make([]TestResult, 0, len(ordered))}
	for _, tc := range ordered {
		tr := TestResult{TestCaseID: tc.ID, OrderIndex: tc.OrderIndex}

		spec := runner.Spec{
			WorkDir:        workDir,
			Stdin:          tc.Input,
			Timeout:        time.Duration(tc.TimeoutMs) * time.Millisecond,
			Image:          cfg.Image,
			MemoryMB:       tc.MemoryMB,
			MaxOutputBytes: tc.MaxOutputBytes,
			CPUFraction:    0.5,
		}

		for {
			backend := plan.Current()
			if backend == runner.BackendContainer {
				spec.Command = cfg.Interpreter
				spec.Args = append(append([]string(nil), cfg.RunArgs...), cfg.SourceFile)
			} else {
				if !localResolved {
					var found bool
					localCmd, found = s.probe.Interpreter(language)
					localMissing = !found
					localResolved = true
				}
				if localMissing {
					tr.Status = TestError
					tr.Message = fmt.Sprintf("no %s interpreter found on host", language)
					break
				}
				spec.Command = localCmd.Path
				spec.Args = append(append([]string(nil), localCmd.Args...), filepath.Join(workDir, cfg.SourceFile))
			}

			out, runErr := s.backendFor(backend).Run(ctx, spec)
			if runErr != nil {
				if plan.ObserveFailure(runErr) {
					logger.Warn(ctx, "container backend failed, downgrading to process backend",
						zap.String("test", tc.ID), zap.Error(runErr))
					continue
				}
				tr.Status = TestError
				tr.Message = runErr.Error()
				break
			}

			tr.Stdout = out.Stdout
			tr.Stderr = out.Stderr
			tr.ExitCode = out.ExitCode
			tr.TimedOut = out.TimedOut
			tr.DurationMs = out.Duration.Milliseconds()
			scoreTest(&tr, tc)
			break
		}

		result.Tests = append(result.Tests, tr)
	}

	result.Backend = plan.Current().String()
	result.Downgraded = plan.Downgraded()
	return result, nil
}

// RunAdhoc executes code once with caller-supplied stdin on the process
// backend. There is no expected output and no comparison.
func (s *RunnerService) RunAdhoc(ctx context.Context, language lang.Language, code, stdin string, timeout time.Duration) (*AdhocResult, error) {
	cfg := lang.ConfigOf(language)
	if !cfg.HasLocalRunner() {
		return nil, apperrors.Newf(apperrors.LanguageNotSupported, "%s has no local runner", language)
	}

	cmd, found := s.probe.Interpreter(language)
	if !found {
		return nil, apperrors.Newf(apperrors.InterpreterMissing, "no %s interpreter found on host", language)
	}

	workDir, cleanup, err := s.prepareWorkDir(code, cfg.SourceFile)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out, err := s.process.Run(ctx, runner.Spec{
		Command: cmd.Path,
		Args:    append(append([]string(nil), cmd.Args...), filepath.Join(workDir, cfg.SourceFile)),
		WorkDir: workDir,
		Stdin:   stdin,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	return &AdhocResult{
		Stdout:     out.Stdout,
		Stderr:     out.Stderr,
		ExitCode:   out.ExitCode,
		TimedOut:   out.TimedOut,
		DurationMs: out.Duration.Milliseconds(),
	}, nil
}

func (s *RunnerService) backendFor(b runner.Backend) runner.Runner {
	if b == runner.BackendContainer && s.container != nil {
		return s.container
	}
	return s.process
}

// prepareWorkDir writes the source into a fresh scratch directory. Cleanup
// is best effort.
func (s *RunnerService) prepareWorkDir(code, sourceFile string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "crucible-run-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.InternalServerError)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	if err := os.WriteFile(filepath.Join(dir, sourceFile), []byte(code), 0o644); err != nil {
		cleanup()
		return "", nil, apperrors.Wrap(err, apperrors.InternalServerError)
	}
	return dir, cleanup, nil
}

// scoreTest applies the pass/fail rule: a timeout or non-zero exit is an
// error before any comparison; otherwise trimmed outputs must match
// exactly.
func scoreTest(tr *TestResult, tc TestCase) {
	if tr.TimedOut {
		tr.Status = TestError
		tr.Message = "time limit exceeded"
		return
	}
	if tr.ExitCode != 0 {
		tr.Status = TestError
		tr.Message = "process exited with a non-zero status"
		return
	}
	if strings.TrimSpace(tr.Stdout) == strings.TrimSpace(tc.ExpectedOutput) {
		tr.Status = TestPassed
		tr.PointsEarned = tc.Points
		return
	}
	tr.Status = TestFailed
}
