package service

import (
	"context"

	"github.com/google/uuid"

	execsvc "crucible/internal/exec/service"

	"crucible/internal/exec/lang"
	"crucible/internal/judge/model"
	"crucible/internal/judge/repository"
	"crucible/internal/judge/scoring"
)

// Outcome is the fully scored result of judging one submission.
type Outcome struct {
	Tests       []model.RunTest
	Correctness int
	Efficiency  int
	Style       int
	TestPassed  int
	TestTotal   int
	// MeanRuntimeMs averages per-test durations, used for the run record.
	MeanRuntimeMs int64
	// Backend records which runner executed the tests, with any mid-run
	// downgrade noted.
	Backend    string
	Downgraded bool
}

// JudgeService answers judge-readiness and runs a submission's tests
// against the challenge's hidden test cases.
type JudgeService struct {
	challenges repository.ChallengeStore
	runner     *execsvc.RunnerService
	limits     model.ExecutionLimits
}

func NewJudgeService(challenges repository.ChallengeStore, runner *execsvc.RunnerService, limits model.ExecutionLimits) *JudgeService {
	return &JudgeService{
		challenges: challenges,
		runner:     runner,
		limits:     limits,
	}
}

// Ready reports whether a challenge/language pair has both test cases and
// a baseline. Judging refuses to run otherwise.
func (s *JudgeService) Ready(ctx context.Context, challengeID string, language lang.Language) (bool, error) {
	tests, err := s.challenges.GetTestCases(ctx, challengeID)
	if err != nil {
		return false, err
	}
	if len(tests) == 0 {
		return false, nil
	}
	baseline, err := s.challenges.GetBaseline(ctx, challengeID, language)
	if err != nil {
		return false, err
	}
	return baseline != nil, nil
}

// ExecuteAndScore runs all test cases for the submission and computes the
// correctness/efficiency/style components. It returns nil when the
// challenge has no test cases or no baseline for the language.
func (s *JudgeService) ExecuteAndScore(ctx context.Context, job *model.JudgeJob) (*Outcome, error) {
	cases, err := s.challenges.GetTestCases(ctx, job.ChallengeID)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, nil
	}
	baseline, err := s.challenges.GetBaseline(ctx, job.ChallengeID, job.Language)
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		return nil, nil
	}

	execCases := make([]execsvc.TestCase, 0, len(cases))
	for _, tc := range cases {
		resolved := s.limits.Resolve(&model.ExecutionLimits{TimeoutMs: tc.TimeoutMs, MemoryMB: tc.MemoryMB})
		execCases = append(execCases, execsvc.TestCase{
			ID:             tc.ID,
			OrderIndex:     tc.OrderIndex,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			Points:         tc.Points,
			TimeoutMs:      resolved.TimeoutMs,
			MemoryMB:       resolved.MemoryMB,
			MaxOutputBytes: resolved.MaxOutputBytes,
		})
	}

	result, err := s.runner.RunTests(ctx, job.Language, job.Code, execCases)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	return s.score(job, cases, baseline, result), nil
}

func (s *JudgeService) score(job *model.JudgeJob, cases []model.TestCase, baseline *model.Baseline, result *execsvc.RunResult) *Outcome {
	totalPoints := 0
	for _, tc := range cases {
		totalPoints += tc.Points
	}

	outcome := &Outcome{
		Tests:      make([]model.RunTest, 0, len(result.Tests)),
		TestTotal:  len(result.Tests),
		Backend:    result.Backend,
		Downgraded: result.Downgraded,
	}

	earned := 0
	var runtimeSum int64
	for _, tr := range result.Tests {
		earned += tr.PointsEarned
		runtimeSum += tr.DurationMs
		if tr.Status == execsvc.TestPassed {
			outcome.TestPassed++
		}
		outcome.Tests = append(outcome.Tests, model.RunTest{
			ID:            uuid.NewString(),
			TestCaseID:    tr.TestCaseID,
			OrderIndex:    tr.OrderIndex,
			Status:        model.RunTestStatus(tr.Status),
			PointsAwarded: tr.PointsEarned,
			DurationMs:    tr.DurationMs,
			Output:        tr.Stdout,
			Message:       tr.Message,
		})
	}

	if len(result.Tests) > 0 {
		outcome.MeanRuntimeMs = runtimeSum / int64(len(result.Tests))
	}

	outcome.Correctness = scoring.Correctness(earned, totalPoints)
	outcome.Style = scoring.Style(job.Language, job.Code)
	outcome.Efficiency = scoring.Efficiency(float64(outcome.MeanRuntimeMs), float64(baseline.RuntimeMs))
	return outcome
}
