package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"crucible/internal/common/mq"
	"crucible/internal/exec/lang"
	"crucible/internal/exec/probe"
	"crucible/internal/exec/runner"
	execsvc "crucible/internal/exec/service"
	"crucible/internal/judge/model"
	"crucible/internal/judge/repository"
	"crucible/internal/judge/scoring"
	"crucible/internal/judge/service"
	apperrors "crucible/pkg/errors"
)

type fakeSubmissions struct {
	running   []string
	graded    map[string]int
	failed    map[string]string
	gradedErr error
}

func newFakeSubmissions() *fakeSubmissions {
	return &fakeSubmissions{graded: map[string]int{}, failed: map[string]string{}}
}

func (f *fakeSubmissions) Create(ctx context.Context, s *model.Submission) error { return nil }
func (f *fakeSubmissions) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	return nil, apperrors.New(apperrors.SubmissionNotFound)
}
func (f *fakeSubmissions) MarkRunning(ctx context.Context, id, runID string) error {
	f.running = append(f.running, id)
	return nil
}
func (f *fakeSubmissions) MarkGraded(ctx context.Context, id string, score int) error {
	if f.gradedErr != nil {
		return f.gradedErr
	}
	f.graded[id] = score
	return nil
}
func (f *fakeSubmissions) MarkFailed(ctx context.Context, id, judgeError string) error {
	f.failed[id] = judgeError
	return nil
}
func (f *fakeSubmissions) ResetForRetry(ctx context.Context, id string) error { return nil }

type fakeRuns struct {
	created   []*model.Run
	completed []*model.Run
	tests     map[string][]model.RunTest
	failedMsg map[string]string
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{tests: map[string][]model.RunTest{}, failedMsg: map[string]string{}}
}

func (f *fakeRuns) CreateRun(ctx context.Context, run *model.Run) error {
	f.created = append(f.created, run)
	return nil
}
func (f *fakeRuns) CompleteRun(ctx context.Context, run *model.Run, tests []model.RunTest) error {
	f.completed = append(f.completed, run)
	f.tests[run.ID] = tests
	return nil
}
func (f *fakeRuns) FailRun(ctx context.Context, runID, errorMessage string) error {
	f.failedMsg[runID] = errorMessage
	return nil
}
func (f *fakeRuns) GetLatestRun(ctx context.Context, submissionID string) (*model.Run, error) {
	return nil, apperrors.New(apperrors.RunNotFound)
}
func (f *fakeRuns) GetRunTests(ctx context.Context, runID string) ([]model.RunTest, error) {
	return f.tests[runID], nil
}

type fakeStatus struct {
	views map[string]repository.SubmissionStatusView
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{views: map[string]repository.SubmissionStatusView{}}
}

func (f *fakeStatus) SetStatus(ctx context.Context, view repository.SubmissionStatusView) error {
	f.views[view.SubmissionID] = view
	return nil
}
func (f *fakeStatus) GetStatus(ctx context.Context, submissionID string) (*repository.SubmissionStatusView, error) {
	if v, ok := f.views[submissionID]; ok {
		return &v, nil
	}
	return nil, nil
}
func (f *fakeStatus) JudgingEnabled(ctx context.Context) (bool, error)     { return true, nil }
func (f *fakeStatus) SetJudgingEnabled(ctx context.Context, on bool) error { return nil }

type fakeChallenges struct {
	tests    []model.TestCase
	baseline *model.Baseline
}

func (f *fakeChallenges) GetTestCases(ctx context.Context, challengeID string) ([]model.TestCase, error) {
	return f.tests, nil
}
func (f *fakeChallenges) GetBaseline(ctx context.Context, challengeID string, language lang.Language) (*model.Baseline, error) {
	return f.baseline, nil
}

type fakeProbe struct{}

func (fakeProbe) ContainerAvailable(ctx context.Context) bool { return false }
func (fakeProbe) Interpreter(l lang.Language) (probe.Command, bool) {
	return probe.Command{Path: "/usr/bin/python3"}, true
}

type scriptedRunner struct {
	outputs []runner.Output
	err     error
}

func (f *scriptedRunner) Run(ctx context.Context, spec runner.Spec) (runner.Output, error) {
	if f.err != nil {
		return runner.Output{}, f.err
	}
	if len(f.outputs) == 0 {
		return runner.Output{}, errors.New("no scripted output left")
	}
	next := f.outputs[0]
	f.outputs = f.outputs[1:]
	return next, nil
}

type harness struct {
	worker      *Worker
	submissions *fakeSubmissions
	runs        *fakeRuns
	status      *fakeStatus
}

func newHarness(challenges *fakeChallenges, process runner.Runner) *harness {
	submissions := newFakeSubmissions()
	runs := newFakeRuns()
	status := newFakeStatus()
	runnerSvc := execsvc.NewRunnerService(runner.ModeLocal, fakeProbe{}, process, nil)
	judge := service.NewJudgeService(challenges, runnerSvc, model.DefaultLimits())
	engine := scoring.NewHTTPEngine(scoring.HTTPEngineConfig{})
	return &harness{
		worker:      New(nil, submissions, runs, status, judge, engine),
		submissions: submissions,
		runs:        runs,
		status:      status,
	}
}

func judgeMessage(t *testing.T) *mq.Message {
	t.Helper()
	return &mq.Message{
		ID: "sub-1",
		Body: []byte(`{
			"submissionId": "sub-1",
			"challengeId": "ch-1",
			"userId": "user-1",
			"code": "def solve():\n    return 42\nprint(solve())",
			"language": "python"
		}`),
	}
}

func TestHandleGradesSubmission(t *testing.T) {
	challenges := &fakeChallenges{
		tests: []model.TestCase{
			{ID: "t1", ExpectedOutput: "42", Points: 3, TimeoutMs: 1000},
		},
		baseline: &model.Baseline{RuntimeMs: 2000},
	}
	process := &scriptedRunner{outputs: []runner.Output{
		{Stdout: "42\n", Duration: 1000 * time.Millisecond},
	}}
	h := newHarness(challenges, process)

	if err := h.worker.Handle(context.Background(), judgeMessage(t)); err != nil {
		t.Fatal(err)
	}

	if len(h.runs.created) != 1 || len(h.runs.completed) != 1 {
		t.Fatalf("runs created=%d completed=%d", len(h.runs.created), len(h.runs.completed))
	}
	run := h.runs.completed[0]
	if run.ScoreCorrectness != 40 || run.ScoreEfficiency != 15 || run.ScoreStyle != 5 {
		t.Fatalf("scores = %d/%d/%d", run.ScoreCorrectness, run.ScoreEfficiency, run.ScoreStyle)
	}

	// The local fallback engine sums the components.
	if score := h.submissions.graded["sub-1"]; score != 60 {
		t.Fatalf("graded score = %d, want 60", score)
	}
	if h.status.views["sub-1"].Status != model.JudgeCompleted {
		t.Fatalf("status = %s", h.status.views["sub-1"].Status)
	}
	for _, rt := range h.runs.tests[run.ID] {
		if rt.RunID != run.ID {
			t.Fatalf("run test %s has runID %q", rt.TestCaseID, rt.RunID)
		}
	}
	// Each persisted test keeps the output the submission produced.
	if got := h.runs.tests[run.ID][0].Output; got != "42\n" {
		t.Fatalf("run test output = %q, want the captured stdout", got)
	}
}

func TestHandleAcksMalformedPayload(t *testing.T) {
	h := newHarness(&fakeChallenges{}, &scriptedRunner{})

	err := h.worker.Handle(context.Background(), &mq.Message{ID: "x", Body: []byte("not json")})
	if err != nil {
		t.Fatal("malformed payloads must be acknowledged, not retried")
	}
	if len(h.runs.created) != 0 {
		t.Fatal("no run should be created for a malformed payload")
	}
}

func TestHandleNotJudgeReadyFailsWithoutRetry(t *testing.T) {
	// No baseline means the challenge is not judge-ready.
	challenges := &fakeChallenges{tests: []model.TestCase{{ID: "t1"}}}
	h := newHarness(challenges, &scriptedRunner{})

	if err := h.worker.Handle(context.Background(), judgeMessage(t)); err != nil {
		t.Fatal("a configuration problem must not trigger queue retries")
	}
	if _, ok := h.submissions.failed["sub-1"]; !ok {
		t.Fatal("submission should be marked failed")
	}
	if h.status.views["sub-1"].Status != model.JudgeFailed {
		t.Fatalf("status = %s", h.status.views["sub-1"].Status)
	}
}

func TestHandleInfrastructureFailureIsRetryable(t *testing.T) {
	challenges := &fakeChallenges{
		tests: []model.TestCase{
			{ID: "t1", ExpectedOutput: "1", Points: 1, TimeoutMs: 1000},
			{ID: "t2", ExpectedOutput: "2", Points: 1, TimeoutMs: 1000},
		},
		baseline: &model.Baseline{RuntimeMs: 1000},
	}
	process := &scriptedRunner{err: errors.New("dial unix /var/run/docker.sock: connect: connection refused")}
	h := newHarness(challenges, process)

	err := h.worker.Handle(context.Background(), judgeMessage(t))
	if err == nil {
		t.Fatal("an all-infrastructure failure must surface for queue retry")
	}
	if code := apperrors.GetCode(err); code != apperrors.SandboxUnavailable {
		t.Fatalf("error code = %d, want sandbox unavailable", code)
	}
	if !apperrors.GetError(err).Code.Retryable() {
		t.Fatal("sandbox unavailability must be retryable")
	}
	if _, ok := h.submissions.failed["sub-1"]; !ok {
		t.Fatal("submission should still be marked failed for visibility")
	}
}

func TestHandleCodeFailureIsNotInfrastructure(t *testing.T) {
	challenges := &fakeChallenges{
		tests: []model.TestCase{
			{ID: "t1", ExpectedOutput: "1", Points: 1, TimeoutMs: 1000},
			{ID: "t2", ExpectedOutput: "2", Points: 1, TimeoutMs: 1000},
		},
		baseline: &model.Baseline{RuntimeMs: 1000},
	}
	// One infra-looking error plus one genuine wrong answer: the code, not
	// the infrastructure, is at fault, so the run completes with low scores.
	process := &scriptedRunner{outputs: []runner.Output{
		{Stdout: "", ExitCode: 1, Duration: 10 * time.Millisecond},
		{Stdout: "wrong", Duration: 10 * time.Millisecond},
	}}
	h := newHarness(challenges, process)

	if err := h.worker.Handle(context.Background(), judgeMessage(t)); err != nil {
		t.Fatal(err)
	}
	if len(h.runs.completed) != 1 {
		t.Fatal("the run should complete normally")
	}
	if h.runs.completed[0].ScoreCorrectness != 0 {
		t.Fatalf("correctness = %d, want 0", h.runs.completed[0].ScoreCorrectness)
	}
}

func TestHandlePersistenceErrorRethrows(t *testing.T) {
	challenges := &fakeChallenges{
		tests:    []model.TestCase{{ID: "t1", ExpectedOutput: "42", Points: 1, TimeoutMs: 1000}},
		baseline: &model.Baseline{RuntimeMs: 1000},
	}
	process := &scriptedRunner{outputs: []runner.Output{
		{Stdout: "42", Duration: 10 * time.Millisecond},
	}}
	h := newHarness(challenges, process)
	h.submissions.gradedErr = apperrors.New(apperrors.DatabaseError)

	err := h.worker.Handle(context.Background(), judgeMessage(t))
	if apperrors.GetCode(err) != apperrors.DatabaseError {
		t.Fatalf("error = %v, want database error for queue retry", err)
	}
	if _, ok := h.submissions.failed["sub-1"]; !ok {
		t.Fatal("failure should be recorded before rethrowing")
	}
}
