package service

import (
	"context"
	"strings"
	"testing"

	"crucible/internal/exec/lang"
	"crucible/internal/judge/model"
	"crucible/internal/judge/repository"
	apperrors "crucible/pkg/errors"
)

type memSubmissions struct {
	byID   map[string]*model.Submission
	failed map[string]string
	reset  []string
}

func newMemSubmissions() *memSubmissions {
	return &memSubmissions{byID: map[string]*model.Submission{}, failed: map[string]string{}}
}

func (m *memSubmissions) Create(ctx context.Context, s *model.Submission) error {
	m.byID[s.ID] = s
	return nil
}
func (m *memSubmissions) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	if s, ok := m.byID[id]; ok {
		return s, nil
	}
	return nil, apperrors.Newf(apperrors.SubmissionNotFound, "submission %s not found", id)
}
func (m *memSubmissions) MarkRunning(ctx context.Context, id, runID string) error { return nil }
func (m *memSubmissions) MarkGraded(ctx context.Context, id string, score int) error {
	return nil
}
func (m *memSubmissions) MarkFailed(ctx context.Context, id, judgeError string) error {
	m.failed[id] = judgeError
	return nil
}
func (m *memSubmissions) ResetForRetry(ctx context.Context, id string) error {
	m.reset = append(m.reset, id)
	return nil
}

type memRuns struct {
	latest *model.Run
}

func (m *memRuns) CreateRun(ctx context.Context, run *model.Run) error { return nil }
func (m *memRuns) CompleteRun(ctx context.Context, run *model.Run, tests []model.RunTest) error {
	return nil
}
func (m *memRuns) FailRun(ctx context.Context, runID, errorMessage string) error { return nil }
func (m *memRuns) GetLatestRun(ctx context.Context, submissionID string) (*model.Run, error) {
	if m.latest == nil {
		return nil, apperrors.New(apperrors.RunNotFound)
	}
	return m.latest, nil
}
func (m *memRuns) GetRunTests(ctx context.Context, runID string) ([]model.RunTest, error) {
	return nil, nil
}

type memStatus struct {
	views map[string]repository.SubmissionStatusView
}

func newMemStatus() *memStatus {
	return &memStatus{views: map[string]repository.SubmissionStatusView{}}
}

func (m *memStatus) SetStatus(ctx context.Context, view repository.SubmissionStatusView) error {
	m.views[view.SubmissionID] = view
	return nil
}
func (m *memStatus) GetStatus(ctx context.Context, submissionID string) (*repository.SubmissionStatusView, error) {
	if v, ok := m.views[submissionID]; ok {
		return &v, nil
	}
	return nil, nil
}
func (m *memStatus) JudgingEnabled(ctx context.Context) (bool, error)     { return true, nil }
func (m *memStatus) SetJudgingEnabled(ctx context.Context, on bool) error { return nil }

type memPublisher struct {
	jobs []*model.JudgeJob
	err  error
}

func (m *memPublisher) Enqueue(ctx context.Context, job *model.JudgeJob) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type submissionHarness struct {
	svc         *SubmissionService
	submissions *memSubmissions
	runs        *memRuns
	status      *memStatus
	publisher   *memPublisher
}

func newSubmissionHarness() *submissionHarness {
	h := &submissionHarness{
		submissions: newMemSubmissions(),
		runs:        &memRuns{},
		status:      newMemStatus(),
		publisher:   &memPublisher{},
	}
	h.svc = NewSubmissionService(h.submissions, h.runs, h.status, h.publisher, 0)
	return h
}

func validSubmit() SubmitRequest {
	return SubmitRequest{
		ChallengeID: "ch-1",
		UserID:      "user-1",
		Code:        "print(42)",
		Language:    "python",
	}
}

func TestSubmitCreatesAndEnqueues(t *testing.T) {
	h := newSubmissionHarness()

	sub, err := h.svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatal(err)
	}
	if sub.ID == "" {
		t.Fatal("submission needs an id")
	}
	if sub.Status != model.SubmissionPending || sub.JudgeStatus != model.JudgeQueued {
		t.Fatalf("status = %s/%s", sub.Status, sub.JudgeStatus)
	}
	if sub.Language != lang.Python {
		t.Fatalf("language = %s", sub.Language)
	}

	if len(h.publisher.jobs) != 1 {
		t.Fatalf("enqueued %d jobs", len(h.publisher.jobs))
	}
	job := h.publisher.jobs[0]
	if job.SubmissionID != sub.ID || job.Code != sub.Code || job.Language != sub.Language {
		t.Fatalf("job = %+v", job)
	}
	if h.status.views[sub.ID].Status != model.JudgeQueued {
		t.Fatalf("cached status = %s", h.status.views[sub.ID].Status)
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newSubmissionHarness()
	ctx := context.Background()

	req := validSubmit()
	req.Code = ""
	if _, err := h.svc.Submit(ctx, req); apperrors.GetCode(err) != apperrors.InvalidParams {
		t.Fatalf("empty code error = %v", err)
	}

	req = validSubmit()
	req.Code = strings.Repeat("x", (64<<10)+1)
	if _, err := h.svc.Submit(ctx, req); apperrors.GetCode(err) != apperrors.CodeTooLarge {
		t.Fatalf("oversized code error = %v", err)
	}

	req = validSubmit()
	req.Language = "cobol"
	if _, err := h.svc.Submit(ctx, req); apperrors.GetCode(err) != apperrors.LanguageNotSupported {
		t.Fatalf("unknown language error = %v", err)
	}

	if len(h.publisher.jobs) != 0 {
		t.Fatal("invalid submissions must never be enqueued")
	}
}

func TestSubmitEnqueueFailureMarksFailed(t *testing.T) {
	h := newSubmissionHarness()
	h.publisher.err = apperrors.New(apperrors.EnqueueTimeout).WithMessage("queue did not acknowledge within 5s")

	_, err := h.svc.Submit(context.Background(), validSubmit())
	if apperrors.GetCode(err) != apperrors.EnqueueTimeout {
		t.Fatalf("error = %v", err)
	}
	if len(h.submissions.failed) != 1 {
		t.Fatal("the submission must be marked failed after an enqueue failure")
	}
	for _, view := range h.status.views {
		if view.Status != model.JudgeFailed {
			t.Fatalf("cached status = %s, want failed", view.Status)
		}
	}
}

func TestStatusFallsBackToDatabase(t *testing.T) {
	h := newSubmissionHarness()
	h.submissions.byID["sub-db"] = &model.Submission{
		ID:          "sub-db",
		JudgeStatus: model.JudgeCompleted,
		JudgeRunID:  "run-9",
	}

	view, err := h.svc.Status(context.Background(), "sub-db")
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != model.JudgeCompleted || view.RunID != "run-9" {
		t.Fatalf("view = %+v", view)
	}
}

func TestStatusUnknownSubmission(t *testing.T) {
	h := newSubmissionHarness()

	_, err := h.svc.Status(context.Background(), "missing")
	if apperrors.GetCode(err) != apperrors.SubmissionNotFound {
		t.Fatalf("error = %v", err)
	}
}

func TestRetryOnlyFailedJudges(t *testing.T) {
	h := newSubmissionHarness()
	h.submissions.byID["sub-ok"] = &model.Submission{
		ID: "sub-ok", JudgeStatus: model.JudgeCompleted,
	}
	h.submissions.byID["sub-bad"] = &model.Submission{
		ID: "sub-bad", ChallengeID: "ch-1", UserID: "user-1",
		Code: "print(1)", Language: lang.Python,
		JudgeStatus: model.JudgeFailed,
	}

	if err := h.svc.Retry(context.Background(), "sub-ok"); apperrors.GetCode(err) != apperrors.InvalidParams {
		t.Fatalf("retrying a completed judge = %v, want invalid params", err)
	}

	if err := h.svc.Retry(context.Background(), "sub-bad"); err != nil {
		t.Fatal(err)
	}
	if len(h.submissions.reset) != 1 || h.submissions.reset[0] != "sub-bad" {
		t.Fatalf("reset = %v", h.submissions.reset)
	}
	if len(h.publisher.jobs) != 1 || h.publisher.jobs[0].SubmissionID != "sub-bad" {
		t.Fatalf("jobs = %+v", h.publisher.jobs)
	}
	if h.publisher.jobs[0].Code != "print(1)" {
		t.Fatal("retry must re-enqueue the stored code")
	}
}
