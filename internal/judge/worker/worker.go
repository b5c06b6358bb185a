package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crucible/internal/common/mq"
	"crucible/internal/exec/runner"
	"crucible/internal/judge/model"
	"crucible/internal/judge/repository"
	"crucible/internal/judge/scoring"
	"crucible/internal/judge/service"
	apperrors "crucible/pkg/errors"
	"crucible/pkg/utils/logger"
)

// Worker is the long-lived judge consumer. It pulls one job at a time,
// drives the submission through queued -> running -> completed/failed and
// finalizes the score synchronously within the same job.
type Worker struct {
	queue       mq.MessageQueue
	submissions repository.SubmissionRepository
	runs        repository.RunRepository
	status      repository.StatusCache
	judge       *service.JudgeService
	engine      scoring.Engine
}

func New(
	queue mq.MessageQueue,
	submissions repository.SubmissionRepository,
	runs repository.RunRepository,
	status repository.StatusCache,
	judge *service.JudgeService,
	engine scoring.Engine,
) *Worker {
	return &Worker{
		queue:       queue,
		submissions: submissions,
		runs:        runs,
		status:      status,
		judge:       judge,
		engine:      engine,
	}
}

// Start subscribes to the judge jobs topic and begins consuming.
func (w *Worker) Start(ctx context.Context) error {
	err := w.queue.Subscribe(ctx, repository.JudgeJobsTopic, w.Handle, &mq.SubscribeOptions{
		Concurrency:     1,
		MaxRetries:      3,
		DeadLetterTopic: repository.JudgeJobsDeadLetterTopic,
	})
	if err != nil {
		return err
	}
	return w.queue.Start()
}

// Stop drains in-flight work and stops consuming.
func (w *Worker) Stop() error {
	return w.queue.Stop()
}

// Handle processes one judge job. Returning an error re-enters the
// queue's retry/backoff policy; returning nil acknowledges the job.
func (w *Worker) Handle(ctx context.Context, msg *mq.Message) error {
	var job model.JudgeJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		// A malformed payload can never succeed; acknowledge and log.
		logger.Error(ctx, "discarding malformed judge job", zap.Error(err))
		return nil
	}

	ctx = context.WithValue(ctx, logger.SubmissionIDKey, job.SubmissionID)
	logger.Info(ctx, "judging submission",
		zap.String("challengeID", job.ChallengeID),
		zap.String("language", job.Language.String()),
		zap.Int("attempt", msg.RetryCount+1))

	return w.process(ctx, &job)
}

func (w *Worker) process(ctx context.Context, job *model.JudgeJob) error {
	// The run row and its id on the submission are recorded before any
	// execution, so a crash mid-run still leaves a traceable run.
	run := &model.Run{
		ID:           uuid.NewString(),
		SubmissionID: job.SubmissionID,
		Language:     job.Language,
	}
	if err := w.runs.CreateRun(ctx, run); err != nil {
		return err
	}
	if err := w.submissions.MarkRunning(ctx, job.SubmissionID, run.ID); err != nil {
		return err
	}
	w.setStatus(ctx, job.SubmissionID, model.JudgeRunning, run.ID, "")

	ready, err := w.judge.Ready(ctx, job.ChallengeID, job.Language)
	if err != nil {
		return w.failAndRethrow(ctx, job, run.ID, err)
	}
	if !ready {
		// Missing tests or baseline is a configuration problem; a retry
		// cannot fix it.
		w.fail(ctx, job.SubmissionID, run.ID, notJudgeReadyMessage(job))
		return nil
	}

	outcome, err := w.judge.ExecuteAndScore(ctx, job)
	if err != nil {
		return w.failAndRethrow(ctx, job, run.ID, err)
	}
	if outcome == nil {
		w.fail(ctx, job.SubmissionID, run.ID, notJudgeReadyMessage(job))
		return nil
	}

	if msg, infra := infrastructureFailure(outcome); infra {
		// Transient: the job stays eligible for queue-level retry.
		w.fail(ctx, job.SubmissionID, run.ID, msg)
		return apperrors.New(apperrors.SandboxUnavailable).WithMessage(msg)
	}

	return w.complete(ctx, job, run, outcome)
}

func (w *Worker) complete(ctx context.Context, job *model.JudgeJob, run *model.Run, outcome *service.Outcome) error {
	run.ScoreCorrectness = outcome.Correctness
	run.ScoreEfficiency = outcome.Efficiency
	run.ScoreStyle = outcome.Style
	run.RuntimeMs = outcome.MeanRuntimeMs
	for i := range outcome.Tests {
		outcome.Tests[i].RunID = run.ID
	}
	if err := w.runs.CompleteRun(ctx, run, outcome.Tests); err != nil {
		return w.failAndRethrow(ctx, job, run.ID, err)
	}

	final, err := w.engine.FinalizeSubmissionScore(ctx, scoring.FinalizeRequest{
		SubmissionID: job.SubmissionID,
		UserID:       job.UserID,
		SessionID:    job.SessionID,
		Components: scoring.Components{
			Correctness: outcome.Correctness,
			Efficiency:  outcome.Efficiency,
			Style:       outcome.Style,
		},
	})
	if err != nil {
		return w.failAndRethrow(ctx, job, run.ID, err)
	}

	if err := w.submissions.MarkGraded(ctx, job.SubmissionID, final.SubmissionScore); err != nil {
		return w.failAndRethrow(ctx, job, run.ID, err)
	}
	w.setStatus(ctx, job.SubmissionID, model.JudgeCompleted, run.ID, "")

	logger.Info(ctx, "submission graded",
		zap.Int("score", final.SubmissionScore),
		zap.Int("testPassed", outcome.TestPassed),
		zap.Int("testTotal", outcome.TestTotal),
		zap.String("backend", outcome.Backend),
		zap.Bool("downgraded", outcome.Downgraded))
	return nil
}

// fail marks the run (when one exists) and the submission failed.
func (w *Worker) fail(ctx context.Context, submissionID, runID, message string) {
	if runID != "" {
		if err := w.runs.FailRun(ctx, runID, message); err != nil {
			logger.Error(ctx, "failed to mark run failed", zap.String("runID", runID), zap.Error(err))
		}
	}
	if err := w.submissions.MarkFailed(ctx, submissionID, message); err != nil {
		logger.Error(ctx, "failed to mark submission failed", zap.Error(err))
	}
	w.setStatus(ctx, submissionID, model.JudgeFailed, runID, message)
}

// failAndRethrow records the failure and returns the error so the queue's
// retry policy applies.
func (w *Worker) failAndRethrow(ctx context.Context, job *model.JudgeJob, runID string, err error) error {
	w.fail(ctx, job.SubmissionID, runID, err.Error())
	return err
}

func (w *Worker) setStatus(ctx context.Context, submissionID string, status model.JudgeStatus, runID, errMsg string) {
	if w.status == nil {
		return
	}
	err := w.status.SetStatus(ctx, repository.SubmissionStatusView{
		SubmissionID: submissionID,
		Status:       status,
		RunID:        runID,
		Error:        errMsg,
	})
	if err != nil {
		logger.Warn(ctx, "status cache update failed", zap.Error(err))
	}
}

func notJudgeReadyMessage(job *model.JudgeJob) string {
	return fmt.Sprintf("challenge %s is not judge-ready for %s: test cases and a baseline are both required", job.ChallengeID, job.Language)
}

// infrastructureFailure reports true only when every test errored and
// every message matches an infrastructure-unavailability pattern. A single
// non-infra failure means the code, not the infrastructure, is at fault.
func infrastructureFailure(outcome *service.Outcome) (string, bool) {
	if len(outcome.Tests) == 0 {
		return "", false
	}
	var firstMsg string
	for _, t := range outcome.Tests {
		if t.Status != model.RunTestError || !runner.IsInfraError(t.Message) {
			return "", false
		}
		if firstMsg == "" {
			firstMsg = t.Message
		}
	}
	return firstMsg, true
}
