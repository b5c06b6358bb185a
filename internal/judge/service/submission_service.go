package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crucible/internal/exec/lang"
	"crucible/internal/judge/model"
	"crucible/internal/judge/repository"
	apperrors "crucible/pkg/errors"
	"crucible/pkg/utils/logger"
)

// SubmitRequest is the API-facing submission payload.
type SubmitRequest struct {
	ChallengeID string `json:"challengeId" binding:"required"`
	UserID      string `json:"userId" binding:"required"`
	SessionID   string `json:"sessionId"`
	Code        string `json:"code" binding:"required"`
	Language    string `json:"language" binding:"required"`
}

// SubmissionService owns the submission lifecycle on the API side:
// creation with enqueue, status queries and the administrative retry.
type SubmissionService struct {
	submissions  repository.SubmissionRepository
	runs         repository.RunRepository
	status       repository.StatusCache
	publisher    repository.JobPublisher
	maxCodeBytes int
}

func NewSubmissionService(
	submissions repository.SubmissionRepository,
	runs repository.RunRepository,
	status repository.StatusCache,
	publisher repository.JobPublisher,
	maxCodeBytes int,
) *SubmissionService {
	if maxCodeBytes <= 0 {
		maxCodeBytes = 64 << 10
	}
	return &SubmissionService{
		submissions:  submissions,
		runs:         runs,
		status:       status,
		publisher:    publisher,
		maxCodeBytes: maxCodeBytes,
	}
}

// Submit creates the submission row and enqueues a judge job. An enqueue
// that does not get acknowledged in time marks the submission failed
// immediately rather than leaving it queued forever.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*model.Submission, error) {
	if len(req.Code) == 0 {
		return nil, apperrors.New(apperrors.InvalidParams).WithMessage("code is required")
	}
	if len(req.Code) > s.maxCodeBytes {
		return nil, apperrors.Newf(apperrors.CodeTooLarge, "code exceeds %d bytes", s.maxCodeBytes)
	}
	language, err := lang.Parse(req.Language)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.LanguageNotSupported)
	}

	sub := &model.Submission{
		ID:          uuid.NewString(),
		ChallengeID: req.ChallengeID,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		Code:        req.Code,
		Language:    language,
		Status:      model.SubmissionPending,
		JudgeStatus: model.JudgeQueued,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, err
	}
	s.cacheStatus(ctx, sub.ID, model.JudgeQueued, "", "")

	job := &model.JudgeJob{
		SubmissionID: sub.ID,
		ChallengeID:  sub.ChallengeID,
		UserID:       sub.UserID,
		Code:         sub.Code,
		Language:     sub.Language,
		SessionID:    sub.SessionID,
	}
	if err := s.publisher.Enqueue(ctx, job); err != nil {
		msg := apperrors.GetError(err).Message
		if markErr := s.submissions.MarkFailed(ctx, sub.ID, msg); markErr != nil {
			logger.Error(ctx, "failed to mark submission failed after enqueue failure",
				zap.String("submissionID", sub.ID), zap.Error(markErr))
		}
		s.cacheStatus(ctx, sub.ID, model.JudgeFailed, "", msg)
		return nil, err
	}
	return sub, nil
}

// Status returns the judge state of a submission, served from the cache
// when fresh and falling back to the database.
func (s *SubmissionService) Status(ctx context.Context, submissionID string) (*repository.SubmissionStatusView, error) {
	if view, err := s.status.GetStatus(ctx, submissionID); err == nil && view != nil {
		return view, nil
	}

	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return &repository.SubmissionStatusView{
		SubmissionID: sub.ID,
		Status:       sub.JudgeStatus,
		RunID:        sub.JudgeRunID,
		Error:        sub.JudgeError,
		UpdatedAt:    sub.UpdatedAt,
	}, nil
}

// LatestRun returns the authoritative run for a submission.
func (s *SubmissionService) LatestRun(ctx context.Context, submissionID string) (*model.Run, error) {
	return s.runs.GetLatestRun(ctx, submissionID)
}

// Retry re-enqueues a failed judge from the submission's stored code and
// language. Only failed judges may be retried.
func (s *SubmissionService) Retry(ctx context.Context, submissionID string) error {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub.JudgeStatus != model.JudgeFailed {
		return apperrors.Newf(apperrors.InvalidParams,
			"submission %s is %s, only failed judges can be retried", submissionID, sub.JudgeStatus)
	}
	if err := s.submissions.ResetForRetry(ctx, submissionID); err != nil {
		return err
	}
	s.cacheStatus(ctx, submissionID, model.JudgeQueued, "", "")

	job := &model.JudgeJob{
		SubmissionID: sub.ID,
		ChallengeID:  sub.ChallengeID,
		UserID:       sub.UserID,
		Code:         sub.Code,
		Language:     sub.Language,
		SessionID:    sub.SessionID,
	}
	if err := s.publisher.Enqueue(ctx, job); err != nil {
		msg := apperrors.GetError(err).Message
		if markErr := s.submissions.MarkFailed(ctx, submissionID, msg); markErr != nil {
			logger.Error(ctx, "failed to mark submission failed after retry enqueue failure",
				zap.String("submissionID", submissionID), zap.Error(markErr))
		}
		s.cacheStatus(ctx, submissionID, model.JudgeFailed, "", msg)
		return err
	}
	return nil
}

// SetJudgingEnabled flips the administrative judging flag.
func (s *SubmissionService) SetJudgingEnabled(ctx context.Context, enabled bool) error {
	return s.status.SetJudgingEnabled(ctx, enabled)
}

func (s *SubmissionService) cacheStatus(ctx context.Context, submissionID string, status model.JudgeStatus, runID, errMsg string) {
	if s.status == nil {
		return
	}
	err := s.status.SetStatus(ctx, repository.SubmissionStatusView{
		SubmissionID: submissionID,
		Status:       status,
		RunID:        runID,
		Error:        errMsg,
	})
	if err != nil {
		logger.Warn(ctx, "status cache update failed", zap.Error(err))
	}
}
