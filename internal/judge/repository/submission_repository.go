package repository

import (
	"context"
	"database/sql"
	"time"

	"crucible/internal/common/db"
	"crucible/internal/exec/lang"
	"crucible/internal/judge/model"
	apperrors "crucible/pkg/errors"
)

// SubmissionRepository persists submissions and their judge lifecycle.
type SubmissionRepository interface {
	Create(ctx context.Context, s *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)

	// MarkRunning transitions the submission to running, clears any
	// previous judge error and records the run id before execution starts.
	MarkRunning(ctx context.Context, id, runID string) error

	// MarkGraded finalizes a successful judge with the submission score.
	MarkGraded(ctx context.Context, id string, score int) error

	// MarkFailed records a judge failure with a descriptive message.
	MarkFailed(ctx context.Context, id, judgeError string) error

	// ResetForRetry returns a failed submission to pending/queued so an
	// administrative retry can re-enqueue it.
	ResetForRetry(ctx context.Context, id string) error
}

type submissionRepository struct {
	db db.Database
}

func NewSubmissionRepository(database db.Database) SubmissionRepository {
	return &submissionRepository{db: database}
}

func (r *submissionRepository) Create(ctx context.Context, s *model.Submission) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = model.SubmissionPending
	}
	if s.JudgeStatus == "" {
		s.JudgeStatus = model.JudgeQueued
	}
	const query = `
		INSERT INTO submissions
			(id, challenge_id, user_id, session_id, code, language, status, judge_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.ChallengeID, s.UserID, s.SessionID, s.Code, s.Language.String(),
		s.Status, s.JudgeStatus, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.DatabaseError, "create submission %s", s.ID)
	}
	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	const query = `
		SELECT id, challenge_id, user_id, session_id, code, language, status,
		       judge_status, judge_error, judge_run_id, score, created_at, updated_at
		FROM submissions WHERE id = ?`

	var s model.Submission
	var language string
	var sessionID, judgeError, judgeRunID sql.NullString
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.ChallengeID, &s.UserID, &sessionID, &s.Code, &language,
		&s.Status, &s.JudgeStatus, &judgeError, &judgeRunID, &s.Score,
		&s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.SubmissionNotFound, "submission %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.DatabaseError, "get submission %s", id)
	}
	s.SessionID = sessionID.String
	s.JudgeError = judgeError.String
	s.JudgeRunID = judgeRunID.String
	s.Language, err = lang.Parse(language)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.LanguageNotSupported, "submission %s", id)
	}
	return &s, nil
}

func (r *submissionRepository) MarkRunning(ctx context.Context, id, runID string) error {
	const query = `
		UPDATE submissions
		SET judge_status = ?, judge_error = NULL, judge_run_id = ?, updated_at = ?
		WHERE id = ?`
	return r.exec(ctx, query, model.JudgeRunning, runID, time.Now(), id)
}

func (r *submissionRepository) MarkGraded(ctx context.Context, id string, score int) error {
	const query = `
		UPDATE submissions
		SET status = ?, judge_status = ?, score = ?, updated_at = ?
		WHERE id = ?`
	return r.exec(ctx, query, model.SubmissionGraded, model.JudgeCompleted, score, time.Now(), id)
}

func (r *submissionRepository) MarkFailed(ctx context.Context, id, judgeError string) error {
	const query = `
		UPDATE submissions
		SET status = ?, judge_status = ?, judge_error = ?, updated_at = ?
		WHERE id = ?`
	return r.exec(ctx, query, model.SubmissionFailed, model.JudgeFailed, judgeError, time.Now(), id)
}

func (r *submissionRepository) ResetForRetry(ctx context.Context, id string) error {
	const query = `
		UPDATE submissions
		SET status = ?, judge_status = ?, judge_error = NULL, score = 0, updated_at = ?
		WHERE id = ?`
	return r.exec(ctx, query, model.SubmissionPending, model.JudgeQueued, time.Now(), id)
}

func (r *submissionRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, apperrors.DatabaseError)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.New(apperrors.SubmissionNotFound).WithMessage("submission not found")
	}
	return nil
}
