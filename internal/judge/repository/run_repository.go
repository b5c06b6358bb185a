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

// RunRepository persists runs and their per-test records.
type RunRepository interface {
	CreateRun(ctx context.Context, run *model.Run) error

	// CompleteRun stores the aggregate scores together with the per-test
	// rows in one transaction, so testPassed always matches the count of
	// passed rows.
	CompleteRun(ctx context.Context, run *model.Run, tests []model.RunTest) error

	// FailRun marks the run failed with zero scores.
	FailRun(ctx context.Context, runID, errorMessage string) error

	GetLatestRun(ctx context.Context, submissionID string) (*model.Run, error)
	GetRunTests(ctx context.Context, runID string) ([]model.RunTest, error)
}

type runRepository struct {
	db db.Database
}

func NewRunRepository(database db.Database) RunRepository {
	return &runRepository{db: database}
}

func (r *runRepository) CreateRun(ctx context.Context, run *model.Run) error {
	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	const query = `
		INSERT INTO runs (id, submission_id, language, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(ctx, query, run.ID, run.SubmissionID, run.Language.String(), run.Status, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.DatabaseError, "create run %s", run.ID)
	}
	return nil
}

func (r *runRepository) CompleteRun(ctx context.Context, run *model.Run, tests []model.RunTest) error {
	passed := 0
	for _, t := range tests {
		if t.Status == model.RunTestPassed {
			passed++
		}
	}
	run.TestPassed = passed
	run.TestTotal = len(tests)
	run.Status = model.RunCompleted
	run.UpdatedAt = time.Now()

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		const updateRun = `
			UPDATE runs
			SET status = ?, score_correctness = ?, score_efficiency = ?, score_style = ?,
			    test_passed = ?, test_total = ?, runtime_ms = ?, memory_mb = ?, updated_at = ?
			WHERE id = ?`
		result, err := tx.ExecContext(ctx, updateRun,
			run.Status, run.ScoreCorrectness, run.ScoreEfficiency, run.ScoreStyle,
			run.TestPassed, run.TestTotal, run.RuntimeMs, run.MemoryMB, run.UpdatedAt, run.ID)
		if err != nil {
			return apperrors.Wrapf(err, apperrors.DatabaseError, "complete run %s", run.ID)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return apperrors.Newf(apperrors.RunNotFound, "run %s not found", run.ID)
		}

		const insertTest = `
			INSERT INTO run_tests (id, run_id, test_case_id, order_index, status, points_awarded, duration_ms, output, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		for _, t := range tests {
			if _, err := tx.ExecContext(ctx, insertTest,
				t.ID, run.ID, t.TestCaseID, t.OrderIndex, t.Status, t.PointsAwarded, t.DurationMs, t.Output, t.Message); err != nil {
				return apperrors.Wrapf(err, apperrors.DatabaseError, "insert run test %s", t.ID)
			}
		}
		return nil
	})
}

func (r *runRepository) FailRun(ctx context.Context, runID, errorMessage string) error {
	const query = `
		UPDATE runs
		SET status = ?, score_correctness = 0, score_efficiency = 0, score_style = 0,
		    error_message = ?, updated_at = ?
		WHERE id = ?`
	result, err := r.db.Exec(ctx, query, model.RunFailed, errorMessage, time.Now(), runID)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.DatabaseError, "fail run %s", runID)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.Newf(apperrors.RunNotFound, "run %s not found", runID)
	}
	return nil
}

func (r *runRepository) GetLatestRun(ctx context.Context, submissionID string) (*model.Run, error) {
	const query = `
		SELECT id, submission_id, language, status, score_correctness, score_efficiency,
		       score_style, test_passed, test_total, runtime_ms, memory_mb, error_message,
		       created_at, updated_at
		FROM runs WHERE submission_id = ?
		ORDER BY created_at DESC LIMIT 1`

	var run model.Run
	var language string
	var errorMessage sql.NullString
	err := r.db.QueryRow(ctx, query, submissionID).Scan(
		&run.ID, &run.SubmissionID, &language, &run.Status,
		&run.ScoreCorrectness, &run.ScoreEfficiency, &run.ScoreStyle,
		&run.TestPassed, &run.TestTotal, &run.RuntimeMs, &run.MemoryMB,
		&errorMessage, &run.CreatedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.RunNotFound, "no run for submission %s", submissionID)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.DatabaseError, "latest run for submission %s", submissionID)
	}
	run.ErrorMessage = errorMessage.String
	run.Language, err = lang.Parse(language)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.LanguageNotSupported, "run %s", run.ID)
	}
	return &run, nil
}

func (r *runRepository) GetRunTests(ctx context.Context, runID string) ([]model.RunTest, error) {
	const query = `
		SELECT id, run_id, test_case_id, order_index, status, points_awarded, duration_ms, output, message
		FROM run_tests WHERE run_id = ?
		ORDER BY order_index ASC`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.DatabaseError, "run tests for %s", runID)
	}
	defer rows.Close()

	var tests []model.RunTest
	for rows.Next() {
		var t model.RunTest
		var output, message sql.NullString
		if err := rows.Scan(&t.ID, &t.RunID, &t.TestCaseID, &t.OrderIndex, &t.Status, &t.PointsAwarded, &t.DurationMs, &output, &message); err != nil {
			return nil, apperrors.Wrap(err, apperrors.DatabaseError)
		}
		t.Output = output.String
		t.Message = message.String
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.DatabaseError)
	}
	return tests, nil
}
