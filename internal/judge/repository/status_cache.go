package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crucible/internal/common/cache"
	"crucible/internal/judge/model"
	apperrors "crucible/pkg/errors"
)

const (
	statusKeyPrefix   = "judge:status:"
	judgingEnabledKey = "judge:enabled"

	statusTTL = 24 * time.Hour
)

// SubmissionStatusView is the cached, queryable judge state of a
// submission. The cache is an acceleration layer; the database remains
// authoritative.
type SubmissionStatusView struct {
	SubmissionID string            `json:"submissionId"`
	Status       model.JudgeStatus `json:"status"`
	RunID        string            `json:"runId,omitempty"`
	Error        string            `json:"error,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// StatusCache stores per-submission judge status plus the administrative
// judging enable/disable flag.
type StatusCache interface {
	SetStatus(ctx context.Context, view SubmissionStatusView) error
	GetStatus(ctx context.Context, submissionID string) (*SubmissionStatusView, error)

	// JudgingEnabled defaults to true when the flag was never set.
	JudgingEnabled(ctx context.Context) (bool, error)
	SetJudgingEnabled(ctx context.Context, enabled bool) error
}

type statusCache struct {
	cache cache.Cache
}

func NewStatusCache(c cache.Cache) StatusCache {
	return &statusCache{cache: c}
}

func (s *statusCache) SetStatus(ctx context.Context, view SubmissionStatusView) error {
	view.UpdatedAt = time.Now()
	data, err := json.Marshal(view)
	if err != nil {
		return apperrors.Wrap(err, apperrors.InternalServerError)
	}
	if err := s.cache.Set(ctx, statusKeyPrefix+view.SubmissionID, string(data), statusTTL); err != nil {
		return apperrors.Wrap(err, apperrors.CacheError)
	}
	return nil
}

func (s *statusCache) GetStatus(ctx context.Context, submissionID string) (*SubmissionStatusView, error) {
	raw, err := s.cache.Get(ctx, statusKeyPrefix+submissionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CacheError)
	}
	if raw == "" {
		return nil, nil
	}
	var view SubmissionStatusView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CacheError)
	}
	return &view, nil
}

func (s *statusCache) JudgingEnabled(ctx context.Context) (bool, error) {
	raw, err := s.cache.Get(ctx, judgingEnabledKey)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CacheError)
	}
	if raw == "" {
		return true, nil
	}
	return raw == "1", nil
}

func (s *statusCache) SetJudgingEnabled(ctx context.Context, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	if err := s.cache.Set(ctx, judgingEnabledKey, value, 0); err != nil {
		return apperrors.Wrap(err, apperrors.CacheError)
	}
	return nil
}

// StatusKey exposes the cache key for a submission, used by tests and
// operational tooling.
func StatusKey(submissionID string) string {
	return fmt.Sprintf("%s%s", statusKeyPrefix, submissionID)
}
