package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"crucible/internal/common/mq"
	"crucible/internal/judge/model"
	apperrors "crucible/pkg/errors"
)

const (
	// JudgeJobsTopic carries judge jobs from the API to the workers.
	JudgeJobsTopic = "judge.jobs"
	// JudgeJobsDeadLetterTopic receives jobs that exhausted their retries.
	JudgeJobsDeadLetterTopic = "judge.jobs.dead"
)

// JobPublisher enqueues judge jobs with fail-fast semantics: if the broker
// does not acknowledge within the deadline, the caller marks the
// submission failed instead of leaving it queued forever.
type JobPublisher interface {
	Enqueue(ctx context.Context, job *model.JudgeJob) error
}

type jobPublisher struct {
	producer mq.Producer
	status   StatusCache
	deadline time.Duration
}

// NewJobPublisher wires the publisher. deadline bounds broker
// acknowledgement; zero means 5 seconds.
func NewJobPublisher(producer mq.Producer, status StatusCache, deadline time.Duration) JobPublisher {
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	return &jobPublisher{producer: producer, status: status, deadline: deadline}
}

func (p *jobPublisher) Enqueue(ctx context.Context, job *model.JudgeJob) error {
	if p.status != nil {
		enabled, err := p.status.JudgingEnabled(ctx)
		if err == nil && !enabled {
			return apperrors.New(apperrors.JudgingDisabled).WithMessage("judging is administratively disabled")
		}
	}

	body, err := json.Marshal(job)
	if err != nil {
		return apperrors.Wrap(err, apperrors.InternalServerError)
	}
	msg := mq.NewMessage(body)
	msg.ID = job.SubmissionID
	msg.MaxRetries = 3

	publishCtx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	if err := p.producer.Publish(publishCtx, JudgeJobsTopic, msg); err != nil {
		if errors.Is(err, mq.ErrQueueDisabled) {
			return apperrors.Wrap(err, apperrors.JudgingDisabled)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(publishCtx.Err(), context.DeadlineExceeded) {
			return apperrors.Wrapf(err, apperrors.EnqueueTimeout, "queue did not acknowledge within %s", p.deadline)
		}
		return apperrors.Wrap(err, apperrors.JudgeSystemError)
	}
	return nil
}
