package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"crucible/internal/common/mq"
	"crucible/internal/judge/model"
	apperrors "crucible/pkg/errors"
)

type fakeProducer struct {
	published []*mq.Message
	topics    []string
	err       error
	delay     time.Duration
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, msg *mq.Message) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	f.topics = append(f.topics, topic)
	return nil
}

type fakeEnabledFlag struct {
	enabled bool
}

func (f *fakeEnabledFlag) SetStatus(ctx context.Context, view SubmissionStatusView) error { return nil }
func (f *fakeEnabledFlag) GetStatus(ctx context.Context, submissionID string) (*SubmissionStatusView, error) {
	return nil, nil
}
func (f *fakeEnabledFlag) JudgingEnabled(ctx context.Context) (bool, error) { return f.enabled, nil }
func (f *fakeEnabledFlag) SetJudgingEnabled(ctx context.Context, enabled bool) error {
	f.enabled = enabled
	return nil
}

func testJob() *model.JudgeJob {
	return &model.JudgeJob{
		SubmissionID: "sub-1",
		ChallengeID:  "ch-1",
		UserID:       "user-1",
		Code:         "print(42)",
	}
}

func TestEnqueuePublishesJudgeJob(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewJobPublisher(producer, &fakeEnabledFlag{enabled: true}, 0)

	if err := pub.Enqueue(context.Background(), testJob()); err != nil {
		t.Fatal(err)
	}
	if len(producer.published) != 1 {
		t.Fatalf("published %d messages", len(producer.published))
	}
	if producer.topics[0] != JudgeJobsTopic {
		t.Fatalf("topic = %q", producer.topics[0])
	}

	msg := producer.published[0]
	if msg.ID != "sub-1" {
		t.Fatalf("message id = %q, want the submission id", msg.ID)
	}
	if msg.MaxRetries != 3 {
		t.Fatalf("max retries = %d", msg.MaxRetries)
	}
	var job model.JudgeJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		t.Fatal(err)
	}
	if job.ChallengeID != "ch-1" || job.Code != "print(42)" {
		t.Fatalf("round-tripped job = %+v", job)
	}
}

func TestEnqueueRefusedWhenJudgingDisabled(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewJobPublisher(producer, &fakeEnabledFlag{enabled: false}, 0)

	err := pub.Enqueue(context.Background(), testJob())
	if apperrors.GetCode(err) != apperrors.JudgingDisabled {
		t.Fatalf("error = %v, want judging disabled", err)
	}
	if len(producer.published) != 0 {
		t.Fatal("nothing should reach the broker while judging is disabled")
	}
}

func TestEnqueueDeadlineFailsFast(t *testing.T) {
	producer := &fakeProducer{delay: 200 * time.Millisecond}
	pub := NewJobPublisher(producer, &fakeEnabledFlag{enabled: true}, 20*time.Millisecond)

	err := pub.Enqueue(context.Background(), testJob())
	if apperrors.GetCode(err) != apperrors.EnqueueTimeout {
		t.Fatalf("error = %v, want enqueue timeout", err)
	}
}

func TestEnqueueDisabledQueueMapsToJudgingDisabled(t *testing.T) {
	producer := &fakeProducer{err: mq.ErrQueueDisabled}
	pub := NewJobPublisher(producer, &fakeEnabledFlag{enabled: true}, 0)

	err := pub.Enqueue(context.Background(), testJob())
	if apperrors.GetCode(err) != apperrors.JudgingDisabled {
		t.Fatalf("error = %v, want judging disabled", err)
	}
}
