package model

import (
	"time"

	"crucible/internal/exec/lang"
)

// SubmissionStatus is the user-facing lifecycle of a submission.
type SubmissionStatus string

const (
	SubmissionPending SubmissionStatus = "pending"
	SubmissionGraded  SubmissionStatus = "graded"
	SubmissionFailed  SubmissionStatus = "failed"
)

// JudgeStatus tracks the judging pipeline for a submission.
type JudgeStatus string

const (
	JudgeQueued    JudgeStatus = "queued"
	JudgeRunning   JudgeStatus = "running"
	JudgeCompleted JudgeStatus = "completed"
	JudgeFailed    JudgeStatus = "failed"
)

// Submission is one user's code for one challenge attempt. Code and
// language are immutable after creation; only the worker and an explicit
// admin retry mutate the rest.
type Submission struct {
	ID          string           `json:"id" db:"id"`
	ChallengeID string           `json:"challengeId" db:"challenge_id"`
	UserID      string           `json:"userId" db:"user_id"`
	SessionID   string           `json:"sessionId,omitempty" db:"session_id"`
	Code        string           `json:"code" db:"code"`
	Language    lang.Language    `json:"language" db:"language"`
	Status      SubmissionStatus `json:"status" db:"status"`
	JudgeStatus JudgeStatus      `json:"judgeStatus" db:"judge_status"`
	JudgeError  string           `json:"judgeError,omitempty" db:"judge_error"`
	JudgeRunID  string           `json:"judgeRunId,omitempty" db:"judge_run_id"`
	Score       int              `json:"score" db:"score"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time        `json:"updatedAt" db:"updated_at"`
}

// RunStatus is the lifecycle of a single judging attempt.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one execution attempt for a submission. A submission may
// accumulate several runs across retries; at most one is running at a
// time and only the latest is authoritative.
type Run struct {
	ID               string        `json:"id" db:"id"`
	SubmissionID     string        `json:"submissionId" db:"submission_id"`
	Language         lang.Language `json:"language" db:"language"`
	Status           RunStatus     `json:"status" db:"status"`
	ScoreCorrectness int           `json:"scoreCorrectness" db:"score_correctness"`
	ScoreEfficiency  int           `json:"scoreEfficiency" db:"score_efficiency"`
	ScoreStyle       int           `json:"scoreStyle" db:"score_style"`
	TestPassed       int           `json:"testPassed" db:"test_passed"`
	TestTotal        int           `json:"testTotal" db:"test_total"`
	RuntimeMs        int64         `json:"runtimeMs" db:"runtime_ms"`
	MemoryMB         int           `json:"memoryMb" db:"memory_mb"`
	ErrorMessage     string        `json:"errorMessage,omitempty" db:"error_message"`
	CreatedAt        time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time     `json:"updatedAt" db:"updated_at"`
}

// RunTestStatus is the outcome of one test within a run.
type RunTestStatus string

const (
	RunTestPassed RunTestStatus = "passed"
	RunTestFailed RunTestStatus = "failed"
	RunTestError  RunTestStatus = "error"
)

// RunTest is the persisted per-test record of a run.
type RunTest struct {
	ID            string        `json:"id" db:"id"`
	RunID         string        `json:"runId" db:"run_id"`
	TestCaseID    string        `json:"testCaseId" db:"test_case_id"`
	OrderIndex    int           `json:"orderIndex" db:"order_index"`
	Status        RunTestStatus `json:"status" db:"status"`
	PointsAwarded int           `json:"pointsAwarded" db:"points_awarded"`
	DurationMs    int64         `json:"durationMs" db:"duration_ms"`
	Output        string        `json:"output,omitempty" db:"output"`
	Message       string        `json:"message,omitempty" db:"message"`
}

// TestCase is a hidden input/expected-output pair owned by the challenge
// authoring system. Read-only here. Oversized payloads live in object
// storage and are referenced by key instead of stored inline.
type TestCase struct {
	ID                string `json:"id" db:"id"`
	ChallengeID       string `json:"challengeId" db:"challenge_id"`
	Input             string `json:"input" db:"input"`
	ExpectedOutput    string `json:"expectedOutput" db:"expected_output"`
	InputObjectKey    string `json:"-" db:"input_object_key"`
	ExpectedObjectKey string `json:"-" db:"expected_object_key"`
	TimeoutMs         int    `json:"timeoutMs" db:"timeout_ms"`
	MemoryMB          int    `json:"memoryMb" db:"memory_mb"`
	Points            int    `json:"points" db:"points"`
	OrderIndex        int    `json:"orderIndex" db:"order_index"`
}

// Baseline is the reference runtime that normalizes efficiency scoring for
// a challenge/language pair.
type Baseline struct {
	ChallengeID string        `json:"challengeId" db:"challenge_id"`
	Language    lang.Language `json:"language" db:"language"`
	RuntimeMs   int64         `json:"runtimeMs" db:"runtime_ms"`
}

// JudgeJob is the queue payload: a denormalized snapshot sufficient to
// judge without re-reading the submission row.
type JudgeJob struct {
	SubmissionID string        `json:"submissionId"`
	ChallengeID  string        `json:"challengeId"`
	UserID       string        `json:"userId"`
	Code         string        `json:"code"`
	Language     lang.Language `json:"language"`
	SessionID    string        `json:"sessionId,omitempty"`
}
