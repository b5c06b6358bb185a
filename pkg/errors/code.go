package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Submission & Validation errors
// 12000-12999: Execution errors (user code and execution environment)
// 13000-13999: Judging pipeline errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10004
	ServiceUnavailable  ErrorCode = 10005
	Timeout             ErrorCode = 10006
	Unauthorized        ErrorCode = 10007

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Storage errors (10300-10399)
	StorageError ErrorCode = 10300

	// Validation errors (10400-10499)
	ValidationFailed ErrorCode = 10400

	// ========== Submission & Validation Errors (11000-11999) ==========

	SubmissionNotFound   ErrorCode = 11000
	CodeTooLarge         ErrorCode = 11001
	StdinTooLarge        ErrorCode = 11002
	LanguageNotSupported ErrorCode = 11003
	ChallengeNotFound    ErrorCode = 11004

	// ========== Execution Errors (12000-12999) ==========

	// User-code outcomes (12000-12099)
	CompilationError    ErrorCode = 12000
	RuntimeError        ErrorCode = 12001
	TimeLimitExceeded   ErrorCode = 12002
	OutputLimitExceeded ErrorCode = 12003

	// Execution environment (12100-12199)
	SandboxUnavailable  ErrorCode = 12100
	InterpreterMissing  ErrorCode = 12101
	ProviderUnavailable ErrorCode = 12102
	ProviderBadRequest  ErrorCode = 12103

	// ========== Judging Pipeline Errors (13000-13999) ==========

	NotJudgeReady    ErrorCode = 13000
	JudgingDisabled  ErrorCode = 13001
	EnqueueTimeout   ErrorCode = 13002
	JudgeSystemError ErrorCode = 13003
	RunNotFound      ErrorCode = 13004
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",
	Unauthorized:        "Unauthorized access",

	// Database
	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	// Cache
	CacheError: "Cache operation failed",

	// Storage
	StorageError: "Object storage operation failed",

	// Validation
	ValidationFailed: "Validation failed",

	// Submission
	SubmissionNotFound:   "Submission not found",
	CodeTooLarge:         "Code is too large",
	StdinTooLarge:        "Custom input is too large",
	LanguageNotSupported: "Programming language not supported",
	ChallengeNotFound:    "Challenge not found",

	// Execution
	CompilationError:    "Compilation error",
	RuntimeError:        "Runtime error",
	TimeLimitExceeded:   "Time limit exceeded",
	OutputLimitExceeded: "Output limit exceeded",
	SandboxUnavailable:  "Judge infrastructure unavailable (sandbox/runner)",
	InterpreterMissing:  "No interpreter available for this language",
	ProviderUnavailable: "Remote execution provider unavailable",
	ProviderBadRequest:  "Remote execution provider rejected the request",

	// Judging pipeline
	NotJudgeReady:    "Challenge is not judge-ready for this language",
	JudgingDisabled:  "Judging is administratively disabled",
	EnqueueTimeout:   "Judge queue did not accept the job in time",
	JudgeSystemError: "Judge system error",
	RunNotFound:      "Run not found",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized:
		return 401
	case c == NotFound, c == SubmissionNotFound, c == ChallengeNotFound, c == RunNotFound:
		return 404
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == SandboxUnavailable, c == ProviderUnavailable, c == JudgingDisabled:
		return 503
	case c == InvalidParams, c == ValidationFailed, c == CodeTooLarge, c == StdinTooLarge, c == LanguageNotSupported:
		return 400
	default:
		return 500
	}
}

// Retryable reports whether a failure with this code may succeed on a later
// attempt. Configuration and validation failures are never retryable.
func (c ErrorCode) Retryable() bool {
	switch c {
	case SandboxUnavailable, ProviderUnavailable, ServiceUnavailable, EnqueueTimeout, Timeout, DatabaseError, CacheError, StorageError:
		return true
	default:
		return false
	}
}
