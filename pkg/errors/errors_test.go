package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewUsesDefaultMessage(t *testing.T) {
	err := New(SubmissionNotFound)
	if err.Code != SubmissionNotFound {
		t.Fatalf("code = %d, want %d", err.Code, SubmissionNotFound)
	}
	if err.Error() != SubmissionNotFound.Message() {
		t.Fatalf("message = %q, want default", err.Error())
	}
}

func TestWrapPreservesUnderlyingError(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Wrap(cause, DatabaseError)
	if !errors.Is(err, cause) {
		t.Fatal("wrapped error should unwrap to cause")
	}
	if GetCode(err) != DatabaseError {
		t.Fatalf("code = %d, want %d", GetCode(err), DatabaseError)
	}
}

func TestGetCodeOnForeignError(t *testing.T) {
	if got := GetCode(fmt.Errorf("plain")); got != InternalServerError {
		t.Fatalf("code = %d, want %d", got, InternalServerError)
	}
	if got := GetCode(nil); got != Success {
		t.Fatalf("code for nil = %d, want %d", got, Success)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{InvalidParams, http.StatusBadRequest},
		{SubmissionNotFound, http.StatusNotFound},
		{CodeTooLarge, http.StatusBadRequest},
		{SandboxUnavailable, http.StatusServiceUnavailable},
		{InternalServerError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("HTTPStatus(%d) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	retryable := []ErrorCode{SandboxUnavailable, ProviderUnavailable, EnqueueTimeout, DatabaseError}
	for _, code := range retryable {
		if !code.Retryable() {
			t.Errorf("%d should be retryable", code)
		}
	}
	permanent := []ErrorCode{InvalidParams, LanguageNotSupported, NotJudgeReady, ProviderBadRequest}
	for _, code := range permanent {
		if code.Retryable() {
			t.Errorf("%d should not be retryable", code)
		}
	}
}
