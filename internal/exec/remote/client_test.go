package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"crucible/internal/exec/lang"
	apperrors "crucible/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{BaseURL: server.URL, AccessToken: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	return client, server
}

func TestExecuteRetriesOnceOn5xx(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"stdout":"ok","exitCode":0}`))
	})

	result, err := client.Execute(context.Background(), lang.Java, "class Main {}", "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Stdout != "ok" || result.ExitCode != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestExecuteDoesNotRetryOn4xx(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"unknown language"}`))
	})

	_, err := client.Execute(context.Background(), lang.Java, "class Main {}", "")
	if apperrors.GetCode(err) != apperrors.ProviderBadRequest {
		t.Fatalf("error = %v, want provider bad request", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestExecuteRetriesAtMostOnce(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Execute(context.Background(), lang.CPP, "int main(){}", "")
	if apperrors.GetCode(err) != apperrors.ProviderUnavailable {
		t.Fatalf("error = %v, want provider unavailable", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want exactly 2", got)
	}
}

func TestExecuteSendsBearerAndPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"stdout":"","stderr":"","exitCode":0}`))
	})

	if _, err := client.Execute(context.Background(), lang.C, "int main(){}", "stdin"); err != nil {
		t.Fatal(err)
	}
}

func TestExecuteEmptyResponseIsError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.Execute(context.Background(), lang.Java, "class Main {}", "")
	if err == nil {
		t.Fatal("an empty 200 response must be an error, never success")
	}
}
