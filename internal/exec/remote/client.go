package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"crucible/internal/exec/lang"
	apperrors "crucible/pkg/errors"
	"crucible/pkg/utils/logger"
)

// Config holds settings for the external compilation provider.
type Config struct {
	BaseURL     string        `yaml:"baseURL"`
	AccessToken string        `yaml:"accessToken"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Result is the normalized provider response.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

type sourceFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type executeRequest struct {
	Language string       `json:"language"`
	Files    []sourceFile `json:"files"`
	Stdin    string       `json:"stdin,omitempty"`
}

// Client talks to the remote execution provider used for languages without
// a safe local toolchain.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote provider baseURL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Execute posts the source to the provider. A server-side (5xx) or
// connection-level failure is retried exactly once; a 4xx is not, since the
// request shape will not improve on retry.
func (c *Client) Execute(ctx context.Context, language lang.Language, code, stdin string) (*Result, error) {
	cfg := lang.ConfigOf(language)
	name := cfg.RemoteName
	if name == "" {
		name = language.String()
	}
	body, err := json.Marshal(executeRequest{
		Language: name,
		Files:    []sourceFile{{Name: cfg.SourceFile, Content: code}},
		Stdin:    stdin,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InternalServerError)
	}

	result, err := c.post(ctx, body)
	if err == nil {
		return result, nil
	}
	if !isRetryable(err) {
		return nil, err
	}
	logger.Warn(ctx, "remote provider request failed, retrying once", zap.Error(err))
	return c.post(ctx, body)
}

func (c *Client) post(ctx context.Context, body []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InternalServerError)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ProviderUnavailable, "provider request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ProviderUnavailable, "read provider response")
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, apperrors.Newf(apperrors.ProviderUnavailable, "provider returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, apperrors.Newf(apperrors.ProviderBadRequest, "provider rejected request with %d: %s", resp.StatusCode, truncateForLog(payload))
	}

	return parseResult(payload)
}

// isRetryable: 5xx and connection-level failures only.
func isRetryable(err error) bool {
	return apperrors.GetCode(err) == apperrors.ProviderUnavailable
}

func truncateForLog(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
