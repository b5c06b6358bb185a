package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "crucible/pkg/errors"
	"crucible/pkg/utils/logger"
)

// Components are the three pipeline-owned score parts sent downstream.
type Components struct {
	Correctness int `json:"correctness"`
	Efficiency  int `json:"efficiency"`
	Style       int `json:"style"`
}

// FinalizeRequest asks the downstream scoring engine to combine the
// pipeline components with its behavioral/trust signals.
type FinalizeRequest struct {
	SubmissionID string     `json:"submissionId"`
	UserID       string     `json:"userId"`
	SessionID    string     `json:"sessionId,omitempty"`
	Components   Components `json:"components"`
}

// FinalizeResult is the downstream engine's verdict.
type FinalizeResult struct {
	SubmissionScore int    `json:"submissionScore"`
	TrustScore      int    `json:"trustScore"`
	TrustLevel      string `json:"trustLevel"`
}

// Engine finalizes a submission's score, once per successful run.
type Engine interface {
	FinalizeSubmissionScore(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error)
}

// HTTPEngineConfig configures the remote scoring engine client.
type HTTPEngineConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	AccessToken string        `yaml:"accessToken"`
	Timeout     time.Duration `yaml:"timeout"`
}

// HTTPEngine calls the external scoring engine and falls back to a local
// component sum when the engine is unreachable, so a scoring-engine outage
// never blocks grading.
type HTTPEngine struct {
	cfg  HTTPEngineConfig
	http *http.Client
}

func NewHTTPEngine(cfg HTTPEngineConfig) *HTTPEngine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPEngine{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (e *HTTPEngine) FinalizeSubmissionScore(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	if e.cfg.BaseURL == "" {
		return LocalFinalize(req), nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InternalServerError)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/scores/finalize", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InternalServerError)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.cfg.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.cfg.AccessToken)
	}

	resp, err := e.http.Do(httpReq)
	if err != nil {
		logger.Warn(ctx, "scoring engine unreachable, using local fallback",
			zap.String("submissionID", req.SubmissionID), zap.Error(err))
		return LocalFinalize(req), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn(ctx, "scoring engine returned non-200, using local fallback",
			zap.String("submissionID", req.SubmissionID), zap.Int("status", resp.StatusCode))
		return LocalFinalize(req), nil
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return LocalFinalize(req), nil
	}
	var result FinalizeResult
	if err := json.Unmarshal(payload, &result); err != nil {
		logger.Warn(ctx, "scoring engine returned malformed payload, using local fallback",
			zap.String("submissionID", req.SubmissionID), zap.Error(err))
		return LocalFinalize(req), nil
	}
	return &result, nil
}

// LocalFinalize sums the pipeline components without trust signals. Used
// when no downstream engine is configured or reachable.
func LocalFinalize(req FinalizeRequest) *FinalizeResult {
	return &FinalizeResult{
		SubmissionScore: req.Components.Correctness + req.Components.Efficiency + req.Components.Style,
		TrustScore:      0,
		TrustLevel:      "unverified",
	}
}
