// Package scorer provides the rubric scoring oracles: a hosted scoring API
// client, an LLM judge, and an LRU cache that wraps either.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
)

const (
	// DefaultPiEndpoint is the hosted scoring endpoint.
	DefaultPiEndpoint = "https://api.withpi.ai/v1/scoring_system/score"

	// DefaultPiAPIKeyEnv names the environment variable holding the API key.
	DefaultPiAPIKeyEnv = "WITHPI_API_KEY"

	// DefaultPoolSize bounds idle and per-host connections.
	DefaultPoolSize = 32
)

// PiConfig configures a PiScorer.
type PiConfig struct {
	Endpoint string
	APIKey   string
	PoolSize int
}

type piCriterion struct {
	Label    string `json:"label"`
	Question string `json:"question"`
}

type piRequest struct {
	LLMInput    string        `json:"llm_input"`
	LLMOutput   string        `json:"llm_output"`
	ScoringSpec []piCriterion `json:"scoring_spec"`
}

type piQuestionScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type piResponse struct {
	TotalScore     *float64          `json:"total_score"`
	AggregateScore *float64          `json:"aggregate_score"`
	QuestionScores []piQuestionScore `json:"question_scores"`
}

// PiScorer calls the hosted scoring API over JSON HTTP.
type PiScorer struct {
	client    *http.Client
	transport *http.Transport
	config    PiConfig

	mu     sync.Mutex
	closed bool
}

var _ rubric.Scorer = (*PiScorer)(nil)

// NewPiScorer creates a client. An empty API key is a configuration error.
func NewPiScorer(cfg PiConfig) (*PiScorer, error) {
	if cfg.APIKey == "" {
		return nil, errors.ConfigError(fmt.Sprintf("scorer API key is not configured (set %s)", DefaultPiAPIKeyEnv), nil)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultPiEndpoint
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}

	// No client timeout: each call is bounded by its context.
	return &PiScorer{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}, nil
}

// Score implements rubric.Scorer.
func (p *PiScorer) Score(ctx context.Context, query, text string, criteria []rubric.Criterion) (rubric.DocScore, error) {
	spec := make([]piCriterion, len(criteria))
	for i, c := range criteria {
		spec[i] = piCriterion{Label: c.Label, Question: c.Question}
	}

	body, err := json.Marshal(piRequest{LLMInput: query, LLMOutput: text, ScoringSpec: spec})
	if err != nil {
		return rubric.DocScore{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return rubric.DocScore{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return rubric.DocScore{}, errors.New(errors.ErrCodeScorerTimeout, "scoring request timed out", err)
		}
		return rubric.DocScore{}, errors.New(errors.ErrCodeScorerUnavailable, fmt.Sprintf("scoring request failed: %v", err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return rubric.DocScore{}, statusError(resp.StatusCode, respBody)
	}

	var out piResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return rubric.DocScore{}, errors.New(errors.ErrCodeScorerUnavailable, "failed to decode scoring response", err)
	}

	score := rubric.DocScore{}
	switch {
	case out.TotalScore != nil:
		score.TotalScore = *out.TotalScore
	case out.AggregateScore != nil:
		score.TotalScore = *out.AggregateScore
	}
	if len(out.QuestionScores) > 0 {
		score.QuestionScores = make(map[string]float64, len(out.QuestionScores))
		for _, q := range out.QuestionScores {
			score.QuestionScores[q.Label] = q.Score
		}
	}
	return score, nil
}

// Close releases idle connections.
func (p *PiScorer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.transport.CloseIdleConnections()
	return nil
}

// statusError maps a non-200 response: throttling and server faults are
// retryable, other client errors are not.
func statusError(status int, body []byte) error {
	msg := fmt.Sprintf("scoring failed with status %d: %s", status, bytes.TrimSpace(body))
	if status == http.StatusTooManyRequests || status >= 500 {
		return errors.New(errors.ErrCodeScorerUnavailable, msg, nil).
			WithDetail("status", fmt.Sprintf("%d", status))
	}
	return errors.New(errors.ErrCodeScorerRejected, msg, nil).
		WithDetail("status", fmt.Sprintf("%d", status))
}
