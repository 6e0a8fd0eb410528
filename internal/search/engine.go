package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/store"
	"github.com/Aman-CERP/rubricrank/internal/telemetry"
)

const (
	// DefaultLimit is the result count when a request names none.
	DefaultLimit = 20

	// MaxLimit bounds a single request.
	MaxLimit = 100

	// DefaultCandidateMultiplier widens retrieval before a rubric rerank.
	DefaultCandidateMultiplier = 2

	// DefaultRubricWeight is the rubric share of the combined score.
	DefaultRubricWeight = 0.5
)

// Request is one search.
type Request struct {
	CorpusID string
	Query    string
	Limit    int
	Mode     Mode

	// Rubric, when set, reranks results by combining retrieval and rubric scores.
	Rubric *rubric.Rubric

	// RubricIndex supplies precomputed rubric scores. Without it the
	// configured scorer is called live.
	RubricIndex *rubric.Index

	// Weight is the rubric share in [0,1]. Only used with a Rubric.
	Weight float64
}

// Result is one ranked document.
type Result struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
	URL   string `json:"url,omitempty"`
	Rank  int    `json:"rank"`

	// Score orders results: the raw engine score, or the combined score
	// after a rubric rerank.
	Score float64 `json:"score"`

	// RetrievalScore is the engine score normalized into [0,1].
	RetrievalScore float64 `json:"retrievalScore"`

	RubricScore    float64            `json:"rubricScore,omitempty"`
	QuestionScores map[string]float64 `json:"questionScores,omitempty"`
	ScoreError     string             `json:"scoreError,omitempty"`
}

func newResult(doc store.Document, raw, normalized float64) Result {
	return Result{
		ID:             doc.ID,
		Title:          doc.Title,
		Text:           doc.Text,
		URL:            doc.URL,
		Score:          raw,
		RetrievalScore: normalized,
	}
}

// Response is the outcome of a search.
type Response struct {
	Query    string        `json:"query"`
	CorpusID string        `json:"corpusId"`
	Mode     Mode          `json:"mode"`
	Results  []Result      `json:"results"`
	Trace    *Trace        `json:"trace"`
	Duration time.Duration `json:"duration"`
}

// Engine answers search requests against a registry of corpora.
type Engine struct {
	registry            *Registry
	reranker            *Reranker
	calibration         Calibration
	rrfK                int
	defaultLimit        int
	candidateMultiplier int
	metrics             *telemetry.Metrics
	queries             *telemetry.QueryLog
	logger              *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithReranker enables rubric reranking.
func WithReranker(r *Reranker) EngineOption {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithCalibration sets the normalization constants.
func WithCalibration(c Calibration) EngineOption {
	return func(e *Engine) {
		e.calibration = c
	}
}

// WithRRF sets the fusion constant.
func WithRRF(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.rrfK = k
		}
	}
}

// WithDefaultLimit sets the result count used when a request names none.
func WithDefaultLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.defaultLimit = n
		}
	}
}

// WithCandidateMultiplier sets how many extra candidates a rerank retrieves.
func WithCandidateMultiplier(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.candidateMultiplier = n
		}
	}
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithQueryLog records every search in the query log.
func WithQueryLog(l *telemetry.QueryLog) EngineOption {
	return func(e *Engine) {
		e.queries = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine over registry.
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:            registry,
		calibration:         DefaultCalibration(),
		rrfK:                DefaultRRFConstant,
		defaultLimit:        DefaultLimit,
		candidateMultiplier: DefaultCandidateMultiplier,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Search runs one request: retrieve with the mode's strategy, resolve hits to
// documents, normalize, and rerank when a rubric is given.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := e.search(ctx, req)

	status := "ok"
	if err != nil {
		status = errors.GetCode(err)
	}
	mode := string(req.Mode)
	if resp != nil {
		mode = string(resp.Mode)
		resp.Duration = time.Since(start)
	}
	e.metrics.ObserveSearch(mode, status, time.Since(start))

	if err != nil {
		attrs := append([]slog.Attr{
			slog.String("corpus_id", req.CorpusID),
			slog.String("mode", mode),
		}, errors.LogAttrs(err)...)
		e.logger.LogAttrs(ctx, slog.LevelWarn, "search_failed", attrs...)
		return nil, err
	}

	event := telemetry.QueryEvent{
		Query:       req.Query,
		Mode:        mode,
		CorpusID:    req.CorpusID,
		ResultCount: len(resp.Results),
		Latency:     resp.Duration,
	}
	if req.Rubric != nil {
		event.RubricID = req.Rubric.ID
	}
	e.queries.Record(event)

	e.logger.Debug("search_complete",
		slog.String("corpus_id", req.CorpusID),
		slog.String("mode", mode),
		slog.Int("results", len(resp.Results)),
		slog.Bool("reranked", req.Rubric != nil),
		slog.Duration("duration", resp.Duration))

	return resp, nil
}

func (e *Engine) search(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if req.CorpusID == "" {
		return nil, errors.New(errors.ErrCodeNoCorpus, "no corpus selected", nil).
			WithSuggestion("Pass a corpus id; list corpora to see what is loaded")
	}

	mode := req.Mode
	if mode == "" {
		mode = DefaultMode
	}
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if req.Rubric != nil {
		if err := ValidateWeight(req.Weight); err != nil {
			return nil, err
		}
		if e.reranker == nil {
			return nil, errors.New(errors.ErrCodeScoringFailed, "rubric reranking is not configured", nil)
		}
		if req.RubricIndex != nil && req.RubricIndex.RubricID != req.Rubric.ID {
			return nil, errors.Newf(errors.ErrCodeInvalidInput,
				"rubric index belongs to rubric %q, not %q", req.RubricIndex.RubricID, req.Rubric.ID)
		}
	}

	engines, ok := e.registry.Get(req.CorpusID)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNoCorpus, "corpus %q is not loaded", req.CorpusID).
			WithDetail("corpus_id", req.CorpusID)
	}

	strategy, err := StrategyFor(mode, WithRRFConstant(e.rrfK))
	if err != nil {
		return nil, err
	}

	fetch := limit
	if req.Rubric != nil {
		fetch = limit * e.candidateMultiplier
	}

	hits, trace, err := strategy.Execute(ctx, query, fetch, engines)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		doc, ok := engines.Document(h.DocID)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInternal, "hit %q does not resolve to a document of corpus %q", h.DocID, engines.CorpusID)
		}
		candidates = append(candidates, Candidate{Doc: doc, RawScore: h.Score})
	}

	resp := &Response{
		Query:    query,
		CorpusID: req.CorpusID,
		Mode:     mode,
		Trace:    trace,
	}

	if req.Rubric == nil {
		resp.Results = make([]Result, 0, min(limit, len(candidates)))
		for i, c := range candidates {
			if i == limit {
				break
			}
			res := newResult(c.Doc, c.RawScore, e.calibration.Normalize(c.RawScore, mode))
			res.Rank = i + 1
			resp.Results = append(resp.Results, res)
		}
		return resp, nil
	}

	results, rubricTrace, err := e.reranker.Rerank(ctx, RerankRequest{
		Query:       query,
		Mode:        mode,
		Calibration: e.calibration,
		Rubric:      req.Rubric,
		Index:       req.RubricIndex,
		Weight:      req.Weight,
		Limit:       limit,
	}, candidates)
	if err != nil {
		return nil, err
	}
	resp.Results = results
	resp.Trace.RubricScoring = rubricTrace
	return resp, nil
}
