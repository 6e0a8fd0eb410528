package search

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/store"
)

// DefaultRerankWorkers caps in-flight live scoring calls per rerank.
const DefaultRerankWorkers = 16

// Rubric score sources reported in the trace.
const (
	SourceIndex = "index"
	SourceLive  = "live"
)

// Candidate is a retrieved document awaiting rerank.
type Candidate struct {
	Doc      store.Document
	RawScore float64
}

// RerankRequest describes one rubric rerank.
type RerankRequest struct {
	Query string
	Mode  Mode

	// Calibration normalizes raw scores. The zero value uses the defaults.
	Calibration Calibration

	Rubric *rubric.Rubric

	// Index, when set, supplies precomputed scores and no live calls are made.
	Index *rubric.Index

	Weight float64
	Limit  int
}

// Reranker blends retrieval scores with rubric scores. Live scoring fans
// out on a bounded goroutine pool shared across requests.
type Reranker struct {
	scorer rubric.Scorer
	pool   *ants.Pool
	logger *slog.Logger
}

// RerankerOption configures a Reranker.
type RerankerOption func(*Reranker)

// WithRerankLogger sets the logger.
func WithRerankLogger(logger *slog.Logger) RerankerOption {
	return func(r *Reranker) {
		r.logger = logger
	}
}

// NewReranker creates a reranker. scorer may be nil, in which case only
// precomputed indexes can be used.
func NewReranker(scorer rubric.Scorer, workers int, opts ...RerankerOption) (*Reranker, error) {
	if workers <= 0 {
		workers = DefaultRerankWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, errors.InternalError("failed to create rerank pool", err)
	}

	r := &Reranker{
		scorer: scorer,
		pool:   pool,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close releases the worker pool.
func (r *Reranker) Close() {
	r.pool.Release()
}

// Rerank scores every candidate against the rubric, combines it with the
// normalized retrieval score, sorts by the combined score and keeps Limit.
// A candidate whose rubric score cannot be obtained keeps its normalized
// retrieval score as the combined score and a rubric score of 0.
func (r *Reranker) Rerank(ctx context.Context, req RerankRequest, candidates []Candidate) ([]Result, *RubricTrace, error) {
	if err := req.Rubric.Validate(); err != nil {
		return nil, nil, err
	}
	if err := ValidateWeight(req.Weight); err != nil {
		return nil, nil, err
	}

	source := SourceLive
	if req.Index != nil {
		source = SourceIndex
	} else if r.scorer == nil {
		return nil, nil, errors.New(errors.ErrCodeScoringFailed, "no rubric index and no live scorer configured", nil).
			WithSuggestion("Pass a precomputed rubric index or configure a scorer")
	}

	results := make([]Result, len(candidates))
	if source == SourceIndex {
		for i, c := range candidates {
			results[i] = r.fromIndex(req, c)
		}
	} else if err := r.scoreLive(ctx, req, candidates, results); err != nil {
		return nil, nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	trace := &RubricTrace{
		RubricID:      req.Rubric.ID,
		RubricName:    req.Rubric.DisplayName(),
		CriteriaCount: len(req.Rubric.Criteria),
		ScoringMethod: rubric.ScoringMethod,
		Source:        source,
		ResultsScored: len(results),
		Weight:        req.Weight,
	}
	n := min(RubricTraceDepth, len(results))
	trace.TopResults = make([]RubricTraceEntry, n)
	for i := 0; i < n; i++ {
		res := results[i]
		trace.TopResults[i] = RubricTraceEntry{
			ID:             res.ID,
			Rank:           i + 1,
			RetrievalScore: res.RetrievalScore,
			RubricScore:    res.RubricScore,
			CombinedScore:  res.Score,
			QuestionScores: res.QuestionScores,
		}
	}

	return results, trace, nil
}

func (r *Reranker) fromIndex(req RerankRequest, c Candidate) Result {
	res := newResult(c.Doc, c.RawScore, req.Calibration.Normalize(c.RawScore, req.Mode))
	score, ok := req.Index.Lookup(c.Doc.ID)
	if !ok {
		res.Score = res.RetrievalScore
		res.ScoreError = "document not in rubric index"
		return res
	}
	return r.combine(req, res, score)
}

func (r *Reranker) scoreLive(ctx context.Context, req RerankRequest, candidates []Candidate, results []Result) error {
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			results[i] = r.scoreOne(ctx, req, c)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return errors.InternalError("failed to schedule rubric scoring", err)
		}
	}
	wg.Wait()
	return nil
}

func (r *Reranker) scoreOne(ctx context.Context, req RerankRequest, c Candidate) Result {
	res := newResult(c.Doc, c.RawScore, req.Calibration.Normalize(c.RawScore, req.Mode))
	if c.Doc.IsBlank() {
		return r.combine(req, res, rubric.DocScore{})
	}

	score, err := r.scorer.Score(ctx, req.Query, c.Doc.Text, req.Rubric.Criteria)
	if err != nil {
		r.logger.Warn("rerank_score_failed",
			slog.String("doc_id", c.Doc.ID),
			slog.String("rubric_id", req.Rubric.ID),
			slog.String("error", err.Error()))
		res.Score = res.RetrievalScore
		res.ScoreError = err.Error()
		return res
	}
	return r.combine(req, res, score)
}

func (r *Reranker) combine(req RerankRequest, res Result, score rubric.DocScore) Result {
	res.RubricScore = NormalizeRubric(score.TotalScore)
	res.QuestionScores = score.QuestionScores
	// Weight was validated up front.
	res.Score, _ = Combine(res.RetrievalScore, res.RubricScore, req.Weight)
	return res
}
