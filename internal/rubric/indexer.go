package rubric

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/store"
	"github.com/Aman-CERP/rubricrank/internal/telemetry"
)

// DefaultConcurrency is the number of documents scored at once.
const DefaultConcurrency = 20

// ProgressFunc receives (completed, total, corpusName) after every resolved
// document. Calls are serialized and completed never decreases.
type ProgressFunc func(completed, total int, corpusName string)

// IndexerConfig configures a BatchIndexer.
type IndexerConfig struct {
	// Concurrency caps in-flight scorer calls.
	Concurrency int

	// Retry is the per-document retry policy. AttemptTimeout bounds each call.
	Retry errors.RetryConfig
}

// DefaultIndexerConfig returns concurrency 20, 3 retries from 100ms and a 30s
// call timeout.
func DefaultIndexerConfig() IndexerConfig {
	retry := errors.DefaultRetryConfig()
	retry.AttemptTimeout = 30 * time.Second
	return IndexerConfig{
		Concurrency: DefaultConcurrency,
		Retry:       retry,
	}
}

// BatchIndexer scores every document of a corpus against a rubric.
type BatchIndexer struct {
	scorer  Scorer
	config  IndexerConfig
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// IndexerOption configures a BatchIndexer.
type IndexerOption func(*BatchIndexer)

// WithIndexerMetrics records per-document outcomes and retries.
func WithIndexerMetrics(m *telemetry.Metrics) IndexerOption {
	return func(b *BatchIndexer) {
		b.metrics = m
	}
}

// WithIndexerLogger sets the logger.
func WithIndexerLogger(logger *slog.Logger) IndexerOption {
	return func(b *BatchIndexer) {
		b.logger = logger
	}
}

// NewBatchIndexer creates an indexer around scorer.
func NewBatchIndexer(scorer Scorer, cfg IndexerConfig, opts ...IndexerOption) *BatchIndexer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 0
	}
	b := &BatchIndexer{
		scorer: scorer,
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Concurrency returns the effective concurrency cap.
func (b *BatchIndexer) Concurrency() int {
	return b.config.Concurrency
}

// Build scores every document in corpus order and returns the index once all
// of them have resolved. A document whose scoring fails after retries is
// recorded with a zero score and counted in Index.Failures; it never aborts
// the build. Cancelling ctx stops admitting documents and returns ctx.Err()
// after in-flight calls finish.
func (b *BatchIndexer) Build(ctx context.Context, r *Rubric, corpus store.Corpus, onProgress ProgressFunc) (*Index, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if b.scorer == nil {
		return nil, errors.New(errors.ErrCodeScoringFailed, "batch indexer has no scorer", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := corpus.Documents
	total := len(docs)
	start := time.Now()

	b.logger.Info("rubric_corpus_started",
		slog.String("rubric_id", r.ID),
		slog.String("corpus_id", corpus.ID),
		slog.Int("documents", total),
		slog.Int("concurrency", b.config.Concurrency))

	// One slot per document; each worker writes only its own.
	scores := make([]DocScore, total)
	failed := make([]bool, total)

	resolved := make(chan struct{}, total)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		completed := 0
		for range resolved {
			completed++
			if onProgress != nil {
				onProgress(completed, total, corpus.Name)
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(b.config.Concurrency)

	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			scores[i], failed[i] = b.scoreDocument(ctx, r, corpus.ID, doc)
			resolved <- struct{}{}
			return nil
		})
	}
	_ = g.Wait()
	close(resolved)
	<-progressDone

	if err := ctx.Err(); err != nil {
		b.logger.Warn("rubric_corpus_cancelled",
			slog.String("rubric_id", r.ID),
			slog.String("corpus_id", corpus.ID))
		return nil, err
	}

	index := &Index{
		RubricID:      r.ID,
		CorpusID:      corpus.ID,
		Scores:        make(map[string]DocScore, total),
		CreatedAt:     time.Now(),
		DocumentCount: total,
	}
	for i, doc := range docs {
		index.Scores[doc.ID] = scores[i]
		if failed[i] {
			index.Failures++
		}
	}

	b.logger.Info("rubric_corpus_indexed",
		slog.String("rubric_id", r.ID),
		slog.String("corpus_id", corpus.ID),
		slog.Int("documents", total),
		slog.Int("failures", index.Failures),
		slog.Duration("duration", time.Since(start)))

	return index, nil
}

// scoreDocument returns the document's score and whether it fell back to zero
// after exhausting retries.
func (b *BatchIndexer) scoreDocument(ctx context.Context, r *Rubric, corpusID string, doc store.Document) (DocScore, bool) {
	if doc.IsBlank() {
		b.metrics.DocumentScored(telemetry.OutcomeEmpty)
		return DocScore{}, false
	}

	cfg := b.config.Retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		b.metrics.ScoreRetry()
		b.logger.Debug("rubric_score_retry",
			slog.String("corpus_id", corpusID),
			slog.String("doc_id", doc.ID),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))
	}

	score, err := errors.RetryWithResult(ctx, cfg, func(ctx context.Context) (DocScore, error) {
		return b.scorer.Score(ctx, "", doc.Text, r.Criteria)
	})
	if err != nil {
		b.metrics.DocumentScored(telemetry.OutcomeFailed)
		b.logger.Warn("rubric_score_failed",
			slog.String("corpus_id", corpusID),
			slog.String("doc_id", doc.ID),
			slog.String("error", err.Error()))
		return DocScore{}, true
	}

	b.metrics.DocumentScored(telemetry.OutcomeOK)
	score.TotalScore = clampUnit(score.TotalScore)
	return score, false
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
