package rubric

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/store"
	"github.com/Aman-CERP/rubricrank/internal/telemetry"
)

func TestBatchIndexer_ScoresEveryDocument(t *testing.T) {
	// Given: a corpus of 25 documents and a scorer keyed on the text
	corpus := testCorpus("news", 25)
	scorer := &fakeScorer{fn: func(_ context.Context, text string) (DocScore, error) {
		if strings.Contains(text, "document 3 ") {
			return DocScore{TotalScore: 0.9, QuestionScores: map[string]float64{"clear": 1}}, nil
		}
		return DocScore{TotalScore: 0.2}, nil
	}}
	idx := NewBatchIndexer(scorer, fastRetry())

	// When: building
	index, err := idx.Build(context.Background(), testRubric(), corpus, nil)

	// Then: every document has a score
	require.NoError(t, err)
	assert.Equal(t, "quality", index.RubricID)
	assert.Equal(t, "news", index.CorpusID)
	assert.Equal(t, 25, index.DocumentCount)
	assert.Len(t, index.Scores, 25)
	assert.Equal(t, 0, index.Failures)
	assert.Equal(t, 0.9, index.Scores["news-3"].TotalScore)
	assert.Equal(t, 0.2, index.Scores["news-4"].TotalScore)
	assert.False(t, index.CreatedAt.IsZero())
}

func TestBatchIndexer_ScoresIndependentOfConcurrency(t *testing.T) {
	// Given: a scorer whose score depends only on the text
	score := func(_ context.Context, text string) (DocScore, error) {
		return DocScore{TotalScore: float64(len(text)%10) / 10}, nil
	}
	corpus := testCorpus("c", 40)

	build := func(concurrency int) *Index {
		cfg := fastRetry()
		cfg.Concurrency = concurrency
		index, err := NewBatchIndexer(&fakeScorer{fn: score}, cfg).Build(context.Background(), testRubric(), corpus, nil)
		require.NoError(t, err)
		return index
	}

	// When: building with a cap of 1 and of 50
	serial := build(1)
	parallel := build(50)

	// Then: the score maps are identical
	assert.Equal(t, serial.Scores, parallel.Scores)
	assert.Equal(t, 40, parallel.DocumentCount)
}

func TestBatchIndexer_RespectsConcurrencyCap(t *testing.T) {
	scorer := &fakeScorer{fn: func(context.Context, string) (DocScore, error) {
		time.Sleep(5 * time.Millisecond)
		return DocScore{}, nil
	}}
	cfg := fastRetry()
	cfg.Concurrency = 3

	_, err := NewBatchIndexer(scorer, cfg).Build(context.Background(), testRubric(), testCorpus("c", 20), nil)

	require.NoError(t, err)
	assert.LessOrEqual(t, scorer.peak.Load(), int32(3))
	assert.Equal(t, int32(20), scorer.calls.Load())
}

func TestBatchIndexer_RetriesTransientFailures(t *testing.T) {
	// Given: a scorer that fails twice per document then succeeds
	var mu sync.Mutex
	attempts := map[string]int{}
	scorer := &fakeScorer{fn: func(_ context.Context, text string) (DocScore, error) {
		mu.Lock()
		attempts[text]++
		n := attempts[text]
		mu.Unlock()
		if n <= 2 {
			return DocScore{}, errors.New(errors.ErrCodeScorerUnavailable, "busy", nil)
		}
		return DocScore{TotalScore: 1}, nil
	}}
	metrics := telemetry.NewMetrics()

	index, err := NewBatchIndexer(scorer, fastRetry(), WithIndexerMetrics(metrics)).
		Build(context.Background(), testRubric(), testCorpus("c", 4), nil)

	// Then: all documents succeed after three attempts each
	require.NoError(t, err)
	assert.Equal(t, 0, index.Failures)
	assert.Equal(t, int32(12), scorer.calls.Load())
	for _, s := range index.Scores {
		assert.Equal(t, 1.0, s.TotalScore)
	}
}

func TestBatchIndexer_ExhaustedRetriesScoreZero(t *testing.T) {
	// Given: a scorer that always fails for one document
	scorer := &fakeScorer{fn: func(_ context.Context, text string) (DocScore, error) {
		if strings.Contains(text, "document 1 ") {
			return DocScore{}, fmt.Errorf("boom")
		}
		return DocScore{TotalScore: 0.7}, nil
	}}

	index, err := NewBatchIndexer(scorer, fastRetry()).Build(context.Background(), testRubric(), testCorpus("c", 3), nil)

	// Then: the build succeeds and the failure is recorded as zero
	require.NoError(t, err)
	assert.Equal(t, 1, index.Failures)
	assert.Equal(t, DocScore{}, index.Scores["c-1"])
	assert.Equal(t, 0.7, index.Scores["c-0"].TotalScore)
	// 1 + MaxRetries attempts for the failing document
	assert.Equal(t, int32(2+4), scorer.calls.Load())
}

func TestBatchIndexer_AttemptTimeoutCountsAsFailure(t *testing.T) {
	scorer := &fakeScorer{fn: func(ctx context.Context, _ string) (DocScore, error) {
		<-ctx.Done()
		return DocScore{}, ctx.Err()
	}}
	cfg := fastRetry()
	cfg.Retry.MaxRetries = 1
	cfg.Retry.AttemptTimeout = 5 * time.Millisecond

	index, err := NewBatchIndexer(scorer, cfg).Build(context.Background(), testRubric(), testCorpus("c", 2), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, index.Failures)
	assert.Equal(t, int32(4), scorer.calls.Load())
}

func TestBatchIndexer_BlankTextSkipsScorer(t *testing.T) {
	corpus := store.Corpus{ID: "c", Name: "C", Ready: true, Documents: []store.Document{
		{ID: "empty", Text: "   "},
		{ID: "full", Text: "words"},
	}}
	scorer := &fakeScorer{}

	index, err := NewBatchIndexer(scorer, fastRetry()).Build(context.Background(), testRubric(), corpus, nil)

	require.NoError(t, err)
	assert.Equal(t, int32(1), scorer.calls.Load())
	assert.Equal(t, 0.0, index.Scores["empty"].TotalScore)
	assert.Equal(t, 0, index.Failures)
	assert.Equal(t, 2, index.DocumentCount)
}

func TestBatchIndexer_ClampsScores(t *testing.T) {
	scorer := &fakeScorer{fn: func(context.Context, string) (DocScore, error) {
		return DocScore{TotalScore: 3}, nil
	}}

	index, err := NewBatchIndexer(scorer, fastRetry()).Build(context.Background(), testRubric(), testCorpus("c", 1), nil)

	require.NoError(t, err)
	assert.Equal(t, 1.0, index.Scores["c-0"].TotalScore)
}

func TestBatchIndexer_ProgressIsSerializedAndMonotonic(t *testing.T) {
	// Given: a progress callback that detects concurrent calls
	var (
		active   atomic.Int32
		overlaps atomic.Int32
		seen     []int
	)
	onProgress := func(completed, total int, name string) {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		defer active.Add(-1)
		assert.Equal(t, 30, total)
		assert.Equal(t, "BIG", name)
		seen = append(seen, completed)
	}

	_, err := NewBatchIndexer(&fakeScorer{}, fastRetry()).
		Build(context.Background(), testRubric(), testCorpus("big", 30), onProgress)

	// Then: one call per document, increasing by one each time
	require.NoError(t, err)
	assert.Equal(t, int32(0), overlaps.Load())
	require.Len(t, seen, 30)
	for i, c := range seen {
		assert.Equal(t, i+1, c)
	}
}

func TestBatchIndexer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBatchIndexer(&fakeScorer{}, fastRetry()).Build(ctx, testRubric(), testCorpus("c", 3), nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatchIndexer_Validation(t *testing.T) {
	_, err := NewBatchIndexer(&fakeScorer{}, fastRetry()).Build(context.Background(), &Rubric{ID: "x"}, testCorpus("c", 1), nil)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))

	_, err = NewBatchIndexer(nil, fastRetry()).Build(context.Background(), testRubric(), testCorpus("c", 1), nil)
	assert.Equal(t, errors.ErrCodeScoringFailed, errors.GetCode(err))
}

func TestDefaultIndexerConfig(t *testing.T) {
	cfg := DefaultIndexerConfig()

	assert.Equal(t, 20, cfg.Concurrency)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.Retry.AttemptTimeout)
	assert.Equal(t, 400*time.Millisecond, errors.Backoff(cfg.Retry, 3))
}
