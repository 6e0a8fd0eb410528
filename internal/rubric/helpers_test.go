package rubric

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/store"
)

func testRubric() *Rubric {
	return &Rubric{
		ID:   "quality",
		Name: "Quality",
		Criteria: []Criterion{
			{Label: "clear", Question: "Is the text clear?"},
			{Label: "specific", Question: "Is the text specific?"},
		},
	}
}

func testCorpus(id string, n int) store.Corpus {
	docs := make([]store.Document, n)
	for i := range docs {
		docs[i] = store.Document{ID: fmt.Sprintf("%s-%d", id, i), Text: fmt.Sprintf("document %d of %s", i, id)}
	}
	return store.Corpus{ID: id, Name: strings.ToUpper(id), Documents: docs, Ready: true}
}

func fastRetry() IndexerConfig {
	return IndexerConfig{
		Concurrency: 4,
		Retry: errors.RetryConfig{
			MaxRetries:   3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		},
	}
}

// fakeScorer is a Scorer built from a function, recording call counts and the
// peak number of concurrent calls.
type fakeScorer struct {
	fn func(ctx context.Context, text string) (DocScore, error)

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32

	mu    sync.Mutex
	texts []string
}

func (f *fakeScorer) Score(ctx context.Context, _ string, text string, _ []Criterion) (DocScore, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if f.fn == nil {
		return DocScore{TotalScore: 0.5}, nil
	}
	return f.fn(ctx, text)
}
