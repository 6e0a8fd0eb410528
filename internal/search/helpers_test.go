package search

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/store"
)

// fakeSearcher returns canned hits truncated to limit.
type fakeSearcher struct {
	hits []store.Hit
	err  error

	mu     sync.Mutex
	limits []int
	closed bool
}

func (f *fakeSearcher) Search(_ context.Context, _ string, limit int) ([]store.Hit, error) {
	f.mu.Lock()
	f.limits = append(f.limits, limit)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeSearcher) Index(context.Context, []store.Document) error { return nil }

func (f *fakeSearcher) Count() int { return len(f.hits) }

func (f *fakeSearcher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSearcher) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// countingScorer scores by looking the text up in a table.
type countingScorer struct {
	scores map[string]rubric.DocScore
	fail   map[string]error
	calls  atomic.Int32
}

func (s *countingScorer) Score(_ context.Context, _ string, text string, _ []rubric.Criterion) (rubric.DocScore, error) {
	s.calls.Add(1)
	if err, ok := s.fail[text]; ok {
		return rubric.DocScore{}, err
	}
	return s.scores[text], nil
}

func petCorpus() store.Corpus {
	return store.Corpus{
		ID:   "pets",
		Name: "Pets",
		Documents: []store.Document{
			{ID: "d1", Text: "cats are great"},
			{ID: "d2", Text: "dogs are great"},
			{ID: "d3", Text: "cats and dogs"},
		},
		Ready: true,
	}
}

func qualityRubric() *rubric.Rubric {
	return &rubric.Rubric{
		ID:   "quality",
		Name: "Quality",
		Criteria: []rubric.Criterion{
			{Label: "clear", Question: "Is the text clear?"},
			{Label: "specific", Question: "Is the text specific?"},
		},
	}
}

func buildPets(t *testing.T) *Registry {
	t.Helper()

	reg := NewRegistry()
	t.Cleanup(func() { _ = reg.Close() })

	_, err := reg.Build(context.Background(), petCorpus())
	require.NoError(t, err)
	return reg
}
