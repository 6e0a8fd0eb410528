package mcp

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/search"
	"github.com/Aman-CERP/rubricrank/internal/store"
	"github.com/Aman-CERP/rubricrank/internal/telemetry"
)

// lengthScorer rates longer texts higher and counts its calls.
type lengthScorer struct {
	calls atomic.Int32
}

func (s *lengthScorer) Score(_ context.Context, _ string, text string, criteria []rubric.Criterion) (rubric.DocScore, error) {
	s.calls.Add(1)
	v := float64(len(strings.Fields(text))) / 10
	if v > 1 {
		v = 1
	}
	qs := make(map[string]float64, len(criteria))
	for _, c := range criteria {
		qs[c.Label] = v
	}
	return rubric.DocScore{TotalScore: v, QuestionScores: qs}, nil
}

type fixture struct {
	server   *Server
	registry *search.Registry
	manager  *rubric.Manager
	scorer   *lengthScorer
	queries  *telemetry.QueryLog
}

func petsCorpus() store.Corpus {
	return store.Corpus{
		ID:   "pets",
		Name: "Pets",
		Documents: []store.Document{
			{ID: "p1", Title: "Cats", Text: "cats are independent animals"},
			{ID: "p2", Title: "Dogs", Text: "dogs are loyal animals that love long walks in the park"},
			{ID: "p3", Text: "a short note on cats"},
		},
		Ready: true,
	}
}

func plantsCorpus() store.Corpus {
	return store.Corpus{
		ID:   "plants",
		Name: "Plants",
		Documents: []store.Document{
			{ID: "g1", Text: "ferns grow in shade"},
			{ID: "g2", Text: "cacti need little water"},
		},
		Ready: true,
	}
}

func qualityRubric() *rubric.Rubric {
	return &rubric.Rubric{
		ID:   "quality",
		Name: "Quality",
		Criteria: []rubric.Criterion{
			{Label: "detail", Question: "Is the text detailed?"},
		},
	}
}

func newFixture(t *testing.T, opts ...ServerOption) *fixture {
	t.Helper()

	registry := search.NewRegistry()
	t.Cleanup(func() { _ = registry.Close() })
	for _, c := range []store.Corpus{petsCorpus(), plantsCorpus()} {
		_, err := registry.Build(context.Background(), c)
		require.NoError(t, err)
	}

	scorer := &lengthScorer{}
	reranker, err := search.NewReranker(scorer, 4)
	require.NoError(t, err)
	t.Cleanup(reranker.Close)

	queries := telemetry.NewQueryLog()
	engine := search.NewEngine(registry, search.WithReranker(reranker), search.WithQueryLog(queries))

	indexer := rubric.NewBatchIndexer(scorer, rubric.IndexerConfig{
		Concurrency: 2,
		Retry: errors.RetryConfig{
			MaxRetries:   1,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Multiplier:   2,
		},
	})
	st := rubric.NewStore()
	require.NoError(t, st.PutRubric(qualityRubric()))
	manager := rubric.NewManager(indexer, st)

	srv, err := NewServer(engine, manager, append([]ServerOption{WithQueryLog(queries)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return &fixture{server: srv, registry: registry, manager: manager, scorer: scorer, queries: queries}
}

// waitJob blocks until the job finishes.
func waitJob(t *testing.T, f *fixture, id string) {
	t.Helper()
	job, ok := f.manager.Job(id)
	require.True(t, ok)
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
}
