package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/search"
)

func TestNewServer_RequiresEngineAndManager(t *testing.T) {
	// Given: no engine
	// When: creating a server
	_, err := NewServer(nil, rubric.NewManager(rubric.NewBatchIndexer(&lengthScorer{}, rubric.DefaultIndexerConfig()), rubric.NewStore()))

	// Then: it is rejected
	require.Error(t, err)

	// Given: no manager
	_, err = NewServer(search.NewEngine(search.NewRegistry()), nil)
	require.Error(t, err)
}

func TestServer_ListToolsAndInfo(t *testing.T) {
	f := newFixture(t)

	name, ver := f.server.Info()
	assert.Equal(t, "rubricrank", name)
	assert.NotEmpty(t, ver)

	var names []string
	for _, tool := range f.server.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"search", "list_corpora", "index_rubric", "index_status"}, names)
	assert.NotNil(t, f.server.MCPServer())
}

func TestServer_SearchKeyword(t *testing.T) {
	// Given: a server over the pets corpus
	f := newFixture(t)

	// When: searching for cats
	out, err := f.server.handleSearch(context.Background(), SearchInput{Query: "cats", Corpus: "pets"})

	// Then: the cat documents come back ranked in keyword mode
	require.NoError(t, err)
	assert.Equal(t, "keyword", out.Mode)
	assert.Equal(t, "pets", out.Corpus)
	require.Len(t, out.Results, 2)
	assert.Equal(t, 1, out.Results[0].Rank)
	assert.Nil(t, out.Trace, "trace is only returned on explain")
}

func TestServer_SearchNoMatchesReturnsEmptySlice(t *testing.T) {
	f := newFixture(t)

	out, err := f.server.handleSearch(context.Background(), SearchInput{Query: "zebra", Corpus: "pets"})

	require.NoError(t, err)
	assert.NotNil(t, out.Results)
	assert.Empty(t, out.Results)
}

func TestServer_SearchValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   SearchInput
		code int
	}{
		{name: "empty query", in: SearchInput{Query: "  ", Corpus: "pets"}, code: ErrCodeInvalidParams},
		{name: "missing corpus", in: SearchInput{Query: "cats"}, code: ErrCodeInvalidParams},
		{name: "unknown corpus", in: SearchInput{Query: "cats", Corpus: "birds"}, code: ErrCodeCorpusNotFound},
		{name: "invalid mode", in: SearchInput{Query: "cats", Corpus: "pets", Mode: "fuzzy"}, code: ErrCodeInvalidParams},
		{name: "unknown rubric", in: SearchInput{Query: "cats", Corpus: "pets", Rubric: "nope"}, code: ErrCodeRubricNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.server.handleSearch(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, MapError(err).Code)
		})
	}
}

func TestServer_SearchInvalidWeight(t *testing.T) {
	f := newFixture(t)
	w := 1.5

	_, err := f.server.handleSearch(context.Background(), SearchInput{Query: "cats", Corpus: "pets", Rubric: "quality", Weight: &w})

	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)
}

func TestServer_SearchExplainIncludesTrace(t *testing.T) {
	f := newFixture(t)

	out, err := f.server.handleSearch(context.Background(), SearchInput{Query: "animals cats", Corpus: "pets", Mode: "hybrid", Explain: true})

	require.NoError(t, err)
	require.NotNil(t, out.Trace)
	assert.Equal(t, search.ModeHybrid, out.Trace.Mode)
	assert.NotEmpty(t, out.Trace.KeywordResults)
	assert.NotEmpty(t, out.Trace.SemanticResults)
}

func TestServer_SearchRubricLive(t *testing.T) {
	// Given: a rubric with no precomputed index
	f := newFixture(t)

	// When: searching with the rubric
	out, err := f.server.handleSearch(context.Background(), SearchInput{
		Query: "animals", Corpus: "pets", Rubric: "quality", Explain: true,
	})

	// Then: results are scored live
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	require.NotNil(t, out.Trace.RubricScoring)
	assert.Equal(t, search.SourceLive, out.Trace.RubricScoring.Source)
	assert.Equal(t, search.DefaultRubricWeight, out.Trace.RubricScoring.Weight)
	assert.Positive(t, f.scorer.calls.Load())
}

func TestServer_SearchRubricUsesStoredIndex(t *testing.T) {
	// Given: a precomputed index for the pets corpus
	f := newFixture(t)
	require.NoError(t, f.manager.Store().PutIndex(&rubric.Index{
		RubricID: "quality",
		CorpusID: "pets",
		Scores: map[string]rubric.DocScore{
			"p1": {TotalScore: 0.1},
			"p2": {TotalScore: 0.9},
		},
		DocumentCount: 2,
		CreatedAt:     time.Now(),
	}))
	w := 1.0

	// When: searching with the rubric at full weight
	out, err := f.server.handleSearch(context.Background(), SearchInput{
		Query: "animals", Corpus: "pets", Rubric: "quality", Weight: &w, Explain: true,
	})

	// Then: the index decides the order and the scorer is never called
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "p2", out.Results[0].ID)
	assert.Equal(t, search.SourceIndex, out.Trace.RubricScoring.Source)
	assert.Zero(t, f.scorer.calls.Load())

	// When: the caller asks for live scoring
	_, err = f.server.handleSearch(context.Background(), SearchInput{
		Query: "animals", Corpus: "pets", Rubric: "quality", Live: true,
	})

	// Then: the scorer runs
	require.NoError(t, err)
	assert.Positive(t, f.scorer.calls.Load())
}

func TestServer_ListCorpora(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Store().PutIndex(&rubric.Index{
		RubricID: "quality", CorpusID: "plants", Scores: map[string]rubric.DocScore{}, CreatedAt: time.Now(),
	}))

	out, err := f.server.handleListCorpora(context.Background())

	require.NoError(t, err)
	require.Len(t, out.Corpora, 2)
	assert.Equal(t, CorpusInfo{ID: "pets", Name: "Pets", Documents: 3}, out.Corpora[0])
	assert.Equal(t, "plants", out.Corpora[1].ID)
	assert.Equal(t, []string{"quality"}, out.Corpora[1].Rubrics)
}

func TestServer_IndexRubricSavesSnapshot(t *testing.T) {
	// Given: a server that persists snapshots
	path := filepath.Join(t.TempDir(), "rubrics.json")
	f := newFixture(t, WithSnapshotPath(path))

	// When: indexing the quality rubric on every corpus
	out, err := f.server.handleIndexRubric(context.Background(), IndexRubricInput{Rubric: "quality"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pets", "plants"}, out.Corpora)
	assert.NotEmpty(t, out.JobID)

	// Then: the job finishes with both indexes stored
	waitJob(t, f, out.JobID)
	_, ok := f.manager.Store().Index("quality", "pets")
	assert.True(t, ok)
	_, ok = f.manager.Store().Index("quality", "plants")
	assert.True(t, ok)

	// And: the snapshot lands on disk
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, f.server.Close())

	snap, err := rubric.LoadSnapshot(path)
	require.NoError(t, err)
	assert.Len(t, snap.Indexes, 2)

	// And: index_status reports the finished job
	status, err := f.server.handleIndexStatus(context.Background(), IndexStatusInput{JobID: out.JobID})
	require.NoError(t, err)
	require.Len(t, status.Jobs, 1)
	assert.Equal(t, rubric.JobDone, status.Jobs[0].State)
	assert.NotEmpty(t, status.Jobs[0].StartedAt)
	require.Len(t, status.Rubrics, 1)
	assert.Len(t, status.Rubrics[0].Indexes, 2)
}

func TestServer_IndexRubricSelectedCorpora(t *testing.T) {
	f := newFixture(t)

	out, err := f.server.handleIndexRubric(context.Background(), IndexRubricInput{Rubric: "quality", Corpora: []string{"plants"}})

	require.NoError(t, err)
	assert.Equal(t, []string{"plants"}, out.Corpora)
	waitJob(t, f, out.JobID)
	_, ok := f.manager.Store().Index("quality", "pets")
	assert.False(t, ok)
}

func TestServer_IndexRubricErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   IndexRubricInput
		code int
	}{
		{name: "missing rubric", in: IndexRubricInput{}, code: ErrCodeInvalidParams},
		{name: "unknown rubric", in: IndexRubricInput{Rubric: "nope"}, code: ErrCodeRubricNotFound},
		{name: "unknown corpus", in: IndexRubricInput{Rubric: "quality", Corpora: []string{"birds"}}, code: ErrCodeCorpusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.server.handleIndexRubric(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, MapError(err).Code)
		})
	}
}

func TestServer_IndexStatusUnknownJob(t *testing.T) {
	f := newFixture(t)

	_, err := f.server.handleIndexStatus(context.Background(), IndexStatusInput{JobID: "missing"})

	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)
}

func TestServer_IndexStatusWithoutJobs(t *testing.T) {
	f := newFixture(t)

	out, err := f.server.handleIndexStatus(context.Background(), IndexStatusInput{})

	require.NoError(t, err)
	assert.Empty(t, out.Jobs)
	require.Len(t, out.Rubrics, 1)
	assert.Equal(t, "quality", out.Rubrics[0].ID)
	assert.Equal(t, 1, out.Rubrics[0].Criteria)
	assert.Empty(t, out.Rubrics[0].Indexes)
}

func TestServer_CallTool(t *testing.T) {
	f := newFixture(t)

	got, err := f.server.CallTool(context.Background(), "search", SearchInput{Query: "ferns", Corpus: "plants"})
	require.NoError(t, err)
	out, ok := got.(*SearchOutput)
	require.True(t, ok)
	assert.Len(t, out.Results, 1)

	_, err = f.server.CallTool(context.Background(), "list_corpora", nil)
	require.NoError(t, err)

	_, err = f.server.CallTool(context.Background(), "search", "cats")
	assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)

	_, err = f.server.CallTool(context.Background(), "delete_corpus", nil)
	assert.Equal(t, ErrCodeMethodNotFound, MapError(err).Code)
}

func TestServer_ServeRejectsUnknownTransport(t *testing.T) {
	f := newFixture(t)

	err := f.server.Serve(context.Background(), "sse")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestServer_ReadRubricResource(t *testing.T) {
	f := newFixture(t)

	res, err := f.server.readRubric(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "rubric://quality"},
	})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, `"Is the text detailed?"`)

	_, err = f.server.readRubric(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "rubric://missing"},
	})
	assert.Error(t, err)
}

func TestServer_ReadQueryLogResource(t *testing.T) {
	f := newFixture(t)
	_, err := f.server.handleSearch(context.Background(), SearchInput{Query: "cats", Corpus: "pets"})
	require.NoError(t, err)

	res, err := f.server.readQueryLog(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: QueryLogURI},
	})

	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, QueryLogURI, res.Contents[0].URI)
	assert.Contains(t, res.Contents[0].Text, "cats")
}
