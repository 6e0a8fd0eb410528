package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/store"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"keyword", ModeKeyword, false},
		{"SEMANTIC", ModeSemantic, false},
		{" Hybrid ", ModeHybrid, false},
		{"fuzzy", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidMode, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStrategyFor_CoversEveryMode(t *testing.T) {
	for _, m := range Modes {
		s, err := StrategyFor(m)
		require.NoError(t, err)
		assert.Equal(t, m, s.Mode())
	}

	_, err := StrategyFor(Mode("bogus"))
	assert.Error(t, err)
}

func TestKeywordStrategy_TraceHasOnlyKeywordList(t *testing.T) {
	// Given: a lexical engine with two hits
	lex := &fakeSearcher{hits: hits("d1", "d3")}
	engines := NewEngines(petCorpus(), lex, &fakeSearcher{})

	// When: executing keyword
	s, _ := StrategyFor(ModeKeyword)
	got, trace, err := s.Execute(context.Background(), "cats", 10, engines)

	// Then: hits pass through and the trace names the mode
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d3"}, ids(got))
	assert.Equal(t, ModeKeyword, trace.Mode)
	assert.Len(t, trace.KeywordResults, 2)
	assert.Empty(t, trace.SemanticResults)
	assert.Empty(t, trace.HybridResults)
	assert.Equal(t, 1, trace.KeywordResults[0].Rank)
}

func TestSemanticStrategy_NotReady(t *testing.T) {
	// Given: engines with no vector index
	engines := NewEngines(petCorpus(), &fakeSearcher{}, nil)

	s, _ := StrategyFor(ModeSemantic)
	_, _, err := s.Execute(context.Background(), "cats", 10, engines)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotReady, errors.GetCode(err))
}

func TestHybridStrategy_ChecksBothEnginesBeforeRunning(t *testing.T) {
	// Given: a lexical engine but no vector engine
	lex := &fakeSearcher{hits: hits("d1")}
	engines := NewEngines(petCorpus(), lex, nil)

	s, _ := StrategyFor(ModeHybrid)
	_, _, err := s.Execute(context.Background(), "cats", 10, engines)

	// Then: not ready, and the lexical engine was never queried
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotReady, errors.GetCode(err))
	assert.Empty(t, lex.limits)
}

func TestHybridStrategy_FusesAndTraces(t *testing.T) {
	lex := &fakeSearcher{hits: hits("d1", "d3")}
	vec := &fakeSearcher{hits: hits("d3", "d1", "d2")}
	engines := NewEngines(petCorpus(), lex, vec)

	s, err := StrategyFor(ModeHybrid, WithRRFConstant(60))
	require.NoError(t, err)
	got, trace, err := s.Execute(context.Background(), "cats", 10, engines)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d1", "d2", "d3"}, ids(got))
	assert.Equal(t, "d2", got[2].DocID)
	assert.Equal(t, 60, trace.RRFK)
	assert.Len(t, trace.KeywordResults, 2)
	assert.Len(t, trace.SemanticResults, 3)
	assert.Len(t, trace.HybridResults, 3)
	assert.Equal(t, []int{10}, lex.limits)
	assert.Equal(t, []int{10}, vec.limits)
}

func TestHybridStrategy_TruncatesToLimit(t *testing.T) {
	lex := &fakeSearcher{hits: hits("a", "b")}
	vec := &fakeSearcher{hits: hits("c", "d")}
	engines := NewEngines(store.Corpus{ID: "c"}, lex, vec)

	s, _ := StrategyFor(ModeHybrid)
	got, _, err := s.Execute(context.Background(), "q", 2, engines)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(got))
}

func TestStrategy_EngineFailureIsWrapped(t *testing.T) {
	lex := &fakeSearcher{err: fmt.Errorf("disk gone")}
	engines := NewEngines(petCorpus(), lex, &fakeSearcher{})

	s, _ := StrategyFor(ModeKeyword)
	_, _, err := s.Execute(context.Background(), "cats", 10, engines)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSearchFailed, errors.GetCode(err))
	assert.Contains(t, err.Error(), "disk gone")
}

func TestTrace_KeepsTopTen(t *testing.T) {
	many := make([]string, 15)
	for i := range many {
		many[i] = fmt.Sprintf("d%d", i)
	}
	lex := &fakeSearcher{hits: hits(many...)}
	engines := NewEngines(store.Corpus{ID: "c"}, lex, &fakeSearcher{})

	s, _ := StrategyFor(ModeKeyword)
	got, trace, err := s.Execute(context.Background(), "q", 15, engines)

	require.NoError(t, err)
	assert.Len(t, got, 15)
	assert.Len(t, trace.KeywordResults, TraceDepth)
}
