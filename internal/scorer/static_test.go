package scorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/rubric"
)

func TestStaticScorer_VocabularyOverlap(t *testing.T) {
	s := NewStaticScorer()
	crit := []rubric.Criterion{
		{Label: "sources", Question: "cites sources"},
		{Label: "tables", Question: "tables"},
	}

	got, err := s.Score(context.Background(), "", "This article cites its sources.", crit)

	require.NoError(t, err)
	assert.Equal(t, 1.0, got.QuestionScores["sources"])
	assert.Equal(t, 0.0, got.QuestionScores["tables"])
	assert.InDelta(t, 0.5, got.TotalScore, 1e-12)
}

func TestStaticScorer_Deterministic(t *testing.T) {
	s := NewStaticScorer()

	a, err := s.Score(context.Background(), "", "clear text", criteria)
	require.NoError(t, err)
	b, err := s.Score(context.Background(), "", "clear text", criteria)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
