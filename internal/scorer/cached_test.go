package scorer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/rubric"
)

func TestCachedScorer_HitsCache(t *testing.T) {
	// Given: a cached scorer
	inner := &countingScorer{score: rubric.DocScore{TotalScore: 0.6}}
	c := NewCachedScorer(inner, 10)

	// When: scoring the same input twice, the second time with criteria reordered
	first, err := c.Score(context.Background(), "q", "text", criteria)
	require.NoError(t, err)
	reordered := []rubric.Criterion{criteria[1], criteria[0]}
	second, err := c.Score(context.Background(), "q", "text", reordered)
	require.NoError(t, err)

	// Then: the inner scorer was called once
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestCachedScorer_KeyCoversAllInputs(t *testing.T) {
	inner := &countingScorer{}
	c := NewCachedScorer(inner, 10)
	ctx := context.Background()

	_, _ = c.Score(ctx, "q", "text", criteria)
	_, _ = c.Score(ctx, "other", "text", criteria)
	_, _ = c.Score(ctx, "q", "other", criteria)
	_, _ = c.Score(ctx, "q", "text", criteria[:1])

	assert.Equal(t, int32(4), inner.calls.Load())
}

func TestCachedScorer_ErrorsAreNotCached(t *testing.T) {
	inner := &countingScorer{err: fmt.Errorf("down")}
	c := NewCachedScorer(inner, 10)

	_, err := c.Score(context.Background(), "q", "text", criteria)
	require.Error(t, err)
	_, err = c.Score(context.Background(), "q", "text", criteria)
	require.Error(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestCachedScorer_Evicts(t *testing.T) {
	inner := &countingScorer{}
	c := NewCachedScorer(inner, 2)

	for i := 0; i < 3; i++ {
		_, _ = c.Score(context.Background(), "q", fmt.Sprintf("text %d", i), criteria)
	}

	assert.Equal(t, 2, c.Len())
}
