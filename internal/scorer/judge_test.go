package scorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
)

func TestJudgeScorer_AveragesCriteria(t *testing.T) {
	// Given: a model that scores one criterion, overshoots another, skips none
	var prompt string
	j := NewJudgeScorer(completerFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return `{"clear": 1.4, "cited": 0.5}`, nil
	}))

	// When: scoring
	got, err := j.Score(context.Background(), "cats", "cats are great", criteria)

	// Then: values are clamped and averaged
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"clear": 1, "cited": 0.5}, got.QuestionScores)
	assert.InDelta(t, 0.75, got.TotalScore, 1e-12)
	assert.Contains(t, prompt, "Does the text cite sources?")
	assert.Contains(t, prompt, "cats are great")
}

func TestJudgeScorer_MissingLabelScoresZero(t *testing.T) {
	j := NewJudgeScorer(completerFunc(func(context.Context, string) (string, error) {
		return `{"clear": 1}`, nil
	}))

	got, err := j.Score(context.Background(), "", "text", criteria)

	require.NoError(t, err)
	assert.Equal(t, 0.0, got.QuestionScores["cited"])
	assert.InDelta(t, 0.5, got.TotalScore, 1e-12)
}

func TestJudgeScorer_Errors(t *testing.T) {
	bad := NewJudgeScorer(completerFunc(func(context.Context, string) (string, error) {
		return "I think it is fine", nil
	}))
	_, err := bad.Score(context.Background(), "", "text", criteria)
	assert.Equal(t, errors.ErrCodeScorerRejected, errors.GetCode(err))

	_, err = bad.Score(context.Background(), "", "text", []rubric.Criterion{})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}
