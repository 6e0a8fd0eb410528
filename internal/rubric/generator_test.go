package rubric

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rubricrank/internal/errors"
)

// scriptedCompleter is an llm.Completer that records prompts.
type scriptedCompleter struct {
	mu      sync.Mutex
	prompts []string
	answer  func(prompt string) (string, error)
}

func (s *scriptedCompleter) CompleteJSON(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.answer(prompt)
}

func TestGenerator_Generate(t *testing.T) {
	// Given: three rated results, one without a comment
	llm := &scriptedCompleter{answer: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "too long"):
			return "```json\n{\"label\": \" concise \", \"question\": \"Is the result concise?\"}\n```", nil
		case strings.Contains(prompt, "has sources"):
			return `{"label": "cited", "question": "Does the result cite a source?"}`, nil
		}
		return "", fmt.Errorf("unexpected prompt")
	}}
	examples := []Feedback{
		{Query: "q1", Result: "r1", Rating: RatingDown, Feedback: "too long"},
		{Query: "q2", Result: "r2", Rating: RatingUp},
		{Query: "q3", Result: "r3", Rating: RatingUp, Feedback: "has sources"},
	}

	// When: generating
	got, err := NewGenerator(llm, nil).Generate(context.Background(), examples)

	// Then: one trimmed criterion per comment
	require.NoError(t, err)
	assert.Equal(t, []Criterion{
		{Label: "concise", Question: "Is the result concise?"},
		{Label: "cited", Question: "Does the result cite a source?"},
	}, got)
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[0], "negative behavior is avoided")
	assert.Contains(t, llm.prompts[1], "positive behavior is present")
}

func TestGenerator_GenerateSkipsFailuresAndDuplicates(t *testing.T) {
	calls := 0
	llm := &scriptedCompleter{answer: func(string) (string, error) {
		calls++
		switch calls {
		case 1:
			return "not json", nil
		case 2:
			return `{"label": "cited", "question": "Cites?"}`, nil
		default:
			return `{"label": "cited", "question": "Cites a source?"}`, nil
		}
	}}
	examples := []Feedback{
		{Feedback: "one"}, {Feedback: "two"}, {Feedback: "three"},
	}

	got, err := NewGenerator(llm, nil).Generate(context.Background(), examples)

	require.NoError(t, err)
	assert.Equal(t, []Criterion{{Label: "cited", Question: "Cites?"}}, got)
}

func TestGenerator_GenerateErrors(t *testing.T) {
	failing := &scriptedCompleter{answer: func(string) (string, error) {
		return "", errors.New(errors.ErrCodeScorerUnavailable, "down", nil)
	}}
	g := NewGenerator(failing, nil)

	_, err := g.Generate(context.Background(), []Feedback{{Query: "q", Rating: RatingUp}})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))

	_, err = g.Generate(context.Background(), []Feedback{{Feedback: "bad"}})
	assert.Equal(t, errors.ErrCodeScoringFailed, errors.GetCode(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx, []Feedback{{Feedback: "bad"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_Integrate(t *testing.T) {
	llm := &scriptedCompleter{answer: func(string) (string, error) {
		return `{"label": "Examples", "question": "Does the result include an example?"}`, nil
	}}
	existing := []Criterion{{Label: "concise", Question: "Is it concise?"}}

	c, err := NewGenerator(llm, nil).Integrate(context.Background(), existing,
		Feedback{Query: "how to", Result: "r", Rating: RatingUp, Feedback: "loved the example"})

	require.NoError(t, err)
	assert.Equal(t, "Examples", c.Label)
	assert.Contains(t, llm.prompts[0], "1. concise: Is it concise?")
	assert.Contains(t, llm.prompts[0], "helpful (thumbs up)")
}

func TestGenerator_IntegrateRejectsRepeats(t *testing.T) {
	llm := &scriptedCompleter{answer: func(string) (string, error) {
		return `{"label": "CONCISE", "question": "Short?"}`, nil
	}}
	g := NewGenerator(llm, nil)
	existing := []Criterion{{Label: "concise", Question: "Is it concise?"}}

	_, err := g.Integrate(context.Background(), existing, Feedback{Feedback: "shorter please"})
	assert.Equal(t, errors.ErrCodeScorerRejected, errors.GetCode(err))

	_, err = g.Integrate(context.Background(), existing, Feedback{Feedback: "  "})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
	assert.Len(t, llm.prompts, 1)
}

func TestGenerator_MissingFields(t *testing.T) {
	llm := &scriptedCompleter{answer: func(string) (string, error) {
		return `{"label": "x"}`, nil
	}}

	_, err := NewGenerator(llm, nil).Integrate(context.Background(), nil, Feedback{Feedback: "f"})

	assert.Equal(t, errors.ErrCodeScorerRejected, errors.GetCode(err))
}
