package scorer

import (
	"context"
	"sync/atomic"

	"github.com/Aman-CERP/rubricrank/internal/rubric"
)

var criteria = []rubric.Criterion{
	{Label: "clear", Question: "Is the text clear?"},
	{Label: "cited", Question: "Does the text cite sources?"},
}

// completerFunc adapts a function to llm.Completer.
type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// countingScorer returns score and counts calls.
type countingScorer struct {
	score rubric.DocScore
	err   error
	calls atomic.Int32
}

func (s *countingScorer) Score(context.Context, string, string, []rubric.Criterion) (rubric.DocScore, error) {
	s.calls.Add(1)
	return s.score, s.err
}
