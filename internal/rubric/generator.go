package rubric

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/llm"
)

// Rating is a thumbs-up or thumbs-down judgement of a result.
type Rating string

const (
	RatingUp   Rating = "up"
	RatingDown Rating = "down"
)

// Feedback is one rated search result with a free-text comment.
type Feedback struct {
	Query    string `json:"query" yaml:"query"`
	Result   string `json:"result" yaml:"result"`
	Rating   Rating `json:"rating" yaml:"rating"`
	Feedback string `json:"feedback" yaml:"feedback"`
}

const criterionPrompt = `Turn the feedback below into one yes/no evaluation question.
The question must apply to any query, so refer to the structure, format or
approach of a result and never to the content of this example. Keep the
requirement exactly as stated; add no qualifiers.

Feedback: %q
Query: %s
Result (context only): %s

The question should check whether this %s.

Answer with only a JSON object: {"label": "short label", "question": "the question"}`

const integratePrompt = `You are extending a rubric used to evaluate search results.

Existing criteria:
%s

New feedback:
Query: %q
Result: %q
Rating: %s
Comment: %q

Write ONE new criterion capturing what the user cares about. It must differ
from the existing criteria and apply to other results too.

Answer with only a JSON object: {"label": "2-4 word label", "question": "clear evaluation question"}`

// Generator derives rubric criteria from rated feedback with a chat model.
type Generator struct {
	llm    llm.Completer
	logger *slog.Logger
}

// NewGenerator creates a generator. logger may be nil.
func NewGenerator(c llm.Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: c, logger: logger}
}

// Generate produces one criterion per feedback item that carries a comment.
// Items the model fails on are skipped; it is an error only when none
// succeed. Duplicate labels keep the first occurrence.
func (g *Generator) Generate(ctx context.Context, examples []Feedback) ([]Criterion, error) {
	var items []Feedback
	for _, fb := range examples {
		if strings.TrimSpace(fb.Feedback) != "" {
			items = append(items, fb)
		}
	}
	if len(items) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no feedback comments provided", nil).
			WithSuggestion("Add a comment to at least one rated result")
	}

	seen := make(map[string]struct{}, len(items))
	criteria := make([]Criterion, 0, len(items))
	for i, fb := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		behavior := "negative behavior is avoided"
		if fb.Rating == RatingUp {
			behavior = "positive behavior is present"
		}
		c, err := g.ask(ctx, fmt.Sprintf(criterionPrompt, fb.Feedback, fb.Query, fb.Result, behavior))
		if err != nil {
			g.logger.Warn("criterion_generation_failed",
				slog.Int("item", i),
				slog.String("error", err.Error()))
			continue
		}
		if _, dup := seen[c.Label]; dup {
			continue
		}
		seen[c.Label] = struct{}{}
		criteria = append(criteria, c)
	}

	if len(criteria) == 0 {
		return nil, errors.New(errors.ErrCodeScoringFailed, "failed to generate any criteria from feedback", nil).
			WithSuggestion("Check the log for model errors")
	}

	g.logger.Info("criteria_generated",
		slog.Int("feedback", len(items)),
		slog.Int("criteria", len(criteria)))
	return criteria, nil
}

// Integrate asks for one criterion that extends existing with fb.
func (g *Generator) Integrate(ctx context.Context, existing []Criterion, fb Feedback) (Criterion, error) {
	if strings.TrimSpace(fb.Feedback) == "" {
		return Criterion{}, errors.New(errors.ErrCodeInvalidInput, "feedback comment is empty", nil)
	}

	list := "None yet"
	if len(existing) > 0 {
		var b strings.Builder
		for i, c := range existing {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, c.Label, c.Question)
		}
		list = strings.TrimRight(b.String(), "\n")
	}

	rating := "not helpful (thumbs down)"
	if fb.Rating == RatingUp {
		rating = "helpful (thumbs up)"
	}

	c, err := g.ask(ctx, fmt.Sprintf(integratePrompt, list, fb.Query, fb.Result, rating, fb.Feedback))
	if err != nil {
		return Criterion{}, err
	}
	for _, e := range existing {
		if strings.EqualFold(e.Label, c.Label) {
			return Criterion{}, errors.Newf(errors.ErrCodeScorerRejected, "model repeated existing criterion %q", c.Label)
		}
	}
	return c, nil
}

func (g *Generator) ask(ctx context.Context, prompt string) (Criterion, error) {
	out, err := g.llm.CompleteJSON(ctx, prompt)
	if err != nil {
		return Criterion{}, err
	}
	var c Criterion
	if err := llm.DecodeJSON(out, &c); err != nil {
		return Criterion{}, err
	}
	c.Label = strings.TrimSpace(c.Label)
	c.Question = strings.TrimSpace(c.Question)
	if c.Label == "" || c.Question == "" {
		return Criterion{}, errors.New(errors.ErrCodeScorerRejected, "model answer is missing label or question", nil)
	}
	return c, nil
}
