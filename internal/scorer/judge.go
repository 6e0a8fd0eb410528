package scorer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/llm"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
)

const judgePrompt = `You grade a text against yes/no criteria.

Query: %q

Text:
"""
%s
"""

Criteria:
%s
For each criterion give a score between 0 (clearly no) and 1 (clearly yes).
Answer with only a JSON object mapping each label to its score, for example
{"%s": 0.8}`

// JudgeScorer asks a chat model for one score per criterion and averages them.
type JudgeScorer struct {
	llm llm.Completer
}

var _ rubric.Scorer = (*JudgeScorer)(nil)

// NewJudgeScorer creates an LLM judge.
func NewJudgeScorer(c llm.Completer) *JudgeScorer {
	return &JudgeScorer{llm: c}
}

// Score implements rubric.Scorer. A criterion the model leaves out scores 0.
func (j *JudgeScorer) Score(ctx context.Context, query, text string, criteria []rubric.Criterion) (rubric.DocScore, error) {
	if len(criteria) == 0 {
		return rubric.DocScore{}, errors.New(errors.ErrCodeInvalidInput, "no criteria to score", nil)
	}

	var list strings.Builder
	for _, c := range criteria {
		fmt.Fprintf(&list, "- %s: %s\n", c.Label, c.Question)
	}

	out, err := j.llm.CompleteJSON(ctx, fmt.Sprintf(judgePrompt, query, text, list.String(), criteria[0].Label))
	if err != nil {
		return rubric.DocScore{}, err
	}

	var raw map[string]float64
	if err := llm.DecodeJSON(out, &raw); err != nil {
		return rubric.DocScore{}, err
	}

	score := rubric.DocScore{QuestionScores: make(map[string]float64, len(criteria))}
	var sum float64
	for _, c := range criteria {
		v := clamp(raw[c.Label])
		score.QuestionScores[c.Label] = v
		sum += v
	}
	score.TotalScore = sum / float64(len(criteria))
	return score, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
