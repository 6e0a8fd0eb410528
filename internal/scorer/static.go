package scorer

import (
	"context"

	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/store"
)

// StaticScorer scores offline: a criterion's score is the fraction of its
// question's terms found in the text after stemming and stop-word removal.
// It needs no network and is deterministic, at the cost of judging nothing
// beyond vocabulary overlap.
type StaticScorer struct{}

var _ rubric.Scorer = StaticScorer{}

// NewStaticScorer creates an offline scorer.
func NewStaticScorer() StaticScorer {
	return StaticScorer{}
}

// Score implements rubric.Scorer.
func (StaticScorer) Score(ctx context.Context, _ string, text string, criteria []rubric.Criterion) (rubric.DocScore, error) {
	if err := ctx.Err(); err != nil {
		return rubric.DocScore{}, err
	}

	present := make(map[string]struct{})
	for _, t := range store.Prepare(text) {
		present[t] = struct{}{}
	}

	score := rubric.DocScore{QuestionScores: make(map[string]float64, len(criteria))}
	if len(criteria) == 0 {
		return score, nil
	}

	var sum float64
	for _, c := range criteria {
		terms := store.Prepare(c.Question)
		if len(terms) == 0 {
			score.QuestionScores[c.Label] = 0
			continue
		}
		hit := 0
		for _, t := range terms {
			if _, ok := present[t]; ok {
				hit++
			}
		}
		v := float64(hit) / float64(len(terms))
		score.QuestionScores[c.Label] = v
		sum += v
	}
	score.TotalScore = sum / float64(len(criteria))
	return score, nil
}
