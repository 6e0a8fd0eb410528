// Package rubric holds rubric definitions, the batch indexer that scores a
// corpus against a rubric, and the jobs and stores built around it.
package rubric

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/rubricrank/internal/errors"
)

// ScoringMethod is how per-criterion scores become a total.
const ScoringMethod = "average"

// Criterion is a yes/no evaluation question.
type Criterion struct {
	Label    string `json:"label" yaml:"label"`
	Question string `json:"question" yaml:"question"`
}

// Rubric is a named set of criteria. Criteria order is for display only.
// Changing the criteria makes a new rubric for indexing purposes.
type Rubric struct {
	ID        string      `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	Criteria  []Criterion `json:"criteria" yaml:"criteria"`
	CreatedAt time.Time   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Validate checks that the rubric can be scored.
func (r *Rubric) Validate() error {
	if r == nil {
		return errors.New(errors.ErrCodeInvalidInput, "rubric is nil", nil)
	}
	if strings.TrimSpace(r.ID) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "rubric id is required", nil)
	}
	if len(r.Criteria) == 0 {
		return errors.Newf(errors.ErrCodeInvalidInput, "rubric %q has no criteria", r.ID).
			WithSuggestion("Add at least one criterion with a label and a question")
	}
	seen := make(map[string]struct{}, len(r.Criteria))
	for i, c := range r.Criteria {
		if strings.TrimSpace(c.Label) == "" || strings.TrimSpace(c.Question) == "" {
			return errors.Newf(errors.ErrCodeInvalidInput, "rubric %q criterion %d needs a label and a question", r.ID, i+1)
		}
		if _, dup := seen[c.Label]; dup {
			return errors.Newf(errors.ErrCodeInvalidInput, "rubric %q has duplicate criterion label %q", r.ID, c.Label)
		}
		seen[c.Label] = struct{}{}
	}
	return nil
}

// DisplayName returns Name, falling back to ID.
func (r *Rubric) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// DocScore is the oracle's verdict for one document.
type DocScore struct {
	TotalScore     float64            `json:"total_score"`
	QuestionScores map[string]float64 `json:"question_scores,omitempty"`
}

// Index maps every document of a corpus to its rubric score. It is built once
// per (rubric, corpus) pair and never mutated afterwards.
type Index struct {
	RubricID      string              `json:"rubric_id"`
	CorpusID      string              `json:"corpus_id"`
	Scores        map[string]DocScore `json:"scores"`
	CreatedAt     time.Time           `json:"created_at"`
	DocumentCount int                 `json:"document_count"`

	// Failures counts documents that fell back to a zero score after
	// exhausting retries.
	Failures int `json:"failures"`
}

// Lookup returns the score recorded for docID.
func (i *Index) Lookup(docID string) (DocScore, bool) {
	if i == nil {
		return DocScore{}, false
	}
	s, ok := i.Scores[docID]
	return s, ok
}

// Key identifies the index within a store.
func (i *Index) Key() string {
	return indexKey(i.RubricID, i.CorpusID)
}

func indexKey(rubricID, corpusID string) string {
	return fmt.Sprintf("%s/%s", rubricID, corpusID)
}

// Scorer is the external scoring oracle.
type Scorer interface {
	Score(ctx context.Context, query, text string, criteria []Criterion) (DocScore, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, query, text string, criteria []Criterion) (DocScore, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, query, text string, criteria []Criterion) (DocScore, error) {
	return f(ctx, query, text, criteria)
}
