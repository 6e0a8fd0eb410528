package search

import (
	"github.com/Aman-CERP/rubricrank/internal/store"
)

const (
	// TraceDepth is how many hits each trace list keeps.
	TraceDepth = 10

	// RubricTraceDepth is how many reranked results the rubric block keeps.
	RubricTraceDepth = 5
)

// Trace records the intermediate rankings of one query. It is for
// observability only and never affects ranking.
type Trace struct {
	Mode            Mode         `json:"mode"`
	KeywordResults  []TracedHit  `json:"keywordResults,omitempty"`
	SemanticResults []TracedHit  `json:"semanticResults,omitempty"`
	HybridResults   []TracedHit  `json:"hybridResults,omitempty"`
	RRFK            int          `json:"rrfK,omitempty"`
	RubricScoring   *RubricTrace `json:"rubricScoring,omitempty"`
}

// TracedHit is a hit with its 1-based rank.
type TracedHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// RubricTrace describes a rubric rerank.
type RubricTrace struct {
	RubricID      string             `json:"rubricId"`
	RubricName    string             `json:"rubricName"`
	CriteriaCount int                `json:"criteriaCount"`
	ScoringMethod string             `json:"scoringMethod"`
	Source        string             `json:"source"`
	ResultsScored int                `json:"resultsScored"`
	Weight        float64            `json:"weight"`
	TopResults    []RubricTraceEntry `json:"topResults"`
}

// RubricTraceEntry is one reranked result.
type RubricTraceEntry struct {
	ID             string             `json:"id"`
	Rank           int                `json:"rank"`
	RetrievalScore float64            `json:"retrievalScore"`
	RubricScore    float64            `json:"rubricScore"`
	CombinedScore  float64            `json:"combinedScore"`
	QuestionScores map[string]float64 `json:"questionScores,omitempty"`
}

// topHits converts the first n hits to ranked trace entries.
func topHits(hits []store.Hit, n int) []TracedHit {
	if len(hits) < n {
		n = len(hits)
	}
	out := make([]TracedHit, n)
	for i := 0; i < n; i++ {
		out[i] = TracedHit{ID: hits[i].DocID, Score: hits[i].Score, Rank: i + 1}
	}
	return out
}
