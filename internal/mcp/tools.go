package mcp

import (
	"time"

	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/search"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query   string   `json:"query" jsonschema:"the search query to execute"`
	Corpus  string   `json:"corpus" jsonschema:"id of the corpus to search, see list_corpora"`
	Mode    string   `json:"mode,omitempty" jsonschema:"retrieval mode: keyword, semantic or hybrid (default keyword)"`
	Limit   int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 20, max 100"`
	Rubric  string   `json:"rubric,omitempty" jsonschema:"id of a rubric to rerank results with"`
	Weight  *float64 `json:"weight,omitempty" jsonschema:"rubric share of the combined score between 0 and 1, default 0.5"`
	Live    bool     `json:"live,omitempty" jsonschema:"score with the rubric live even when a precomputed index exists"`
	Explain bool     `json:"explain,omitempty" jsonschema:"include the ranking trace"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Query   string          `json:"query"`
	Corpus  string          `json:"corpus"`
	Mode    string          `json:"mode"`
	Results []search.Result `json:"results" jsonschema:"ranked results, best first"`
	Trace   *search.Trace   `json:"trace,omitempty" jsonschema:"intermediate rankings, present when explain is set"`
}

// ListCorporaInput defines the input schema for the list_corpora tool (no parameters).
type ListCorporaInput struct{}

// ListCorporaOutput defines the output schema for the list_corpora tool.
type ListCorporaOutput struct {
	Corpora []CorpusInfo `json:"corpora"`
}

// CorpusInfo describes one loaded corpus.
type CorpusInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Documents int      `json:"documents"`
	Rubrics   []string `json:"rubrics,omitempty" jsonschema:"ids of rubrics with a precomputed index for this corpus"`
}

// IndexRubricInput defines the input schema for the index_rubric tool.
type IndexRubricInput struct {
	Rubric  string   `json:"rubric" jsonschema:"id of the rubric to index"`
	Corpora []string `json:"corpora,omitempty" jsonschema:"corpus ids to index, default all loaded corpora"`
}

// IndexRubricOutput defines the output schema for the index_rubric tool.
type IndexRubricOutput struct {
	JobID   string          `json:"job_id" jsonschema:"pass to index_status to follow progress"`
	State   rubric.JobState `json:"state"`
	Corpora []string        `json:"corpora"`
}

// IndexStatusInput defines the input schema for the index_status tool.
type IndexStatusInput struct {
	JobID string `json:"job_id,omitempty" jsonschema:"limit the report to one job"`
}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Jobs    []JobInfo    `json:"jobs"`
	Rubrics []RubricInfo `json:"rubrics"`
}

// JobInfo is the progress of one indexing job.
type JobInfo struct {
	ID             string                  `json:"id"`
	RubricID       string                  `json:"rubric_id"`
	State          rubric.JobState         `json:"state" jsonschema:"pending, running, done, failed or cancelled"`
	CurrentCorpus  string                  `json:"current_corpus,omitempty"`
	Corpora        []rubric.CorpusProgress `json:"corpora"`
	ProgressPct    float64                 `json:"progress_pct"`
	StartedAt      string                  `json:"started_at"`
	ElapsedSeconds int                     `json:"elapsed_seconds"`
	Error          string                  `json:"error,omitempty"`
}

func jobInfo(snap rubric.JobSnapshot) JobInfo {
	info := JobInfo{
		ID:             snap.ID,
		RubricID:       snap.RubricID,
		State:          snap.State,
		CurrentCorpus:  snap.CurrentCorpus,
		Corpora:        snap.Corpora,
		ProgressPct:    snap.ProgressPct,
		ElapsedSeconds: snap.ElapsedSeconds,
		Error:          snap.Error,
	}
	if !snap.StartedAt.IsZero() {
		info.StartedAt = snap.StartedAt.Format(time.RFC3339)
	}
	return info
}

// RubricInfo describes one rubric and where it has been indexed.
type RubricInfo struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Criteria int         `json:"criteria"`
	Indexes  []IndexInfo `json:"indexes"`
}

// IndexInfo describes one precomputed rubric index.
type IndexInfo struct {
	CorpusID  string `json:"corpus_id"`
	Documents int    `json:"documents"`
	Failures  int    `json:"failures"`
	CreatedAt string `json:"created_at"`
}
