package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/rubricrank/internal/search"
)

// snippetLength bounds the document text shown per result.
const snippetLength = 400

// FormatSearchResults formats search output as markdown.
func FormatSearchResults(out *SearchOutput) string {
	if out == nil || len(out.Results) == 0 {
		q := ""
		if out != nil {
			q = out.Query
		}
		return fmt.Sprintf("No results found for \"%s\"", q)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", out.Query)
	fmt.Fprintf(&sb, "Corpus `%s`, %s mode. Found %d result", out.Corpus, out.Mode, len(out.Results))
	if len(out.Results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for _, r := range out.Results {
		formatResult(&sb, r)
	}

	if out.Trace != nil && out.Trace.RubricScoring != nil {
		rt := out.Trace.RubricScoring
		fmt.Fprintf(&sb, "---\nReranked by rubric **%s** (%d criteria, weight %.2f, %s scores).\n",
			rt.RubricName, rt.CriteriaCount, rt.Weight, rt.Source)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, r search.Result) {
	title := r.Title
	if title == "" {
		title = r.ID
	}
	fmt.Fprintf(sb, "### %d. %s (score: %.3f)\n", r.Rank, title, r.Score)

	if r.RubricScore > 0 || len(r.QuestionScores) > 0 || r.ScoreError != "" {
		fmt.Fprintf(sb, "**Retrieval:** %.3f  **Rubric:** %.3f", r.RetrievalScore, r.RubricScore)
		if len(r.QuestionScores) > 0 {
			fmt.Fprintf(sb, "  (%s)", formatQuestionScores(r.QuestionScores))
		}
		sb.WriteString("\n")
		if r.ScoreError != "" {
			fmt.Fprintf(sb, "_Rubric scoring failed: %s_\n", r.ScoreError)
		}
	}
	if r.URL != "" {
		fmt.Fprintf(sb, "<%s>\n", r.URL)
	}
	fmt.Fprintf(sb, "\n%s\n\n", snippet(r.Text, snippetLength))
}

// formatQuestionScores renders label scores sorted by label.
func formatQuestionScores(scores map[string]float64) string {
	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s %.2f", l, scores[l])
	}
	return strings.Join(parts, ", ")
}

// snippet truncates text to at most n runes, marking the cut.
func snippet(text string, n int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// FormatIndexStatus formats index status as markdown.
func FormatIndexStatus(out *IndexStatusOutput) string {
	var sb strings.Builder
	sb.WriteString("## Rubric Indexing\n\n")

	if len(out.Jobs) == 0 {
		sb.WriteString("No indexing jobs.\n\n")
	}
	for _, j := range out.Jobs {
		fmt.Fprintf(&sb, "- job `%s` rubric `%s`: **%s** %.1f%%", j.ID, j.RubricID, j.State, j.ProgressPct)
		if j.CurrentCorpus != "" {
			fmt.Fprintf(&sb, " (scoring %s)", j.CurrentCorpus)
		}
		if j.Error != "" {
			fmt.Fprintf(&sb, " error: %s", j.Error)
		}
		sb.WriteString("\n")
	}
	if len(out.Jobs) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString("## Rubrics\n\n")
	if len(out.Rubrics) == 0 {
		sb.WriteString("No rubrics loaded.\n")
	}
	for _, r := range out.Rubrics {
		fmt.Fprintf(&sb, "- `%s` %s, %d criteria", r.ID, r.Name, r.Criteria)
		if len(r.Indexes) == 0 {
			sb.WriteString(", not indexed\n")
			continue
		}
		corpora := make([]string, len(r.Indexes))
		for i, idx := range r.Indexes {
			corpora[i] = fmt.Sprintf("%s (%d docs)", idx.CorpusID, idx.Documents)
		}
		fmt.Fprintf(&sb, ", indexed on %s\n", strings.Join(corpora, ", "))
	}
	return sb.String()
}
