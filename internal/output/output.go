// Package output provides consistent CLI output for rubricrank: status lines,
// ranked search results and the ranking explanation.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Aman-CERP/rubricrank/internal/search"
)

// SnippetLines is the number of text lines shown per result.
const SnippetLines = 3

// traceDepth bounds the per-engine rankings printed by Explain.
const traceDepth = 10

const rule = "════════════════════════════════════════"

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Results prints a search response. Rubric scores are shown per result when
// the response was reranked.
func (w *Writer) Results(resp *search.Response) {
	if resp == nil || len(resp.Results) == 0 {
		query := ""
		if resp != nil {
			query = resp.Query
		}
		w.Status("", fmt.Sprintf("No results found for %q", query))
		return
	}

	w.Statusf("🔍", "Found %d results for %q in %s (%s):", len(resp.Results), resp.Query, resp.CorpusID, resp.Mode)
	w.Newline()

	reranked := resp.Trace != nil && resp.Trace.RubricScoring != nil
	for _, r := range resp.Results {
		label := r.ID
		if r.Title != "" {
			label = fmt.Sprintf("%s [%s]", r.Title, r.ID)
		}
		w.Statusf("", "%d. %s (score: %.3f)", r.Rank, label, r.Score)

		if reranked {
			w.Status("", fmt.Sprintf("      retrieval: %.3f | rubric: %.3f", r.RetrievalScore, r.RubricScore))
			if len(r.QuestionScores) > 0 {
				w.Status("", "      "+QuestionScores(r.QuestionScores))
			}
			if r.ScoreError != "" {
				w.Status("", "      rubric scoring failed: "+r.ScoreError)
			}
		}
		if r.URL != "" {
			w.Status("", "   "+r.URL)
		}

		for _, line := range Snippet(r.Text, SnippetLines) {
			w.Status("", "   "+line)
		}
		w.Newline()
	}
}

// Explain prints the ranking trace: each engine's ranking, the fusion
// constant and the rubric rerank summary.
func (w *Writer) Explain(query string, trace *search.Trace) {
	if trace == nil {
		return
	}

	w.Status("", rule)
	w.Status("", "SEARCH EXPLANATION")
	w.Status("", rule)
	w.Status("", fmt.Sprintf("Query: %q", query))
	w.Status("", fmt.Sprintf("Mode: %s", trace.Mode))
	w.Newline()

	w.tracedHits("Keyword (BM25)", trace.KeywordResults)
	w.tracedHits("Semantic (TF-IDF cosine)", trace.SemanticResults)
	if trace.Mode == search.ModeHybrid {
		w.Status("", fmt.Sprintf("RRF Constant: k=%d", trace.RRFK))
		w.tracedHits("Fused (RRF)", trace.HybridResults)
	}

	if rt := trace.RubricScoring; rt != nil {
		w.Status("", fmt.Sprintf("Rubric: %s (%d criteria, %s, %s scores)", rt.RubricName, rt.CriteriaCount, rt.ScoringMethod, rt.Source))
		w.Status("", fmt.Sprintf("Weight: %.2f rubric / %.2f retrieval", rt.Weight, 1-rt.Weight))
		w.Status("", fmt.Sprintf("Results scored: %d", rt.ResultsScored))
	}
	w.Status("", rule)
	w.Newline()
}

func (w *Writer) tracedHits(title string, hits []search.TracedHit) {
	if len(hits) == 0 {
		return
	}
	w.Status("", fmt.Sprintf("%s: %d results", title, len(hits)))
	for i, h := range hits {
		if i == traceDepth {
			w.Status("", fmt.Sprintf("  ... %d more", len(hits)-traceDepth))
			break
		}
		w.Status("", fmt.Sprintf("  %2d. %s (%.4f)", h.Rank, h.ID, h.Score))
	}
	w.Newline()
}

// QuestionScores renders per-criterion scores sorted by label.
func QuestionScores(scores map[string]float64) string {
	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s: %.2f", l, scores[l])
	}
	return strings.Join(parts, " | ")
}

// Snippet returns the first n non-empty lines of text.
func Snippet(text string, n int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}
