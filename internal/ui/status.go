package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes loaded corpora and stored rubric indexes.
type StatusInfo struct {
	CorpusDir    string         `json:"corpus_dir"`
	SnapshotPath string         `json:"snapshot_path"`
	SnapshotSize int64          `json:"snapshot_size"`
	Scorer       string         `json:"scorer"`
	Corpora      []CorpusStatus `json:"corpora"`
	Rubrics      []RubricStatus `json:"rubrics"`
}

// CorpusStatus is one loaded corpus.
type CorpusStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Documents int    `json:"documents"`
}

// RubricStatus is one rubric and the corpora it has been indexed against.
type RubricStatus struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Criteria int           `json:"criteria"`
	Indexes  []IndexStatus `json:"indexes"`
}

// IndexStatus is one rubric index.
type IndexStatus struct {
	CorpusID  string    `json:"corpus_id"`
	Documents int       `json:"documents"`
	Failures  int       `json:"failures"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("rubricrank status"))

	_, _ = fmt.Fprintf(r.out, "  Corpora dir: %s\n", info.CorpusDir)
	_, _ = fmt.Fprintf(r.out, "  Snapshot:    %s (%s)\n", info.SnapshotPath, FormatBytes(info.SnapshotSize))
	if info.Scorer != "" {
		_, _ = fmt.Fprintf(r.out, "  Scorer:      %s\n", info.Scorer)
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Corpora (%d):\n", len(info.Corpora))
	if len(info.Corpora) == 0 {
		_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Warning.Render("none loaded"))
	}
	for _, c := range info.Corpora {
		_, _ = fmt.Fprintf(r.out, "    %-20s %6d docs  %s\n", c.ID, c.Documents, r.styles.Dim.Render(c.Name))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Rubrics (%d):\n", len(info.Rubrics))
	for _, rb := range info.Rubrics {
		_, _ = fmt.Fprintf(r.out, "    %s  %s\n", r.styles.Active.Render(rb.ID),
			r.styles.Label.Render(fmt.Sprintf("%s, %d criteria", rb.Name, rb.Criteria)))
		if len(rb.Indexes) == 0 {
			_, _ = fmt.Fprintf(r.out, "      %s\n", r.styles.Warning.Render("not indexed"))
			continue
		}
		for _, idx := range rb.Indexes {
			line := fmt.Sprintf("      %-18s %6d docs  %s", idx.CorpusID, idx.Documents, formatTime(idx.CreatedAt))
			if idx.Failures > 0 {
				line += "  " + r.styles.Warning.Render(fmt.Sprintf("%d failed", idx.Failures))
			}
			_, _ = fmt.Fprintln(r.out, line)
		}
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
