package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rubricrank/internal/corpus"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show corpora, rubrics and rubric indexes",
		Long: `Display the corpora found in the corpora directory, the rubrics loaded
from the rubric directory and snapshot, and which corpora each rubric has
been indexed against.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	a, err := newApp(projectDir, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	info := collectStatus(a)

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

// collectStatus reads corpus files without building engines. A missing
// corpora directory reports no corpora.
func collectStatus(a *app) ui.StatusInfo {
	info := ui.StatusInfo{
		CorpusDir:    a.cfg.Paths.Corpora,
		SnapshotPath: a.cfg.Paths.Snapshot,
		Scorer:       a.cfg.Scorer.Provider,
		Corpora:      []ui.CorpusStatus{},
		Rubrics:      []ui.RubricStatus{},
	}
	if fi, err := os.Stat(a.cfg.Paths.Snapshot); err == nil {
		info.SnapshotSize = fi.Size()
	}

	if corpora, err := corpus.LoadDir(a.cfg.Paths.Corpora); err == nil {
		for _, c := range corpora {
			info.Corpora = append(info.Corpora, ui.CorpusStatus{ID: c.ID, Name: c.Name, Documents: len(c.Documents)})
		}
	}

	indexes := a.rubrics.Indexes()
	for _, r := range a.rubrics.Rubrics() {
		info.Rubrics = append(info.Rubrics, rubricStatus(r, indexes))
	}
	return info
}

func rubricStatus(r *rubric.Rubric, indexes []*rubric.Index) ui.RubricStatus {
	rs := ui.RubricStatus{ID: r.ID, Name: r.DisplayName(), Criteria: len(r.Criteria), Indexes: []ui.IndexStatus{}}
	for _, idx := range indexes {
		if idx.RubricID != r.ID {
			continue
		}
		rs.Indexes = append(rs.Indexes, ui.IndexStatus{
			CorpusID:  idx.CorpusID,
			Documents: idx.DocumentCount,
			Failures:  idx.Failures,
			CreatedAt: idx.CreatedAt,
		})
	}
	return rs
}
