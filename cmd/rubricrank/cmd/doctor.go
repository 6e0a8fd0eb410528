package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rubricrank/internal/config"
	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/preflight"
	"github.com/Aman-CERP/rubricrank/internal/scorer"
)

func newDoctorCmd() *cobra.Command {
	var verbose, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the installation and diagnose issues",
		Long: `Run diagnostics to ensure rubricrank can search and index.

Checks:
  - Disk space where the snapshot is written (100MB minimum)
  - Snapshot directory is writable
  - File descriptor limits (1024 minimum)
  - Corpus files load
  - Rubric files load (warning only)
  - Scorer can be built from the configuration (warning only)`,
		Example: `  rubricrank doctor
  rubricrank doctor --verbose
  rubricrank doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// doctorReport is the JSON form of a doctor run.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(cmd.Context(), preflight.Target{
		CorpusDir:    cfg.Paths.Corpora,
		RubricDir:    cfg.Paths.Rubrics,
		SnapshotPath: cfg.Paths.Snapshot,
		ScorerProbe: func() (string, error) {
			if _, err := (&app{cfg: cfg}).newScorer(); err != nil {
				return "", err
			}
			p, _ := scorer.ParseProvider(cfg.Scorer.Provider)
			return string(p), nil
		},
	})

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(doctorReport{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return errors.New(errors.ErrCodeConfigInvalid, "system check failed", nil).
			WithSuggestion("Fix the failed checks above and run 'rubricrank doctor' again")
	}
	return nil
}
