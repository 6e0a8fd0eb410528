package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/store"
	"github.com/Aman-CERP/rubricrank/internal/ui"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	rubric      string
	corpora     []string
	concurrency int
	out         string
	plain       bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Precompute rubric scores for corpora",
		Long: `Score every document of the selected corpora against a rubric and
store the result in the index snapshot. Searches with --rubric then rerank
from the snapshot without calling the scorer.

Corpora are indexed one after another; within a corpus, up to --concurrency
documents are scored at once. Failed documents are retried with backoff and
score 0 when retries run out.

Ctrl+C stops after the corpus in progress; finished corpora are kept.`,
		Example: `  rubricrank index --rubric clarity
  rubricrank index --rubric rubrics/clarity.yaml --corpus papers --concurrency 8
  rubricrank index --rubric clarity --out indexes.json --plain`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.rubric, "rubric", "r", "", "Rubric id or file to index (required)")
	cmd.Flags().StringSliceVarP(&opts.corpora, "corpus", "c", nil, "Corpus ids to index (repeatable, default: all)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Concurrent scorer calls (default: configured indexer.concurrency)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Snapshot file to write (default: configured paths.snapshot)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Disable the TUI, use plain text output")
	_ = cmd.MarkFlagRequired("rubric")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	if opts.concurrency < 0 {
		return errors.Newf(errors.ErrCodeInvalidInput, "concurrency must be positive, got %d", opts.concurrency)
	}

	a, err := newApp(projectDir, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if opts.concurrency > 0 {
		a.cfg.Indexer.Concurrency = opts.concurrency
	}
	if opts.out != "" {
		a.cfg.Paths.Snapshot = opts.out
	}

	r, err := resolveRubric(a.rubrics, opts.rubric)
	if err != nil {
		return err
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithTitle(r.DisplayName())))
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	start := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Message: "Loading corpora from " + a.cfg.Paths.Corpora})

	loaded, err := a.loadCorpora(ctx)
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}
	corpora, err := selectCorpora(loaded, opts.corpora)
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}
	if err := requireCorpora(corpora, a.cfg.Paths.Corpora); err != nil {
		return err
	}

	s, err := a.newScorer()
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}

	manager := a.newManager(s)
	defer manager.Shutdown()

	job, err := manager.Start(ctx, r, corpora, func(completed, total int, corpusName string) {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageScoring,
			Current: completed,
			Total:   total,
			Corpus:  corpusName,
		})
	})
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}

	// The job is detached from ctx; an interrupt cancels it explicitly.
	select {
	case <-job.Done():
	case <-ctx.Done():
		slog.Info("index_interrupted", slog.String("job_id", job.ID()))
		job.Cancel()
	}
	indexes, jobErr := job.Wait()

	stats := ui.CompletionStats{
		Rubric:    r.DisplayName(),
		Corpora:   len(indexes),
		Cancelled: job.State() == rubric.JobCancelled,
	}
	for _, idx := range indexes {
		stats.Documents += idx.DocumentCount
		stats.Failures += idx.Failures
	}
	if stats.Failures > 0 {
		stats.Warnings++
		renderer.AddError(ui.ErrorEvent{
			Err:    fmt.Errorf("%d documents scored 0 after retries", stats.Failures),
			IsWarn: true,
		})
	}
	if jobErr != nil {
		stats.Errors++
		renderer.AddError(ui.ErrorEvent{Corpus: job.Snapshot().CurrentCorpus, Err: jobErr})
	}

	if len(indexes) > 0 {
		renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSaving, Message: "Writing " + a.cfg.Paths.Snapshot})
		if err := a.saveSnapshot(); err != nil {
			stats.Errors++
			renderer.AddError(ui.ErrorEvent{Err: err})
			stats.Duration = time.Since(start)
			renderer.Complete(stats)
			return err
		}
		slog.Info("snapshot_saved", slog.String("path", a.cfg.Paths.Snapshot), slog.Int("indexes", len(indexes)))
	}

	stats.Duration = time.Since(start)
	renderer.Complete(stats)
	return jobErr
}

// selectCorpora keeps the corpora named by ids, in the order given. No ids
// keeps them all.
func selectCorpora(loaded []store.Corpus, ids []string) ([]store.Corpus, error) {
	if len(ids) == 0 {
		return loaded, nil
	}
	byID := make(map[string]store.Corpus, len(loaded))
	for _, c := range loaded {
		byID[c.ID] = c
	}
	out := make([]store.Corpus, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeNoCorpus, "corpus %q is not loaded", id).
				WithDetail("corpus_id", id)
		}
		out = append(out, c)
	}
	return out, nil
}
