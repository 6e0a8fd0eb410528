package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/output"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/search"
)

// allowedLimits are the result counts the search command offers.
var allowedLimits = []int{10, 20, 50}

// searchOptions holds CLI flags for search.
type searchOptions struct {
	corpus      string
	mode        string
	limit       int
	rubric      string
	rubricIndex string // snapshot to read precomputed scores from
	live        bool
	weight      float64
	weightSet   bool
	format      string // "text", "json"
	explain     bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a corpus",
		Long: `Search a corpus by keyword, semantic or hybrid retrieval.

keyword   BM25 over title and body
semantic  TF-IDF cosine similarity
hybrid    both, fused with Reciprocal Rank Fusion

With --rubric, results are reranked by rubric score. A precomputed index
from 'rubricrank index' is used when one exists; otherwise (or with --live)
each candidate is scored live.

Examples:
  rubricrank search "vector databases" --corpus papers
  rubricrank search "intro to go" --mode hybrid --limit 10
  rubricrank search "error handling" --rubric clarity --weight 0.7
  rubricrank search "caching" --format json --explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			opts.weightSet = cmd.Flags().Changed("weight")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.corpus, "corpus", "c", "", "Corpus id (default: the only loaded corpus)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(search.DefaultMode), "Retrieval mode: keyword, semantic, hybrid")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of results: 10, 20 or 50")
	cmd.Flags().StringVarP(&opts.rubric, "rubric", "r", "", "Rubric id or file to rerank with")
	cmd.Flags().StringVar(&opts.rubricIndex, "rubric-index", "", "Snapshot holding precomputed rubric scores (default: configured snapshot)")
	cmd.Flags().BoolVar(&opts.live, "live", false, "Score the rubric live even when a precomputed index exists")
	cmd.Flags().Float64VarP(&opts.weight, "weight", "w", search.DefaultRubricWeight, "Rubric share of the combined score, 0..1 (unset: configured rubric_weight)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show the per-engine rankings, fusion and rubric rerank")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if err := validateLimit(opts.limit); err != nil {
		return err
	}
	if opts.format != "text" && opts.format != "json" {
		return errors.Newf(errors.ErrCodeInvalidInput, "unknown format %q", opts.format).
			WithSuggestion("Use --format text or --format json")
	}
	mode, err := search.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	a, err := newApp(projectDir, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	slog.Info("search_started", slog.String("query", query), slog.String("mode", string(mode)), slog.Int("limit", opts.limit))

	corpora, err := a.loadCorpora(ctx)
	if err != nil {
		return err
	}
	if err := requireCorpora(corpora, a.cfg.Paths.Corpora); err != nil {
		return err
	}

	corpusID := opts.corpus
	if corpusID == "" {
		if len(corpora) > 1 {
			ids := make([]string, len(corpora))
			for i, c := range corpora {
				ids[i] = c.ID
			}
			return errors.New(errors.ErrCodeNoCorpus, "more than one corpus is loaded", nil).
				WithSuggestion("Pass --corpus, one of: " + strings.Join(ids, ", "))
		}
		corpusID = corpora[0].ID
	}

	req := search.Request{
		CorpusID: corpusID,
		Query:    query,
		Limit:    opts.limit,
		Mode:     mode,
	}

	var s rubric.Scorer
	if opts.rubric != "" {
		if err := a.attachRubric(&req, opts); err != nil {
			return err
		}
		if req.RubricIndex == nil {
			if s, err = a.newScorer(); err != nil {
				return err
			}
		}
	}

	engine, closeEngine, err := a.newEngine(s)
	if err != nil {
		return err
	}
	defer closeEngine()

	resp, err := engine.Search(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.String("corpus_id", corpusID), slog.Int("results", len(resp.Results)))

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		if !opts.explain {
			resp.Trace = nil
		}
		return out.JSON(resp)
	}

	if opts.explain {
		out.Explain(resp.Query, resp.Trace)
	}
	out.Results(resp)
	return nil
}

// attachRubric resolves the rubric, its weight and, unless live scoring was
// requested, its precomputed index for the request's corpus.
func (a *app) attachRubric(req *search.Request, opts searchOptions) error {
	if opts.rubricIndex != "" {
		snap, err := rubric.LoadSnapshot(opts.rubricIndex)
		if err != nil {
			return err
		}
		if err := a.rubrics.Restore(snap); err != nil {
			return err
		}
	}

	r, err := resolveRubric(a.rubrics, opts.rubric)
	if err != nil {
		return err
	}
	req.Rubric = r

	req.Weight = a.cfg.Search.RubricWeight
	if opts.weightSet {
		req.Weight = opts.weight
	}
	if err := search.ValidateWeight(req.Weight); err != nil {
		return err
	}

	if !opts.live {
		if idx, ok := a.rubrics.Index(r.ID, req.CorpusID); ok {
			req.RubricIndex = idx
		}
	}
	return nil
}

func validateLimit(limit int) error {
	for _, l := range allowedLimits {
		if limit == l {
			return nil
		}
	}
	return errors.Newf(errors.ErrCodeInvalidInput, "limit must be 10, 20 or 50, got %d", limit).
		WithDetail("limit", fmt.Sprintf("%d", limit))
}
