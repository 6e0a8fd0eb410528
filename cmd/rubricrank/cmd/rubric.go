package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/llm"
	"github.com/Aman-CERP/rubricrank/internal/output"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/scorer"
)

func newRubricCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rubric",
		Short: "Manage rubrics",
		Long: `A rubric is a named list of yes/no quality questions. Rubric files live
in the rubric directory (paths.rubrics) as YAML or JSON:

  id: clarity
  name: Clarity
  criteria:
    - label: Defines terms
      question: Does the text define the terms it introduces?`,
	}

	cmd.AddCommand(newRubricListCmd())
	cmd.AddCommand(newRubricGenerateCmd())

	return cmd
}

func newRubricListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded rubrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(projectDir, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := output.New(cmd.OutOrStdout())
			rubrics := a.rubrics.Rubrics()
			if len(rubrics) == 0 {
				out.Statusf("", "No rubrics found in %s", a.cfg.Paths.Rubrics)
				return nil
			}
			for _, r := range rubrics {
				out.Statusf("📋", "%s (%s), %d criteria", r.ID, r.DisplayName(), len(r.Criteria))
				for _, c := range r.Criteria {
					out.Statusf("", "  - %s: %s", c.Label, c.Question)
				}
			}
			return nil
		},
	}
}

// generateOptions holds CLI flags for rubric generate.
type generateOptions struct {
	feedback string
	id       string
	name     string
	extend   string
	out      string
}

func newRubricGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Derive rubric criteria from rated feedback",
		Long: `Turn rated search results into rubric criteria with a chat model.

The feedback file is a YAML or JSON list:

  - query: intro to go
    result: A tour of goroutines and channels...
    rating: up
    feedback: starts with a runnable example

Each commented item becomes one criterion. With --extend, criteria are
added to an existing rubric one at a time so they do not repeat it.

Needs OPENAI_API_KEY (or OPEN_AI_KEY); the model is scorer.model.`,
		Example: `  rubricrank rubric generate --feedback ratings.yaml --id clarity --name Clarity
  rubricrank rubric generate --feedback more.yaml --extend clarity`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(projectDir, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			baseURL := ""
			if p, _ := scorer.ParseProvider(a.cfg.Scorer.Provider); p == scorer.ProviderJudge {
				baseURL = a.cfg.Scorer.Endpoint
			}
			client, err := llm.NewClient(llm.Config{
				APIKey:  llm.APIKeyFromEnv(),
				BaseURL: baseURL,
				Model:   a.cfg.Scorer.Model,
			})
			if err != nil {
				return err
			}

			var existing *rubric.Rubric
			if opts.extend != "" {
				if existing, err = resolveRubric(a.rubrics, opts.extend); err != nil {
					return err
				}
			}
			if opts.out == "" {
				id := opts.id
				if existing != nil {
					id = existing.ID
				}
				opts.out = filepath.Join(a.cfg.Paths.Rubrics, id+".yaml")
			}
			return runRubricGenerate(cmd.Context(), cmd.OutOrStdout(), rubric.NewGenerator(client, nil), existing, opts)
		},
	}

	cmd.Flags().StringVar(&opts.feedback, "feedback", "", "YAML or JSON file of rated results (required)")
	cmd.Flags().StringVar(&opts.id, "id", "", "Id of the new rubric")
	cmd.Flags().StringVar(&opts.name, "name", "", "Display name of the new rubric")
	cmd.Flags().StringVar(&opts.extend, "extend", "", "Add criteria to this rubric id or file instead of creating one")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Rubric file to write (default: <rubric dir>/<id>.yaml)")
	_ = cmd.MarkFlagRequired("feedback")

	return cmd
}

// runRubricGenerate builds or extends a rubric from the feedback file and
// writes it to opts.out.
func runRubricGenerate(ctx context.Context, w io.Writer, gen *rubric.Generator, existing *rubric.Rubric, opts generateOptions) error {
	if existing == nil && opts.id == "" {
		return errors.New(errors.ErrCodeInvalidInput, "a new rubric needs --id", nil).
			WithSuggestion("Pass --id, or --extend an existing rubric")
	}

	feedback, err := loadFeedback(opts.feedback)
	if err != nil {
		return err
	}

	out := output.New(w)
	var r *rubric.Rubric
	if existing == nil {
		criteria, err := gen.Generate(ctx, feedback)
		if err != nil {
			return err
		}
		r = &rubric.Rubric{ID: opts.id, Name: opts.name, Criteria: criteria, CreatedAt: time.Now().UTC()}
	} else {
		r = &rubric.Rubric{ID: existing.ID, Name: existing.Name, CreatedAt: existing.CreatedAt}
		r.Criteria = append(r.Criteria, existing.Criteria...)
		if opts.name != "" {
			r.Name = opts.name
		}
		for _, fb := range feedback {
			c, err := gen.Integrate(ctx, r.Criteria, fb)
			if err != nil {
				out.Warningf("Skipped feedback %q: %v", truncate(fb.Feedback, 40), err)
				continue
			}
			r.Criteria = append(r.Criteria, c)
		}
	}

	if err := rubric.WriteFile(opts.out, r); err != nil {
		return err
	}

	added := len(r.Criteria)
	if existing != nil {
		added -= len(existing.Criteria)
	}
	out.Successf("Wrote rubric %s with %d criteria (%d new)", r.ID, len(r.Criteria), added)
	out.Statusf("📁", "Location: %s", opts.out)
	for _, c := range r.Criteria {
		out.Statusf("", "  - %s: %s", c.Label, c.Question)
	}
	return nil
}

// loadFeedback reads a YAML or JSON list of rated results.
func loadFeedback(path string) ([]rubric.Feedback, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("feedback file %s not found", path), err)
		}
		return nil, fmt.Errorf("failed to read feedback: %w", err)
	}

	var feedback []rubric.Feedback
	if err := yaml.Unmarshal(data, &feedback); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("feedback file %s is not a YAML or JSON list", path), err)
	}
	for i, fb := range feedback {
		switch fb.Rating {
		case rubric.RatingUp, rubric.RatingDown:
		default:
			return nil, errors.Newf(errors.ErrCodeInvalidInput, "feedback item %d: rating must be up or down, got %q", i+1, fb.Rating)
		}
	}
	return feedback, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}
