package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
//
// Scoring progress arrives once per document, so lines are written only when
// the corpus changes, when it completes, or every reportEvery documents.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	stage  Stage
	corpus string
	last   int
	errors []ErrorEvent
}

const reportEvery = 100

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := event.Stage != r.stage || event.Corpus != r.corpus
	r.stage = event.Stage
	r.corpus = event.Corpus

	if event.Total > 0 {
		if !changed && event.Current != event.Total && event.Current-r.last < reportEvery {
			return
		}
		r.last = event.Current
		label := event.Corpus
		if event.Message != "" {
			label = event.Message
		}
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, label)
		return
	}

	r.last = 0
	msg := event.Message
	if msg == "" {
		msg = event.Corpus
	}
	if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Corpus != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Corpus, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	verb := "Complete"
	if stats.Cancelled {
		verb = "Cancelled"
	}
	_, _ = fmt.Fprintf(r.out, "%s: %d documents in %d corpora scored in %s",
		verb, stats.Documents, stats.Corpora, stats.Duration.Round(100*time.Millisecond))
	if stats.Rubric != "" {
		_, _ = fmt.Fprintf(r.out, " (rubric %s)", stats.Rubric)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Failures > 0 {
		_, _ = fmt.Fprintf(r.out, "  %d documents fell back to a zero score\n", stats.Failures)
	}
	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, "  %d errors, %d warnings\n", stats.Errors, stats.Warnings)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
