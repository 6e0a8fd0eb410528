package rubric

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/store"
)

// JobState is the lifecycle state of an indexing job.
type JobState string

const (
	// JobPending is a job that has not started.
	JobPending JobState = "pending"
	// JobRunning is a job scoring corpora.
	JobRunning JobState = "running"
	// JobDone is a job that indexed every eligible corpus.
	JobDone JobState = "done"
	// JobFailed is a job stopped by an error.
	JobFailed JobState = "failed"
	// JobCancelled is a job stopped between corpora by Cancel.
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed || s == JobCancelled
}

// EligibleCorpora returns the corpora an indexing run processes: ready and
// non-empty, in input order.
func EligibleCorpora(corpora []store.Corpus) []store.Corpus {
	out := make([]store.Corpus, 0, len(corpora))
	for _, c := range corpora {
		if c.Ready && len(c.Documents) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// IndexOptions hooks into IndexRubric.
type IndexOptions struct {
	// OnCorpusStart is called before each corpus is scored.
	OnCorpusStart func(corpus store.Corpus)

	// OnProgress receives per-document progress within the current corpus.
	OnProgress ProgressFunc

	// OnIndex receives each finished index. An error stops the run.
	OnIndex func(index *Index) error
}

// IndexRubric builds one index per eligible corpus, in order. Cancellation of
// ctx is observed between corpora only: the corpus being scored when ctx is
// cancelled finishes and its index is delivered, then IndexRubric returns the
// indexes built so far together with ctx.Err(). A cancel during the last
// corpus is not reported, since every index was built.
func IndexRubric(ctx context.Context, indexer *BatchIndexer, r *Rubric, corpora []store.Corpus, opts IndexOptions) ([]*Index, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	eligible := EligibleCorpora(corpora)
	indexes := make([]*Index, 0, len(eligible))

	for _, corpus := range eligible {
		if err := ctx.Err(); err != nil {
			return indexes, err
		}
		if opts.OnCorpusStart != nil {
			opts.OnCorpusStart(corpus)
		}

		index, err := indexer.Build(context.WithoutCancel(ctx), r, corpus, opts.OnProgress)
		if err != nil {
			return indexes, err
		}
		if opts.OnIndex != nil {
			if err := opts.OnIndex(index); err != nil {
				return indexes, err
			}
		}
		indexes = append(indexes, index)
	}

	// A cancel that arrives during the last corpus has no boundary left to
	// stop at; every index was delivered.
	return indexes, nil
}

// CorpusProgress is the document progress of one corpus within a job.
type CorpusProgress struct {
	CorpusID   string `json:"corpus_id"`
	CorpusName string `json:"corpus_name"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
}

// JobSnapshot is an immutable view of a job.
type JobSnapshot struct {
	ID             string           `json:"id"`
	RubricID       string           `json:"rubric_id"`
	RubricName     string           `json:"rubric_name"`
	State          JobState         `json:"state"`
	CurrentCorpus  string           `json:"current_corpus,omitempty"`
	Corpora        []CorpusProgress `json:"corpora"`
	CompletedCount int              `json:"completed_count"`
	ProgressPct    float64          `json:"progress_pct"`
	StartedAt      time.Time        `json:"started_at"`
	ElapsedSeconds int              `json:"elapsed_seconds"`
	Error          string           `json:"error,omitempty"`
}

// Job runs IndexRubric in a background goroutine and tracks its progress.
type Job struct {
	id      string
	rubric  *Rubric
	corpora []store.Corpus
	indexer *BatchIndexer
	logger  *slog.Logger

	// OnIndex receives each finished index. It may be replaced before Start.
	OnIndex func(index *Index) error

	// OnProgress, when set, is forwarded every document progress event.
	OnProgress ProgressFunc

	mu        sync.RWMutex
	state     JobState
	current   string
	currentID string
	progress  []CorpusProgress
	position  map[string]int
	indexes   []*Index
	err       error
	startTime time.Time
	endTime   time.Time
	cancel    context.CancelFunc
	doneCh    chan struct{}
}

// NewJob creates a pending job over the eligible corpora.
func NewJob(id string, indexer *BatchIndexer, r *Rubric, corpora []store.Corpus, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	eligible := EligibleCorpora(corpora)
	j := &Job{
		id:       id,
		rubric:   r,
		corpora:  eligible,
		indexer:  indexer,
		logger:   logger,
		state:    JobPending,
		progress: make([]CorpusProgress, len(eligible)),
		position: make(map[string]int, len(eligible)),
		doneCh:   make(chan struct{}),
	}
	for i, c := range eligible {
		j.progress[i] = CorpusProgress{CorpusID: c.ID, CorpusName: c.Name, Total: len(c.Documents)}
		j.position[c.ID] = i
	}
	return j
}

// ID returns the job id.
func (j *Job) ID() string {
	return j.id
}

// Rubric returns the rubric being indexed.
func (j *Job) Rubric() *Rubric {
	return j.rubric
}

// Start begins indexing in a background goroutine. It is non-blocking and
// starting a job twice has no effect.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	if j.state != JobPending {
		j.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.state = JobRunning
	j.startTime = time.Now()
	j.mu.Unlock()

	go j.run(ctx, cancel)
}

func (j *Job) run(ctx context.Context, cancel context.CancelFunc) {
	defer close(j.doneCh)
	defer cancel()

	j.logger.Info("rubric_index_started",
		slog.String("job_id", j.id),
		slog.String("rubric_id", j.rubric.ID),
		slog.Int("corpora", len(j.corpora)))

	indexes, err := IndexRubric(ctx, j.indexer, j.rubric, j.corpora, IndexOptions{
		OnCorpusStart: j.corpusStarted,
		OnProgress:    j.documentResolved,
		OnIndex:       j.onIndex,
	})

	j.mu.Lock()
	j.indexes = indexes
	j.current = ""
	j.currentID = ""
	j.endTime = time.Now()
	switch {
	case err == nil:
		j.state = JobDone
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		j.state = JobCancelled
	default:
		j.state = JobFailed
		j.err = err
	}
	state := j.state
	j.mu.Unlock()

	attrs := []any{
		slog.String("job_id", j.id),
		slog.String("rubric_id", j.rubric.ID),
		slog.String("state", string(state)),
		slog.Int("indexes", len(indexes)),
		slog.Duration("duration", j.endTime.Sub(j.startTime)),
	}
	if state == JobFailed {
		j.logger.Error("rubric_index_failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	j.logger.Info("rubric_index_finished", attrs...)
}

func (j *Job) corpusStarted(corpus store.Corpus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.current = corpus.Name
	j.currentID = corpus.ID
}

func (j *Job) documentResolved(completed, total int, corpusName string) {
	j.mu.Lock()
	if i, ok := j.position[j.currentID]; ok {
		j.progress[i].Completed = completed
	}
	j.mu.Unlock()

	if j.OnProgress != nil {
		j.OnProgress(completed, total, corpusName)
	}
}

func (j *Job) onIndex(index *Index) error {
	j.mu.Lock()
	if i, ok := j.position[index.CorpusID]; ok {
		j.progress[i].Completed = j.progress[i].Total
	}
	j.mu.Unlock()

	if j.OnIndex != nil {
		return j.OnIndex(index)
	}
	return nil
}

// Cancel asks the job to stop before its next corpus.
func (j *Job) Cancel() {
	j.mu.RLock()
	cancel := j.cancel
	j.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.doneCh
}

// Wait blocks until the job finishes and returns its indexes. A cancelled job
// returns the indexes completed before cancellation and no error.
func (j *Job) Wait() ([]*Index, error) {
	<-j.doneCh
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.indexes, j.err
}

// State returns the current state.
func (j *Job) State() JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Snapshot returns an immutable copy of the job's progress.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	snap := JobSnapshot{
		ID:            j.id,
		RubricID:      j.rubric.ID,
		RubricName:    j.rubric.DisplayName(),
		State:         j.state,
		CurrentCorpus: j.current,
		Corpora:       make([]CorpusProgress, len(j.progress)),
		StartedAt:     j.startTime,
	}
	copy(snap.Corpora, j.progress)

	var done, total int
	for _, p := range j.progress {
		done += p.Completed
		total += p.Total
		if p.Total > 0 && p.Completed == p.Total {
			snap.CompletedCount++
		}
	}
	if total > 0 {
		snap.ProgressPct = float64(done) / float64(total) * 100.0
	}

	if !j.startTime.IsZero() {
		end := j.endTime
		if end.IsZero() {
			end = time.Now()
		}
		snap.ElapsedSeconds = int(end.Sub(j.startTime).Seconds())
	}
	if j.err != nil {
		snap.Error = j.err.Error()
	}
	return snap
}
