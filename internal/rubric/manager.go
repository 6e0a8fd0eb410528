package rubric

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/store"
	"github.com/Aman-CERP/rubricrank/internal/telemetry"
)

// Manager starts indexing jobs and keeps them addressable by id. One rubric
// has at most one running job.
type Manager struct {
	indexer *BatchIndexer
	store   *Store
	metrics *telemetry.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerMetrics counts finished jobs by state.
func WithManagerMetrics(m *telemetry.Metrics) ManagerOption {
	return func(mg *Manager) {
		mg.metrics = m
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(mg *Manager) {
		mg.logger = logger
	}
}

// NewManager creates a manager whose jobs write finished indexes to st.
func NewManager(indexer *BatchIndexer, st *Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		indexer: indexer,
		store:   st,
		logger:  slog.Default(),
		jobs:    make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the index store jobs write to.
func (m *Manager) Store() *Store {
	return m.store
}

// Start launches a job indexing r over corpora. The job is detached from
// ctx's cancellation so it outlives the request that started it; use Cancel
// to stop it. onProgress may be nil.
func (m *Manager) Start(ctx context.Context, r *Rubric, corpora []store.Corpus, onProgress ProgressFunc) (*Job, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if len(EligibleCorpora(corpora)) == 0 {
		return nil, errors.New(errors.ErrCodeNoCorpus, "no ready corpus with documents to index", nil).
			WithSuggestion("Load a corpus before indexing a rubric")
	}

	m.mu.Lock()
	for _, j := range m.jobs {
		if j.rubric.ID == r.ID && !j.State().Terminal() {
			m.mu.Unlock()
			return nil, errors.Newf(errors.ErrCodeIndexingFailed, "rubric %q is already being indexed by job %s", r.ID, j.ID()).
				WithDetail("job_id", j.ID())
		}
	}
	job := NewJob(uuid.NewString(), m.indexer, r, corpora, m.logger)
	job.OnIndex = m.store.PutIndex
	job.OnProgress = onProgress
	m.jobs[job.ID()] = job
	m.mu.Unlock()

	m.metrics.IndexJob(string(JobRunning))
	job.Start(context.WithoutCancel(ctx))

	go func() {
		<-job.Done()
		m.metrics.IndexJob(string(job.State()))
	}()

	return job, nil
}

// Job returns the job with id.
func (m *Manager) Job(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok
}

// Jobs returns snapshots of every job, most recently started first.
func (m *Manager) Jobs() []JobSnapshot {
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	snaps := make([]JobSnapshot, len(jobs))
	for i, j := range jobs {
		snaps[i] = j.Snapshot()
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].StartedAt.Equal(snaps[j].StartedAt) {
			return snaps[i].StartedAt.After(snaps[j].StartedAt)
		}
		return snaps[i].ID < snaps[j].ID
	})
	return snaps
}

// Cancel stops the job with id before its next corpus.
func (m *Manager) Cancel(id string) error {
	j, ok := m.Job(id)
	if !ok {
		return errors.Newf(errors.ErrCodeInvalidInput, "job %q not found", id)
	}
	j.Cancel()
	return nil
}

// Shutdown cancels every running job and waits for them to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	for _, j := range jobs {
		j.Cancel()
	}
	for _, j := range jobs {
		if j.State() != JobPending {
			<-j.Done()
		}
	}
}
