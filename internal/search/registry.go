package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/store"
)

// Engines are the read-only search handles built from one corpus.
type Engines struct {
	CorpusID   string
	CorpusName string
	Lexical    store.LexicalIndex
	Vector     store.Searcher
	BuiltAt    time.Time

	docs  map[string]store.Document
	order []string
}

// NewEngines assembles handles around an already-built pair of engines.
// Either engine may be nil; strategies that need it will fail as not ready.
func NewEngines(corpus store.Corpus, lexical store.LexicalIndex, vector store.Searcher) *Engines {
	e := &Engines{
		CorpusID:   corpus.ID,
		CorpusName: corpus.Name,
		Lexical:    lexical,
		Vector:     vector,
		BuiltAt:    time.Now(),
		docs:       make(map[string]store.Document, len(corpus.Documents)),
		order:      make([]string, 0, len(corpus.Documents)),
	}
	for _, d := range corpus.Documents {
		e.docs[d.ID] = d
		e.order = append(e.order, d.ID)
	}
	return e
}

// Document resolves a hit id to its document.
func (e *Engines) Document(id string) (store.Document, bool) {
	d, ok := e.docs[id]
	return d, ok
}

// DocumentCount returns the size of the corpus the engines were built from.
func (e *Engines) DocumentCount() int {
	return len(e.order)
}

// Documents returns the corpus documents in their original order.
func (e *Engines) Documents() []store.Document {
	out := make([]store.Document, len(e.order))
	for i, id := range e.order {
		out[i] = e.docs[id]
	}
	return out
}

// Corpus reassembles the corpus the engines were built from.
func (e *Engines) Corpus() store.Corpus {
	return store.Corpus{
		ID:        e.CorpusID,
		Name:      e.CorpusName,
		Documents: e.Documents(),
		Ready:     true,
	}
}

func (e *Engines) close() error {
	if e.Lexical == nil {
		return nil
	}
	return e.Lexical.Close()
}

// Registry owns the engines of every corpus. Writers are serialized by a
// mutex and publish a fresh immutable map; readers load it without locking.
type Registry struct {
	mu       sync.Mutex
	current  atomic.Pointer[map[string]*Engines]
	building map[string]struct{}

	lexical    store.LexicalConfig
	vectorOpts []store.VectorOption
	logger     *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLexicalConfig sets the lexical backend configuration.
func WithLexicalConfig(cfg store.LexicalConfig) RegistryOption {
	return func(r *Registry) {
		r.lexical = cfg
	}
}

// WithVectorOptions sets options passed to every vector index build.
func WithVectorOptions(opts ...store.VectorOption) RegistryOption {
	return func(r *Registry) {
		r.vectorOpts = opts
	}
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		building: make(map[string]struct{}),
		lexical:  store.DefaultLexicalConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	empty := make(map[string]*Engines)
	r.current.Store(&empty)
	return r
}

// Build indexes corpus with both engines and publishes the result,
// replacing any previous engines for the same corpus id. A second Build of
// a corpus that is still building is rejected.
func (r *Registry) Build(ctx context.Context, corpus store.Corpus) (*Engines, error) {
	if err := validateCorpus(corpus); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, busy := r.building[corpus.ID]; busy {
		r.mu.Unlock()
		return nil, errors.Newf(errors.ErrCodeIndexingFailed, "corpus %q is already being built", corpus.ID).
			WithDetail("corpus_id", corpus.ID)
	}
	r.building[corpus.ID] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.building, corpus.ID)
		r.mu.Unlock()
	}()

	start := time.Now()

	var (
		lexical store.LexicalIndex
		vector  *store.VectorIndex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		idx, err := store.NewLexicalIndex(r.lexical)
		if err != nil {
			return err
		}
		if err := idx.Index(gctx, corpus.Documents); err != nil {
			_ = idx.Close()
			return err
		}
		lexical = idx
		return nil
	})
	g.Go(func() error {
		idx, err := store.NewVectorIndex(corpus.Documents, r.vectorOpts...)
		if err != nil {
			return err
		}
		vector = idx
		return nil
	})
	if err := g.Wait(); err != nil {
		if lexical != nil {
			_ = lexical.Close()
		}
		return nil, errors.New(errors.ErrCodeIndexingFailed,
			fmt.Sprintf("failed to build engines for corpus %q", corpus.ID), err).
			WithDetail("corpus_id", corpus.ID)
	}

	engines := NewEngines(corpus, lexical, vector)
	previous := r.publish(corpus.ID, engines)
	if previous != nil {
		if err := previous.close(); err != nil {
			r.logger.Warn("engines_close_failed",
				slog.String("corpus_id", corpus.ID),
				slog.String("error", err.Error()))
		}
	}

	r.logger.Info("corpus_engines_built",
		slog.String("corpus_id", corpus.ID),
		slog.Int("documents", len(corpus.Documents)),
		slog.Int("vocabulary", vector.Model().VocabularySize()),
		slog.String("lexical_backend", r.lexical.Backend),
		slog.Duration("duration", time.Since(start)))

	return engines, nil
}

// Register publishes prebuilt engines. Used when the caller builds engines
// itself, for example with a different lexical backend.
func (r *Registry) Register(engines *Engines) {
	if previous := r.publish(engines.CorpusID, engines); previous != nil && previous != engines {
		_ = previous.close()
	}
}

func (r *Registry) publish(id string, engines *Engines) *Engines {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.current.Load()
	next := make(map[string]*Engines, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	previous := next[id]
	next[id] = engines
	r.current.Store(&next)
	return previous
}

// Get returns the engines for corpusID.
func (r *Registry) Get(corpusID string) (*Engines, bool) {
	e, ok := (*r.current.Load())[corpusID]
	return e, ok
}

// List returns all registered engines ordered by corpus id.
func (r *Registry) List() []*Engines {
	m := *r.current.Load()
	out := make([]*Engines, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CorpusID < out[j].CorpusID })
	return out
}

// Remove unpublishes and closes the engines for corpusID.
func (r *Registry) Remove(corpusID string) bool {
	r.mu.Lock()
	old := *r.current.Load()
	e, ok := old[corpusID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	next := make(map[string]*Engines, len(old))
	for k, v := range old {
		if k != corpusID {
			next[k] = v
		}
	}
	r.current.Store(&next)
	r.mu.Unlock()

	_ = e.close()
	return true
}

// Close releases every registered engine.
func (r *Registry) Close() error {
	r.mu.Lock()
	old := *r.current.Load()
	empty := make(map[string]*Engines)
	r.current.Store(&empty)
	r.mu.Unlock()

	var firstErr error
	for _, e := range old {
		if err := e.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func validateCorpus(corpus store.Corpus) error {
	if corpus.ID == "" {
		return errors.New(errors.ErrCodeCorpusInvalid, "corpus id is required", nil)
	}
	seen := make(map[string]struct{}, len(corpus.Documents))
	for i, d := range corpus.Documents {
		if d.ID == "" {
			return errors.Newf(errors.ErrCodeCorpusInvalid, "corpus %q document %d has no id", corpus.ID, i).
				WithDetail("corpus_id", corpus.ID)
		}
		if _, dup := seen[d.ID]; dup {
			return errors.Newf(errors.ErrCodeCorpusInvalid, "corpus %q has duplicate document id %q", corpus.ID, d.ID).
				WithDetail("corpus_id", corpus.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}
