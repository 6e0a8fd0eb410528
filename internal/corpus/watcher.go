package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/search"
)

// DefaultDebounceWindow is the quiet period before a batch of file changes
// is applied.
const DefaultDebounceWindow = 200 * time.Millisecond

// Change is the outcome of applying one file event.
type Change struct {
	Path     string
	CorpusID string
	Op       Op
	// Documents is the new document count; zero for deletions.
	Documents int
	Err       error
}

// Watcher keeps a search registry in step with the corpus files of one
// directory. Rebuilding a corpus drops the rubric indexes built over its
// previous documents.
type Watcher struct {
	dir      string
	registry *search.Registry
	rubrics  *rubric.Store
	window   time.Duration
	onReload func([]Change)
	logger   *slog.Logger

	mu    sync.Mutex
	files map[string]string

	stopOnce sync.Once
	stopCh   chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithRubricStore drops stale rubric indexes when a corpus changes.
func WithRubricStore(st *rubric.Store) WatcherOption {
	return func(w *Watcher) {
		w.rubrics = st
	}
}

// WithDebounceWindow overrides DefaultDebounceWindow.
func WithDebounceWindow(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.window = d
		}
	}
}

// WithReloadHook receives the changes of every applied batch.
func WithReloadHook(fn func([]Change)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, registry *search.Registry, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus directory: %w", err)
	}
	w := &Watcher{
		dir:      abs,
		registry: registry,
		window:   DefaultDebounceWindow,
		logger:   slog.Default(),
		files:    make(map[string]string),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Sync loads every corpus file in the directory and builds its engines.
// Existing rubric indexes are kept.
func (w *Watcher) Sync(ctx context.Context) ([]Change, error) {
	files, err := loadDir(w.dir)
	if err != nil {
		return nil, err
	}

	changes := make([]Change, 0, len(files))
	for _, f := range files {
		if _, err := w.registry.Build(ctx, f.corpus); err != nil {
			return changes, err
		}
		w.mu.Lock()
		w.files[f.path] = f.corpus.ID
		w.mu.Unlock()
		changes = append(changes, Change{Path: f.path, CorpusID: f.corpus.ID, Op: OpCreate, Documents: len(f.corpus.Documents)})
	}

	w.logger.Info("corpora_synced",
		slog.String("dir", w.dir),
		slog.Int("corpora", len(changes)))
	return changes, nil
}

// Corpora returns the corpus ids the watcher currently tracks.
func (w *Watcher) Corpora() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for _, id := range w.files {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Run watches the directory until ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	debouncer := NewDebouncer(w.window)
	defer debouncer.Stop()

	w.logger.Info("corpus_watch_started", slog.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if e, ok := translate(event); ok {
				debouncer.Add(e)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("corpus_watch_error", slog.String("error", err.Error()))
		case batch, ok := <-debouncer.Output():
			if !ok {
				return nil
			}
			w.Apply(ctx, batch)
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func translate(event fsnotify.Event) (Event, bool) {
	if !Supported(event.Name) || filepath.Base(event.Name)[0] == '.' {
		return Event{}, false
	}
	switch {
	case event.Op&fsnotify.Create != 0:
		return Event{Path: event.Name, Op: OpCreate}, true
	case event.Op&fsnotify.Write != 0:
		return Event{Path: event.Name, Op: OpModify}, true
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return Event{Path: event.Name, Op: OpDelete}, true
	default:
		return Event{}, false
	}
}

// Apply rebuilds or removes the corpora named by a batch of events. A file
// that fails to load leaves the previous engines in place.
func (w *Watcher) Apply(ctx context.Context, batch []Event) []Change {
	changes := make([]Change, 0, len(batch))
	for _, e := range batch {
		changes = append(changes, w.apply(ctx, e))
	}
	if w.onReload != nil {
		w.onReload(changes)
	}
	return changes
}

func (w *Watcher) apply(ctx context.Context, e Event) Change {
	change := Change{Path: e.Path, Op: e.Op}

	w.mu.Lock()
	prevID, known := w.files[e.Path]
	w.mu.Unlock()

	if e.Op == OpDelete {
		if !known {
			return change
		}
		change.CorpusID = prevID
		w.drop(prevID)
		w.mu.Lock()
		delete(w.files, e.Path)
		w.mu.Unlock()
		w.logger.Info("corpus_removed",
			slog.String("corpus_id", prevID),
			slog.String("path", e.Path))
		return change
	}

	c, err := LoadFile(e.Path)
	if err != nil {
		change.Err = err
		w.logger.Warn("corpus_reload_failed",
			slog.String("path", e.Path),
			slog.String("error", err.Error()))
		return change
	}
	change.CorpusID = c.ID
	change.Documents = len(c.Documents)

	if _, err := w.registry.Build(ctx, c); err != nil {
		change.Err = err
		w.logger.Warn("corpus_reload_failed",
			slog.String("corpus_id", c.ID),
			slog.String("error", err.Error()))
		return change
	}
	if known && prevID != c.ID {
		w.drop(prevID)
	}
	if w.rubrics != nil {
		if n := w.rubrics.DropCorpus(c.ID); n > 0 {
			w.logger.Info("rubric_indexes_dropped",
				slog.String("corpus_id", c.ID),
				slog.Int("indexes", n))
		}
	}

	w.mu.Lock()
	w.files[e.Path] = c.ID
	w.mu.Unlock()

	w.logger.Info("corpus_reloaded",
		slog.String("corpus_id", c.ID),
		slog.String("op", e.Op.String()),
		slog.Int("documents", len(c.Documents)))
	return change
}

func (w *Watcher) drop(id string) {
	w.registry.Remove(id)
	if w.rubrics != nil {
		w.rubrics.DropCorpus(id)
	}
}
