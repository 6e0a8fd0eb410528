package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/rubricrank/internal/config"
	"github.com/Aman-CERP/rubricrank/internal/corpus"
	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/scorer"
	"github.com/Aman-CERP/rubricrank/internal/search"
	"github.com/Aman-CERP/rubricrank/internal/store"
	"github.com/Aman-CERP/rubricrank/internal/telemetry"
)

// app bundles the components every command builds from the configuration.
type app struct {
	cfg      *config.Config
	registry *search.Registry
	rubrics  *rubric.Store
	metrics  *telemetry.Metrics
	queries  *telemetry.QueryLog
	logger   *slog.Logger
}

// newApp loads the configuration for dir, restores the rubric store and
// prepares an empty registry. Corpora are loaded separately.
func newApp(dir string, logger *slog.Logger) (*app, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	return newAppFromConfig(cfg, logger)
}

// newAppFromConfig is newApp for an already loaded configuration.
func newAppFromConfig(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rubrics, err := loadRubricStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := search.NewRegistry(
		search.WithLexicalConfig(store.LexicalConfig{
			Backend:    cfg.Search.LexicalBackend,
			TitleBoost: cfg.Search.TitleBoost,
		}),
		search.WithVectorOptions(store.WithANN(cfg.Search.ANNThreshold, cfg.Search.ANNOversample)),
		search.WithRegistryLogger(logger),
	)

	return &app{
		cfg:      cfg,
		registry: registry,
		rubrics:  rubrics,
		metrics:  telemetry.NewMetrics(),
		queries:  telemetry.NewQueryLog(),
		logger:   logger,
	}, nil
}

// Close releases the engines.
func (a *app) Close() error {
	return a.registry.Close()
}

// loadCorpora builds engines for every corpus file in the configured
// directory and returns the loaded corpora.
func (a *app) loadCorpora(ctx context.Context) ([]store.Corpus, error) {
	corpora, err := corpus.LoadDir(a.cfg.Paths.Corpora)
	if err != nil {
		return nil, err
	}
	for _, c := range corpora {
		if _, err := a.registry.Build(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to index corpus %s: %w", c.ID, err)
		}
	}
	a.logger.Info("corpora_loaded",
		slog.String("dir", a.cfg.Paths.Corpora),
		slog.Int("corpora", len(corpora)))
	return corpora, nil
}

// newScorer creates the configured scoring oracle.
func (a *app) newScorer() (rubric.Scorer, error) {
	return scorer.New(scorer.Options{
		Provider:  a.cfg.Scorer.Provider,
		Endpoint:  a.cfg.Scorer.Endpoint,
		APIKeyEnv: a.cfg.Scorer.APIKeyEnv,
		Model:     a.cfg.Scorer.Model,
		CacheSize: a.cfg.Scorer.CacheSize,
		PoolSize:  a.cfg.Indexer.Concurrency,
	})
}

// newEngine creates a search engine. A nil scorer disables live reranking;
// precomputed indexes still work.
func (a *app) newEngine(s rubric.Scorer) (*search.Engine, func(), error) {
	opts := []search.EngineOption{
		search.WithCalibration(search.Calibration{
			KeywordDivisor:   a.cfg.Search.KeywordDivisor,
			HybridMultiplier: a.cfg.Search.HybridMultiplier,
		}),
		search.WithRRF(a.cfg.Search.RRFConstant),
		search.WithDefaultLimit(a.cfg.Search.DefaultLimit),
		search.WithCandidateMultiplier(a.cfg.Search.CandidateMultiplier),
		search.WithMetrics(a.metrics),
		search.WithQueryLog(a.queries),
		search.WithLogger(a.logger),
	}

	reranker, err := search.NewReranker(s, a.cfg.Scorer.Workers, search.WithRerankLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, search.WithReranker(reranker))

	return search.NewEngine(a.registry, opts...), reranker.Close, nil
}

// indexerConfig maps the indexer settings onto the batch indexer.
func (a *app) indexerConfig() rubric.IndexerConfig {
	cfg := rubric.DefaultIndexerConfig()
	cfg.Concurrency = a.cfg.Indexer.Concurrency
	cfg.Retry.MaxRetries = a.cfg.Indexer.MaxRetries
	if d := a.cfg.Indexer.InitialDelayDuration(); d > 0 {
		cfg.Retry.InitialDelay = d
	}
	if d := a.cfg.Indexer.MaxDelayDuration(); d > 0 {
		cfg.Retry.MaxDelay = d
	}
	cfg.Retry.AttemptTimeout = a.cfg.Indexer.CallTimeoutDuration()
	return cfg
}

// newManager creates a job manager over the app's rubric store.
func (a *app) newManager(s rubric.Scorer) *rubric.Manager {
	indexer := rubric.NewBatchIndexer(s, a.indexerConfig(),
		rubric.WithIndexerMetrics(a.metrics),
		rubric.WithIndexerLogger(a.logger))
	return rubric.NewManager(indexer, a.rubrics,
		rubric.WithManagerMetrics(a.metrics),
		rubric.WithManagerLogger(a.logger))
}

// saveSnapshot persists the rubric store.
func (a *app) saveSnapshot() error {
	return rubric.SaveSnapshot(a.cfg.Paths.Snapshot, a.rubrics.Snapshot())
}

// loadRubricStore restores the snapshot, when one exists, then loads rubric
// files. A file rubric replaces the snapshot definition with the same id.
func loadRubricStore(cfg *config.Config, logger *slog.Logger) (*rubric.Store, error) {
	st := rubric.NewStore()

	if fileExists(cfg.Paths.Snapshot) {
		snap, err := rubric.LoadSnapshot(cfg.Paths.Snapshot)
		if err != nil {
			return nil, err
		}
		if err := st.Restore(snap); err != nil {
			return nil, err
		}
		logger.Debug("snapshot_restored",
			slog.String("path", cfg.Paths.Snapshot),
			slog.Int("rubrics", len(snap.Rubrics)),
			slog.Int("indexes", len(snap.Indexes)))
	}

	if !dirExists(cfg.Paths.Rubrics) {
		return st, nil
	}
	rubrics, err := rubric.LoadDir(cfg.Paths.Rubrics)
	if err != nil {
		return nil, err
	}
	for _, r := range rubrics {
		if err := st.PutRubric(r); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// resolveRubric looks up a rubric by id, falling back to a rubric file path.
func resolveRubric(st *rubric.Store, ref string) (*rubric.Rubric, error) {
	r, err := st.Rubric(ref)
	if err == nil {
		return r, nil
	}
	if !fileExists(ref) {
		return nil, err
	}
	r, ferr := rubric.LoadFile(ref)
	if ferr != nil {
		return nil, ferr
	}
	if perr := st.PutRubric(r); perr != nil {
		return nil, perr
	}
	return r, nil
}

// fileExists checks if a regular file exists.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// requireCorpora fails when nothing was loaded.
func requireCorpora(corpora []store.Corpus, dir string) error {
	if len(corpora) == 0 {
		return errors.Newf(errors.ErrCodeNoCorpus, "no corpus files found in %s", dir).
			WithSuggestion("Add .json, .jsonl or .txt files to the corpora directory")
	}
	return nil
}
