package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/rubricrank/internal/config"
	"github.com/Aman-CERP/rubricrank/internal/corpus"
	"github.com/Aman-CERP/rubricrank/internal/logging"
	"github.com/Aman-CERP/rubricrank/internal/mcp"
	"github.com/Aman-CERP/rubricrank/internal/telemetry"
)

// serveOptions holds CLI flags for serve.
type serveOptions struct {
	transport   string
	watch       bool
	metricsAddr string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server on stdio.

Tools: search, list_corpora, index_rubric, index_status.
Resources: rubric://{id} and rubricrank://query_log.

Nothing but JSON-RPC is written to stdout; logs go to
~/.rubricrank/logs/rubricrank.log.

With --watch, corpus files added, changed or removed while the server runs
are reloaded. With --metrics-addr, Prometheus metrics are served on
/metrics alongside /healthz and /queries.`,
		Example: `  rubricrank serve
  rubricrank serve --watch --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport: stdio (default: configured server.transport)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload corpora when files in the corpora directory change")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve metrics on this address, e.g. :9090 (default: configured server.metrics_addr)")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return err
	}

	level := cfg.Server.LogLevel
	if debugMode {
		level = "debug"
	}
	logger, cleanup, err := logging.Setup(logging.ServeConfig(level))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	a, err := newAppFromConfig(cfg, logger)
	if err != nil {
		logger.Error("serve_init_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = a.Close() }()

	transport := opts.transport
	if transport == "" {
		transport = a.cfg.Server.Transport
	}
	metricsAddr := opts.metricsAddr
	if metricsAddr == "" {
		metricsAddr = a.cfg.Server.MetricsAddr
	}

	watcher, err := corpus.NewWatcher(a.cfg.Paths.Corpora, a.registry,
		corpus.WithRubricStore(a.rubrics),
		corpus.WithWatcherLogger(logger),
		corpus.WithReloadHook(func(changes []corpus.Change) {
			for _, c := range changes {
				if c.Err != nil {
					logger.Warn("corpus_reload_failed", slog.String("path", c.Path), slog.String("error", c.Err.Error()))
					continue
				}
				logger.Info("corpus_reloaded",
					slog.String("corpus_id", c.CorpusID),
					slog.String("op", c.Op.String()),
					slog.Int("documents", c.Documents))
			}
		}))
	if err != nil {
		return err
	}
	if _, err := watcher.Sync(ctx); err != nil {
		logger.Error("corpus_load_failed", slog.String("error", err.Error()))
		return err
	}

	s, err := a.newScorer()
	if err != nil {
		logger.Error("scorer_init_failed", slog.String("error", err.Error()))
		return err
	}
	engine, closeEngine, err := a.newEngine(s)
	if err != nil {
		return err
	}
	defer closeEngine()

	server, err := mcp.NewServer(engine, a.newManager(s),
		mcp.WithServerLogger(logger),
		mcp.WithSnapshotPath(a.cfg.Paths.Snapshot),
		mcp.WithDefaultWeight(a.cfg.Search.RubricWeight),
		mcp.WithQueryLog(a.queries))
	if err != nil {
		return err
	}
	defer func() { _ = server.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// The MCP session ends when the client closes stdin; everything else
	// follows it down.
	g.Go(func() error {
		defer cancel()
		return ignoreCanceled(server.Serve(gctx, transport))
	})
	if opts.watch {
		g.Go(func() error {
			return ignoreCanceled(watcher.Run(gctx))
		})
	}
	if metricsAddr != "" {
		g.Go(func() error {
			return telemetry.Serve(gctx, metricsAddr, telemetry.NewHandler(a.metrics, a.queries), logger)
		})
	}

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
