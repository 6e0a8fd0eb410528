// Package cmd provides the CLI commands for rubricrank.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/logging"
	"github.com/Aman-CERP/rubricrank/internal/profiling"
	"github.com/Aman-CERP/rubricrank/pkg/version"
)

// Persistent flags
var (
	debugMode      bool
	projectDir     string
	loggingCleanup func()
	profileOpts    profiling.Options
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for rubricrank CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rubricrank",
		Short: "Corpus search with rubric reranking",
		Long: `rubricrank searches document corpora by keyword (BM25), semantic
(TF-IDF cosine) or hybrid (reciprocal rank fusion) retrieval, and reranks
the results by how well each document satisfies a rubric of yes/no
quality questions.

Rubric scores come from a scoring service, either live at query time or
from an index precomputed with 'rubricrank index'.

Run 'rubricrank serve' to expose search to MCP clients.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("rubricrank version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.rubricrank/logs/")
	cmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Project directory holding .rubricrank.yaml")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRubricCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging loads the project .env file, then starts the
// requested profiles and debug logging.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	envPath := filepath.Join(projectDir, ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	if profileOpts.Enabled() {
		session, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profileSession = session
	}

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

// stopProfilingAndLogging writes the profiles, then flushes and closes the
// debug log.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var profileErr error
	if profileSession != nil {
		profileErr = profileSession.Stop()
		profileSession = nil
	}

	if loggingCleanup != nil {
		slog.Debug("memory_at_exit", slog.String("heap_in_use", profiling.FormatBytes(profiling.HeapInUse())))
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	if profileErr != nil {
		return fmt.Errorf("failed to write profiles: %w", profileErr)
	}
	return nil
}

// Execute runs the root command and prints a failure the way the error
// package formats it for terminals.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errors.FormatForCLI(err))
	}
	return err
}
