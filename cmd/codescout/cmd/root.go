// Package cmd provides the CLI commands for CodeScout.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codescout/codescout/internal/logging"
	"github.com/codescout/codescout/pkg/version"
)

// Debug logging flag shared across commands.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the codescout CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codescout",
		Short: "Hybrid code search with rank fusion and adaptive routing",
		Long: `CodeScout searches indexed code snippets with hybrid retrieval.

Lexical and dense results are combined with Reciprocal Rank Fusion,
and a query router picks the retrieval strategy per query shape.

Index a JSONL corpus with 'codescout index', then query it with
'codescout search'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("codescout version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.codescout/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables debug logging when the --debug flag is set.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("Debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

// stopLogging flushes and closes the debug log.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
