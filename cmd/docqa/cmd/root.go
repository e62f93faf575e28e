// Package cmd provides the CLI commands for docqa.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docqa/internal/logging"
	"github.com/Aman-CERP/docqa/internal/profiling"
	"github.com/Aman-CERP/docqa/pkg/version"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	debug      bool
	offline    bool
	profile    profiling.Options
}

var (
	globals        globalOptions
	loggingCleanup func()
	profiler       *profiling.Session
)

// NewRootCmd creates the root command for the docqa CLI.
func NewRootCmd() *cobra.Command {
	globals = globalOptions{}

	cmd := &cobra.Command{
		Use:   "docqa",
		Short: "Question answering over Word and PowerPoint documents",
		Long: `docqa indexes .docx and .pptx files from the configured corpus folders,
stores their embeddings in an HNSW vector index and answers questions
grounded in the three closest chunks.

Run 'docqa serve' for the HTTP API, 'docqa mcp' for MCP clients,
or 'docqa chat' for an interactive terminal session.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("docqa version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&globals.configFile, "config", "", "Config file (default: .docqa.yaml in the current directory)")
	cmd.PersistentFlags().BoolVar(&globals.debug, "debug", false, "Enable debug logging to ~/.docqa/logs/")
	cmd.PersistentFlags().BoolVar(&globals.offline, "offline", false, "Use the static embedder and extractive completer (no network)")

	cmd.PersistentFlags().StringVar(&globals.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&globals.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&globals.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newSourcesCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// startProfilingAndLogging loads .env, starts requested profiles and, with
// --debug, switches to file logging. mcp sets up its own logger.
func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	// A missing .env is the common case.
	_ = godotenv.Load()

	if globals.profile.Enabled() {
		s, err := profiling.Start(globals.profile)
		if err != nil {
			return err
		}
		profiler = s
	}

	if !globals.debug || cmd.Name() == "mcp" {
		return nil
	}

	if err := logging.EnsureLogDir(); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profiler != nil {
		if err = profiler.Stop(); err == nil {
			slog.Debug("profiles written", slog.String("heap_in_use", profiling.FormatBytes(profiling.HeapInUse())))
		}
		profiler = nil
	}

	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
