// Package cmd provides the CLI commands for codescope.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/logging"
	"github.com/codescope/codescope/internal/profiling"
	"github.com/codescope/codescope/pkg/version"
)

var (
	debugMode      bool
	noEmbed        bool
	loggingCleanup func()

	profileCPU string
	profileMem string
	profiler   = profiling.New()
	cpuCleanup func()
)

// NewRootCmd creates the root command for the codescope CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codescope",
		Short: "Local incremental code intelligence index",
		Long: `Codescope parses source trees into hierarchical chunks, compacts
them, and serves hybrid symbol, full-text, structural, and semantic
search over the result.

Run 'codescope index' in a project directory, then 'codescope search'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("codescope version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&noEmbed, "no-embed", false, "Disable the embedding provider for this run")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write a CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write a heap profile to file on exit")

	cmd.PersistentPreRunE = startRun
	cmd.PersistentPostRunE = stopRun

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startRun sets up logging and, when requested, CPU profiling.
func startRun(cmd *cobra.Command, args []string) error {
	if err := setupLogging(cmd, args); err != nil {
		return err
	}
	if profileCPU != "" {
		stop, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return err
		}
		cpuCleanup = stop
	}
	return nil
}

// stopRun flushes profiles and closes the log file.
func stopRun(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return err
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// setupLogging routes structured logs to a rotated file under the data
// directory, keeping stdout free for command output.
func setupLogging(_ *cobra.Command, _ []string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig(config.DataDir(root))
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	// No data directory means nothing has been indexed here. Keep the
	// tree untouched and surface only warnings on stderr.
	if _, statErr := os.Stat(config.DataDir(root)); statErr != nil && !debugMode {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
		return nil
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging is best effort. Fall back to stderr.
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		return nil
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
