package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/davidroman0O/depender"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	// Global flags
	logLevel string
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

var rootCmd = &cobra.Command{
	Use:   "depender",
	Short: "Run steps in dependency order",
	Long: `Depender loads a plan of named steps from a JSON, YAML or TOML file,
resolves the dependencies of a target step and runs each step at most once.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(runCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "depender %s\n", version)
	},
}

// newLogger builds the runner logger for the configured level. Logs go to w.
func newLogger(w io.Writer) (depender.Logger, error) {
	level, ok := logLevels[logLevel]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", logLevel)
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return depender.NewSlogLogger(slog.New(handler)), nil
}

// loadRunner reads the plan file and builds a runner from it.
func loadRunner(cmd *cobra.Command, path string) (*depender.Runner, error) {
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	def, err := depender.LoadPlanFile(path)
	if err != nil {
		return nil, err
	}

	return depender.NewRunnerFromPlan(def, depender.WithLogger(logger))
}
