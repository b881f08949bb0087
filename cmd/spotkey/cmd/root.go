// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/spotkey/pkg/config"
	"github.com/ChrisMcGann/spotkey/pkg/logger"
	"github.com/ChrisMcGann/spotkey/pkg/metrics"
)

var (
	// Global flags
	configFile  string
	logLevel    string
	debug       bool
	metricsFile string

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "spotkey",
	Short: "spotkey - Spectral annotation and alignment refinement",
	Long: `spotkey annotates chromatography-MS peak features against reference
libraries and refines cross-sample alignment results.

- Annotation against curated spectral libraries (MSP, SQLite), free-text
  compound databases and generated peptide references
- Alignment refinement: duplicate merging, global identifiers, isotope,
  adduct and correlation linking into putative compound groups
- Library conversion, validation and summaries`,
	Version:            "0.3.0",
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: flushMetrics,
}

// Execute runs the root command. An interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML parameter file (default $SPOTKEY_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Shorthand for --log-level debug")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(alignCmd)
	rootCmd.AddCommand(libraryCmd)
}

// setup loads .env, the configuration and the environment overrides, then
// starts the logger.
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load(".env")

	env := config.FromEnv()
	path := configFile
	if path == "" {
		path = env.ConfigPath
	}

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	loaded.Apply(env)
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded

	logger.Init(logger.Options{Level: cfg.LogLevel, Debug: debug})
	if path != "" {
		logger.Debug("configuration loaded", "path", path)
	}
	return nil
}

func flushMetrics(cmd *cobra.Command, args []string) error {
	if metricsFile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(metricsFile); err != nil {
		return err
	}
	logger.Debug("metrics written", "path", metricsFile)
	return nil
}
