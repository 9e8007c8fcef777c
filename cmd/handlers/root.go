package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"newslens/internal/config"
	"newslens/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	memoryStore bool
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newslens",
		Short: "newslens fetches news feeds and analyzes how outlets cover the same story.",
		Long: `newslens ingests RSS/Atom feeds from news outlets, classifies each article
with a language model, links articles that report the same story and
produces deep and comparative analyses on demand.

Typical flow:
  newslens migrate up          # prepare the database
  newslens fetch               # ingest the configured feeds
  newslens triage --limit 50   # classify new articles and link related ones
  newslens compare ID ID ...   # compare coverage of one story
  newslens serve               # expose everything over HTTP`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.newslens.yaml)")
	rootCmd.PersistentFlags().BoolVar(&memoryStore, "memory", false, "use an in-memory store instead of PostgreSQL (data is lost on exit)")

	rootCmd.AddCommand(NewFetchCmd())
	rootCmd.AddCommand(NewTriageCmd())
	rootCmd.AddCommand(NewDeepCmd())
	rootCmd.AddCommand(NewCompareCmd())
	rootCmd.AddCommand(NewRelatedCmd())
	rootCmd.AddCommand(NewBackfillCmd())
	rootCmd.AddCommand(NewArticlesCmd())
	rootCmd.AddCommand(NewStatsCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewMigrateCmd())

	return rootCmd
}

// Execute runs the root command. Commands see a context that is cancelled on
// SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables and configures logging.
func initConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	// Logs go to stderr so command output stays pipeable.
	logger.Configure(cfg.Logging.Format, cfg.Logging.Level, os.Stderr)

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
	return nil
}
