package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/repolens/internal/config"
	"github.com/stwalsh4118/repolens/internal/git"
	"github.com/stwalsh4118/repolens/internal/logging"
)

const (
	version = "0.1.0"
)

// rootOptions are the persistent flags shared by every command
type rootOptions struct {
	repo    string
	json    bool
	verbose bool
}

// NewRootCmd creates and returns the root command for repolens
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "repolens",
		Short: "Inspect, sync and analyze git repositories",
		Long: `repolens reports the live state of a git working tree, recovers from
common push failures, and turns commit history into activity analytics.

Every query re-reads the repository; nothing is cached between runs.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.repo, "repo", "C", ".", "Repository path")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Write machine-readable JSON")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newChangesCmd(opts))
	rootCmd.AddCommand(newLogCmd(opts))
	rootCmd.AddCommand(newAnalyzeCmd(opts))
	rootCmd.AddCommand(newPushCmd(opts))
	rootCmd.AddCommand(newSyncCmd(opts))
	rootCmd.AddCommand(newStageCmd(opts))
	rootCmd.AddCommand(newUnstageCmd(opts))
	rootCmd.AddCommand(newCommitCmd(opts))
	rootCmd.AddCommand(newBranchCmd(opts))
	rootCmd.AddCommand(newRemoteCmd(opts))
	rootCmd.AddCommand(newInitCmd(opts))
	rootCmd.AddCommand(newDiscoverCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newTaskCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// app is the per-invocation wiring: configuration, logger and engine
type app struct {
	cfg    *config.Config
	logger logging.Logger
	engine *git.Engine
	repo   git.Repository
	out    io.Writer
	json   bool
}

// newApp loads configuration and builds the engine for cmd. Unless verbose
// is set, console logging is turned off so command output stays clean.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := cfg.Logging
	if opts.verbose {
		logCfg.Level = "debug"
		logCfg.Console = true
	} else if cmd.Name() != "serve" {
		logCfg.Console = false
	}
	logger := logging.NewNoopLogger()
	if logCfg.Console || logCfg.FilePath != "" {
		logger, err = logging.NewLogger(logCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	engine, err := git.NewEngine(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	repo, err := git.NewRepository(opts.repo)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger.With("command", cmd.Name()),
		engine: engine,
		repo:   repo,
		out:    cmd.OutOrStdout(),
		json:   opts.json,
	}, nil
}

// commandContext returns the command context, which cobra leaves nil when Execute is used
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
