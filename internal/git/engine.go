package git

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/repolens/internal/config"
	"github.com/stwalsh4118/repolens/internal/logging"
)

// Engine bundles the probe, sync coordinator, walker and aggregator behind
// one value shared by the CLI and the server.
type Engine struct {
	Runner     Runner
	Probe      StatusProbe
	Sync       SyncCoordinator
	Walker     CommitWalker
	Aggregator *AnalyticsAggregator
	maxCount   int
	logger     logging.Logger
}

// NewEngine wires an engine from configuration
func NewEngine(cfg *config.Config, logger logging.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	runner, err := NewExecRunner(cfg.Git.Binary, seconds(cfg.Git.CommandTimeoutSeconds), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create git runner: %w", err)
	}
	return NewEngineWithRunner(cfg, runner, logger)
}

// NewEngineWithRunner wires an engine around an existing runner
func NewEngineWithRunner(cfg *config.Config, runner Runner, logger logging.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	probe, err := NewStatusProbe(runner, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create status probe: %w", err)
	}
	sync, err := NewSyncCoordinator(runner, cfg.Git.DefaultRemote, seconds(cfg.Git.NetworkTimeoutSeconds), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync coordinator: %w", err)
	}

	var stats DiffStatSource
	switch cfg.Git.StatsBackend {
	case config.StatsBackendGoGit:
		stats, err = NewGoGitDiffStat(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create diffstat source: %w", err)
		}
	case config.StatsBackendExec, "":
		stats = NewExecDiffStat(runner)
	default:
		return nil, fmt.Errorf("unknown stats backend: %s", cfg.Git.StatsBackend)
	}

	walker, err := NewCommitWalker(runner, stats, cfg.Git.StatsWorkers, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create commit walker: %w", err)
	}

	engine, err := AssembleEngine(probe, sync, walker, NewAnalyticsAggregator(cfg.Analysis.TopFiles), cfg.Analysis.MaxCount, logger)
	if err != nil {
		return nil, err
	}
	engine.Runner = runner
	return engine, nil
}

// AssembleEngine builds an engine from already constructed collaborators
func AssembleEngine(probe StatusProbe, sync SyncCoordinator, walker CommitWalker, aggregator *AnalyticsAggregator, maxCount int, logger logging.Logger) (*Engine, error) {
	if probe == nil || sync == nil || walker == nil || aggregator == nil {
		return nil, fmt.Errorf("engine collaborators cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Engine{
		Probe:      probe,
		Sync:       sync,
		Walker:     walker,
		Aggregator: aggregator,
		maxCount:   maxCount,
		logger:     logger.With("component", "engine"),
	}, nil
}

// Status returns the repository snapshot
func (e *Engine) Status(ctx context.Context, repo Repository) StatusSnapshot {
	return e.Probe.Snapshot(ctx, repo)
}

// Commits walks history, applying the configured max count when opts leaves it unset
func (e *Engine) Commits(ctx context.Context, repo Repository, opts WalkOptions) ([]CommitMetadata, error) {
	if opts.MaxCount <= 0 {
		opts.MaxCount = e.maxCount
	}
	return e.Walker.Walk(ctx, repo, opts)
}

// Analyze walks history and aggregates it
func (e *Engine) Analyze(ctx context.Context, repo Repository, opts WalkOptions) (CommitAnalysis, error) {
	commits, err := e.Commits(ctx, repo, opts)
	if err != nil {
		return CommitAnalysis{}, err
	}
	analysis := e.Aggregator.Aggregate(commits)
	e.logger.Debug("analyzed repository", "path", repo.Path, "commits", analysis.TotalCommits, "authors", len(analysis.Authors))
	return analysis, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
