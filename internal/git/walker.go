package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stwalsh4118/repolens/internal/logging"
)

// DefaultMaxCount bounds a walk when WalkOptions.MaxCount is unset
const DefaultMaxCount = 100

const (
	recordSeparator = "\x1e"
	fieldSeparator  = "\x1f"
	logFormat       = "--format=%x1e%H%x1f%an%x1f%ae%x1f%aI%x1f%B"
)

// WalkOptions filters a history walk. Since and Until accept any date
// expression git understands.
type WalkOptions struct {
	MaxCount int    `json:"maxCount,omitempty"`
	Since    string `json:"since,omitempty"`
	Until    string `json:"until,omitempty"`
	Author   string `json:"author,omitempty"`
}

// CommitWalker lists commits newest first with per-commit diffstats
type CommitWalker interface {
	// Walk returns at most MaxCount commits. A path without history yields an
	// empty slice; only cancellation of ctx is reported as an error.
	Walk(ctx context.Context, repo Repository, opts WalkOptions) ([]CommitMetadata, error)
}

type commitWalker struct {
	runner  Runner
	stats   DiffStatSource
	workers int
	logger  logging.Logger
}

// NewCommitWalker creates a walker that fans diffstat lookups out over at
// most workers goroutines.
func NewCommitWalker(runner Runner, stats DiffStatSource, workers int, logger logging.Logger) (CommitWalker, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if stats == nil {
		return nil, fmt.Errorf("diffstat source cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if workers < 1 {
		workers = 1
	}
	return &commitWalker{
		runner:  runner,
		stats:   stats,
		workers: workers,
		logger:  logger.With("component", "commit_walker"),
	}, nil
}

func (w *commitWalker) Walk(ctx context.Context, repo Repository, opts WalkOptions) ([]CommitMetadata, error) {
	maxCount := opts.MaxCount
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}

	args := []string{"log", fmt.Sprintf("--max-count=%d", maxCount), logFormat}
	if opts.Since != "" {
		args = append(args, "--since="+opts.Since)
	}
	if opts.Until != "" {
		args = append(args, "--until="+opts.Until)
	}
	if opts.Author != "" {
		args = append(args, "--author="+opts.Author)
	}

	out, err := w.runner.Run(ctx, repo.Path, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		w.logger.Debug("log query returned no history", "path", repo.Path, "error", err)
		return []CommitMetadata{}, nil
	}

	commits := parseLog(out)
	if len(commits) == 0 {
		return commits, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i := range commits {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			stat, err := w.stats.Stats(gctx, repo, commits[i].Hash)
			if err != nil {
				w.logger.Debug("diffstat failed, emitting zeroed stats", "commit", commits[i].Hash, "error", err)
				return nil
			}
			commits[i].FilesChanged = stat.Files
			commits[i].Insertions = stat.Insertions
			commits[i].Deletions = stat.Deletions
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.logger.Debug("walked history", "path", repo.Path, "commits", len(commits))
	return commits, nil
}

// parseLog splits log output produced with logFormat into commits. Stats
// start zeroed and task references are extracted from the full message.
func parseLog(out string) []CommitMetadata {
	commits := []CommitMetadata{}
	for _, record := range strings.Split(out, recordSeparator) {
		if strings.TrimSpace(record) == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSeparator, 5)
		if len(fields) != 5 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(fields[3]))
		if err != nil {
			continue
		}
		message := strings.TrimSpace(fields[4])
		commits = append(commits, CommitMetadata{
			Hash:           strings.TrimSpace(fields[0]),
			Message:        message,
			Author:         AuthorInfo{Name: fields[1], Email: fields[2]},
			Timestamp:      ts,
			FilesChanged:   []string{},
			TaskReferences: ExtractTaskReferences(message),
		})
	}
	return commits
}
