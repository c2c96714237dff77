package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/stwalsh4118/repolens/internal/logging"
)

// DiffStat is the per-commit numeric diff summary
type DiffStat struct {
	Files      []string
	Insertions int
	Deletions  int
}

// DiffStatSource computes the diffstat of a single commit
type DiffStatSource interface {
	Stats(ctx context.Context, repo Repository, hash string) (DiffStat, error)
}

type execDiffStat struct {
	runner Runner
}

// NewExecDiffStat reads diffstats with `git show --numstat`
func NewExecDiffStat(runner Runner) DiffStatSource {
	return &execDiffStat{runner: runner}
}

func (s *execDiffStat) Stats(ctx context.Context, repo Repository, hash string) (DiffStat, error) {
	out, err := s.runner.Run(ctx, repo.Path, "show", "--numstat", "--format=", hash)
	if err != nil {
		return DiffStat{}, err
	}
	return parseNumstat(out), nil
}

// parseNumstat parses `insertions \t deletions \t path` lines. Binary files
// report "-" and contribute zero lines while keeping their path.
func parseNumstat(out string) DiffStat {
	stat := DiffStat{Files: []string{}}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		stat.Insertions += parseNum(parts[0])
		stat.Deletions += parseNum(parts[1])
		stat.Files = append(stat.Files, renameDestination(parts[2]))
	}
	return stat
}

func parseNum(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// renameDestination resolves numstat rename notation ("a => b" or
// "dir/{a => b}/f") to the destination path.
func renameDestination(path string) string {
	if !strings.Contains(path, " => ") {
		return path
	}
	start := strings.Index(path, "{")
	end := strings.LastIndex(path, "}")
	if start >= 0 && end > start {
		inner := path[start+1 : end]
		if idx := strings.Index(inner, " => "); idx >= 0 {
			dest := path[:start] + inner[idx+4:] + path[end+1:]
			return strings.ReplaceAll(dest, "//", "/")
		}
	}
	return path[strings.Index(path, " => ")+4:]
}

type goGitDiffStat struct {
	logger logging.Logger
}

// NewGoGitDiffStat computes diffstats in-process from the first-parent patch
func NewGoGitDiffStat(logger logging.Logger) (DiffStatSource, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &goGitDiffStat{logger: logger.With("component", "gogit_diffstat")}, nil
}

func (s *goGitDiffStat) Stats(ctx context.Context, repo Repository, hash string) (DiffStat, error) {
	r, err := openRepository(repo.Path)
	if err != nil {
		return DiffStat{}, fmt.Errorf("failed to open repository: %w", err)
	}

	var commit *object.Commit
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := initialRetryDelay * time.Duration(1<<uint(attempt-1))
			s.logger.Debug("retrying commit object retrieval", "commit", hash, "attempt", attempt, "delay_ms", delay.Milliseconds())
			select {
			case <-ctx.Done():
				return DiffStat{}, ctx.Err()
			case <-time.After(delay):
			}
		}
		commit, err = r.CommitObject(plumbing.NewHash(hash))
		if err == nil {
			break
		}
		lastErr = err
		if !isTransientError(err) || attempt == maxRetries {
			return DiffStat{}, fmt.Errorf("failed to get commit object: %w", err)
		}
		s.logger.Warn("transient error getting commit object, will retry", "commit", hash, "attempt", attempt+1, "error", err)
	}
	if commit == nil {
		return DiffStat{}, fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
	}

	patch, err := firstParentPatch(ctx, commit)
	if err != nil {
		return DiffStat{}, err
	}
	return statFromPatch(patch), nil
}

// firstParentPatch diffs a commit against its first parent, or against the
// empty tree for a root commit.
func firstParentPatch(ctx context.Context, commit *object.Commit) (*object.Patch, error) {
	parents := commit.Parents()
	defer parents.Close()

	parent, err := parents.Next()
	if err == nil {
		patch, err := parent.PatchContext(ctx, commit)
		if err != nil {
			return nil, fmt.Errorf("failed to generate patch: %w", err)
		}
		return patch, nil
	}
	if !errors.Is(err, object.ErrParentNotFound) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to get parent commit: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get commit tree: %w", err)
	}
	changes, err := object.DiffTree(nil, tree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees for initial commit: %w", err)
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate patch for initial commit: %w", err)
	}
	return patch, nil
}

func statFromPatch(patch *object.Patch) DiffStat {
	stat := DiffStat{Files: []string{}}
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		switch {
		case to != nil:
			stat.Files = append(stat.Files, to.Path())
		case from != nil:
			stat.Files = append(stat.Files, from.Path())
		default:
			continue
		}
		// binary patches carry no chunks
		for _, chunk := range fp.Chunks() {
			n := countLines(chunk.Content())
			switch chunk.Type() {
			case diff.Add:
				stat.Insertions += n
			case diff.Delete:
				stat.Deletions += n
			}
		}
	}
	return stat
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// isTransientError checks if an error is likely transient and worth retrying
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"locked", "busy", "temporary", "timeout"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
