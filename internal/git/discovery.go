package git

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stwalsh4118/repolens/internal/config"
	"github.com/stwalsh4118/repolens/internal/logging"
)

// skippedDirs are never descended into while scanning for working trees
var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	".cache":       true,
}

// Discoverer finds working trees under watched directories
type Discoverer interface {
	DiscoverRepositories(ctx context.Context, dirs []string) ([]Repository, error)
	FindRepositories(ctx context.Context, dir string) ([]Repository, error)
}

type discoverer struct {
	logger logging.Logger
}

// NewDiscoverer creates a repository discoverer
func NewDiscoverer(logger logging.Logger) (Discoverer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &discoverer{logger: logger.With("component", "git_discovery")}, nil
}

// DiscoverRepositories scans every directory, skipping unreadable ones, and
// returns repositories deduplicated by path and sorted.
func (d *discoverer) DiscoverRepositories(ctx context.Context, dirs []string) ([]Repository, error) {
	seen := make(map[string]bool)
	repos := []Repository{}
	skipped := 0

	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		root := config.ExpandHomeDir(dir)
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}

		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			d.logger.Warn("watched directory unavailable, skipping", "path", dir, "resolved_path", root, "error", err)
			skipped++
			continue
		}

		found, err := d.FindRepositories(ctx, root)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Warn("failed to scan directory, continuing", "path", root, "error", err)
			skipped++
		}
		for _, repo := range found {
			if seen[repo.Path] {
				continue
			}
			seen[repo.Path] = true
			repos = append(repos, repo)
			d.logger.Debug("discovered repository", "path", repo.Path, "is_worktree", repo.IsWorktree)
		}
	}

	sort.Slice(repos, func(i, j int) bool { return repos[i].Path < repos[j].Path })
	d.logger.Info("repository discovery completed", "total_discovered", len(repos), "directories_skipped", skipped)
	return repos, nil
}

// FindRepositories walks dir looking for .git directories (regular
// repositories) and .git files (worktrees).
func (d *discoverer) FindRepositories(ctx context.Context, dir string) ([]Repository, error) {
	var repos []Repository

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if entry != nil && entry.IsDir() {
				d.logger.Debug("cannot read directory", "path", path, "error", err)
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() && skippedDirs[entry.Name()] {
			return filepath.SkipDir
		}
		if entry.Name() != ".git" {
			return nil
		}

		root := filepath.Dir(path)
		repo, err := d.repositoryAt(root, path, !entry.IsDir())
		if err != nil {
			d.logger.Warn("invalid repository, skipping", "path", root, "error", err)
		} else {
			repos = append(repos, repo)
		}
		if entry.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return repos, fmt.Errorf("error scanning directory: %w", err)
	}
	return repos, nil
}

func (d *discoverer) repositoryAt(root, dotGit string, worktree bool) (Repository, error) {
	gitDir := dotGit
	if worktree {
		resolved, err := readGitFile(root, dotGit)
		if err != nil {
			return Repository{}, err
		}
		gitDir = resolved
	}
	if _, err := openRepository(root); err != nil {
		return Repository{}, fmt.Errorf("repository validation failed: %w", err)
	}

	repo, err := NewRepository(root)
	if err != nil {
		return Repository{}, err
	}
	absGitDir, err := filepath.Abs(gitDir)
	if err != nil {
		return Repository{}, fmt.Errorf("failed to get absolute git dir path: %w", err)
	}
	repo.GitDir = absGitDir
	repo.IsWorktree = worktree
	return repo, nil
}

// readGitFile resolves the "gitdir: <path>" pointer of a worktree .git file
func readGitFile(root, gitFile string) (string, error) {
	content, err := os.ReadFile(gitFile)
	if err != nil {
		return "", fmt.Errorf("failed to read .git file: %w", err)
	}
	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return "", fmt.Errorf("invalid .git file format: expected 'gitdir: <path>' prefix")
	}
	gitDir := strings.TrimSpace(strings.TrimPrefix(line, "gitdir: "))
	if gitDir == "" {
		return "", fmt.Errorf("empty git directory path in .git file")
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(root, gitDir)
	}
	if resolved, err := filepath.EvalSymlinks(gitDir); err == nil {
		gitDir = resolved
	}
	info, err := os.Stat(gitDir)
	if err != nil {
		return "", fmt.Errorf("git directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("git directory path is not a directory: %s", gitDir)
	}
	return filepath.Clean(gitDir), nil
}

// IsRepository reports whether path is inside a working tree go-git can open
func IsRepository(path string) bool {
	_, err := openRepository(path)
	return err == nil
}

// RepositoryRoot returns the top level of the working tree containing path.
// Paths outside any working tree are returned cleaned.
func RepositoryRoot(path string) string {
	clean := filepath.Clean(path)
	r, err := openRepository(clean)
	if err != nil {
		return clean
	}
	wt, err := r.Worktree()
	if err != nil {
		return clean
	}
	return filepath.Clean(wt.Filesystem.Root())
}
