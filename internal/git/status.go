package git

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"golang.org/x/sync/errgroup"

	"github.com/stwalsh4118/repolens/internal/logging"
)

var aheadPattern = regexp.MustCompile(`ahead (\d+)`)

// conflictCodes are the porcelain XY pairs git reports for unmerged paths
var conflictCodes = map[string]bool{
	"DD": true, "AU": true, "UD": true, "UA": true, "DU": true, "AA": true, "UU": true,
}

// StatusProbe computes read-only snapshots of a repository
type StatusProbe interface {
	// Snapshot never fails; any failure to query the path yields the zero snapshot
	Snapshot(ctx context.Context, repo Repository) StatusSnapshot
	// ListChanges returns staged, unstaged and untracked entries. Absence of a
	// repository yields an empty slice.
	ListChanges(ctx context.Context, repo Repository) []FileChangeEntry
	// ListBranches returns local branches sorted by name
	ListBranches(ctx context.Context, repo Repository) []BranchInfo
	// CurrentBranch returns the checked-out branch, or "" when HEAD is detached
	CurrentBranch(ctx context.Context, repo Repository) string
}

type statusProbe struct {
	runner Runner
	logger logging.Logger
}

// NewStatusProbe creates a probe that queries git through runner
func NewStatusProbe(runner Runner, logger logging.Logger) (StatusProbe, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &statusProbe{
		runner: runner,
		logger: logger.With("component", "status_probe"),
	}, nil
}

func (p *statusProbe) Snapshot(ctx context.Context, repo Repository) StatusSnapshot {
	out, err := p.runner.Run(ctx, repo.Path, "rev-parse", "--is-inside-work-tree")
	if err != nil || strings.TrimSpace(out) != "true" {
		p.logger.Debug("path is not a working tree", "path", repo.Path)
		return StatusSnapshot{}
	}

	var (
		porcelain string
		branch    string
		head      headCommit
		hasRemote bool
	)

	// Each sub-query degrades to its zero value, so the group never aborts early.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := p.runner.Run(gctx, repo.Path, "status", "--porcelain=v1", "-z")
		if err != nil {
			p.logger.Warn("status query failed", "path", repo.Path, "error", err)
			return nil
		}
		porcelain = out
		return nil
	})
	g.Go(func() error {
		branch = p.CurrentBranch(gctx, repo)
		return nil
	})
	g.Go(func() error {
		head, hasRemote = p.inspectRepository(repo)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return StatusSnapshot{}
	}

	entries := parsePorcelainZ(porcelain)
	snapshot := StatusSnapshot{
		IsRepo:                 true,
		HasRemote:              hasRemote,
		CurrentBranch:          branch,
		UncommittedChangeCount: countDistinctPaths(entries),
		HasConflicts:           hasConflictEntries(entries),
		LastCommitHash:         head.hash,
		LastCommitMessage:      head.message,
	}

	if hasRemote && branch != "" {
		snapshot.UnpushedCommitCount = p.aheadCount(ctx, repo, branch)
	}
	return snapshot
}

type headCommit struct {
	hash    string
	message string
}

// inspectRepository reads HEAD and remotes through go-git. An unborn HEAD or
// an unreadable repository leaves both values empty.
func (p *statusProbe) inspectRepository(repo Repository) (headCommit, bool) {
	r, err := openRepository(repo.Path)
	if err != nil {
		p.logger.Debug("go-git could not open repository", "path", repo.Path, "error", err)
		return headCommit{}, false
	}

	var head headCommit
	ref, err := r.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// empty repository
	case err != nil:
		p.logger.Debug("failed to resolve HEAD", "path", repo.Path, "error", err)
	default:
		commit, err := r.CommitObject(ref.Hash())
		if err != nil {
			p.logger.Debug("failed to read HEAD commit", "path", repo.Path, "error", err)
		} else {
			head = headCommit{hash: commit.Hash.String(), message: strings.TrimSpace(commit.Message)}
		}
	}

	remotes, err := r.Remotes()
	if err != nil {
		p.logger.Debug("failed to list remotes", "path", repo.Path, "error", err)
		return head, false
	}
	return head, len(remotes) > 0
}

func (p *statusProbe) aheadCount(ctx context.Context, repo Repository, branch string) int {
	out, err := p.runner.Run(ctx, repo.Path, "for-each-ref", "--format=%(upstream:track)", "refs/heads/"+branch)
	if err != nil {
		p.logger.Debug("upstream tracking query failed", "path", repo.Path, "branch", branch, "error", err)
		return 0
	}
	return parseAhead(out)
}

// parseAhead extracts N from a tracking descriptor such as "[ahead 2, behind 1]"
func parseAhead(track string) int {
	m := aheadPattern.FindStringSubmatch(track)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func (p *statusProbe) CurrentBranch(ctx context.Context, repo Repository) string {
	out, err := p.runner.Run(ctx, repo.Path, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func (p *statusProbe) ListChanges(ctx context.Context, repo Repository) []FileChangeEntry {
	out, err := p.runner.Run(ctx, repo.Path, "status", "--porcelain=v1", "-z")
	if err != nil {
		p.logger.Debug("status query failed", "path", repo.Path, "error", err)
		return []FileChangeEntry{}
	}
	return changesFromPorcelain(parsePorcelainZ(out))
}

func (p *statusProbe) ListBranches(ctx context.Context, repo Repository) []BranchInfo {
	out, err := p.runner.Run(ctx, repo.Path, "for-each-ref",
		"--format=%(HEAD)%00%(refname:short)%00%(upstream:short)", "refs/heads/")
	if err != nil {
		p.logger.Debug("branch query failed", "path", repo.Path, "error", err)
		return []BranchInfo{}
	}
	branches := parseBranchList(out)
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches
}

func parseBranchList(out string) []BranchInfo {
	branches := []BranchInfo{}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\x00")
		if len(fields) < 2 || fields[1] == "" {
			continue
		}
		info := BranchInfo{Name: fields[1], Current: strings.TrimSpace(fields[0]) == "*"}
		if len(fields) > 2 {
			info.Upstream = strings.TrimSpace(fields[2])
		}
		branches = append(branches, info)
	}
	return branches
}

// porcelainEntry is one record of `git status --porcelain=v1 -z`
type porcelainEntry struct {
	x, y     byte
	path     string
	origPath string
}

func (e porcelainEntry) code() string { return string([]byte{e.x, e.y}) }

// parsePorcelainZ parses NUL-terminated porcelain v1 output. Rename and copy
// records carry the source path as an extra NUL-separated field.
func parsePorcelainZ(out string) []porcelainEntry {
	var entries []porcelainEntry
	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); i++ {
		rec := fields[i]
		if len(rec) < 4 {
			continue
		}
		e := porcelainEntry{x: rec[0], y: rec[1], path: rec[3:]}
		if (e.x == 'R' || e.x == 'C' || e.y == 'R' || e.y == 'C') && i+1 < len(fields) {
			e.origPath = fields[i+1]
			i++
		}
		entries = append(entries, e)
	}
	return entries
}

func countDistinctPaths(entries []porcelainEntry) int {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.path] = struct{}{}
	}
	return len(seen)
}

func hasConflictEntries(entries []porcelainEntry) bool {
	for _, e := range entries {
		if conflictCodes[e.code()] {
			return true
		}
	}
	return false
}

func changesFromPorcelain(entries []porcelainEntry) []FileChangeEntry {
	changes := make([]FileChangeEntry, 0, len(entries))
	for _, e := range entries {
		if e.x == '?' && e.y == '?' {
			changes = append(changes, FileChangeEntry{Path: e.path, ChangeKind: ChangeUntracked})
			continue
		}
		if e.x == '!' {
			continue
		}
		if conflictCodes[e.code()] {
			changes = append(changes, FileChangeEntry{Path: e.path, ChangeKind: ChangeModified})
			continue
		}
		if kind, ok := changeKindFor(e.x); ok {
			changes = append(changes, FileChangeEntry{Path: e.path, ChangeKind: kind, Staged: true})
		}
		if kind, ok := changeKindFor(e.y); ok {
			changes = append(changes, FileChangeEntry{Path: e.path, ChangeKind: kind})
		}
	}
	return changes
}

func changeKindFor(code byte) (ChangeKind, bool) {
	switch code {
	case 'M', 'T':
		return ChangeModified, true
	case 'A':
		return ChangeAdded, true
	case 'D':
		return ChangeDeleted, true
	case 'R':
		return ChangeRenamed, true
	case 'C':
		return ChangeCopied, true
	}
	return "", false
}

// openRepository opens path with go-git, following worktree .git files
func openRepository(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}
