package git

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Repository identifies a working tree on disk. It carries no cached state;
// every query re-derives truth from git.
type Repository struct {
	Path       string // Repository root path (or a path believed to become one)
	Name       string // Repository name (derived from directory name)
	GitDir     string // Path to .git directory or file (for worktrees), set by discovery
	IsWorktree bool   // Whether this is a git worktree
}

// NewRepository builds a handle for path, resolving it to an absolute path
func NewRepository(path string) (Repository, error) {
	if strings.TrimSpace(path) == "" {
		return Repository{}, fmt.Errorf("repository path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Repository{}, fmt.Errorf("failed to resolve repository path: %w", err)
	}
	return Repository{Path: abs, Name: filepath.Base(abs)}, nil
}

// StatusSnapshot is a point-in-time reconciled view of a repository.
// When IsRepo is false every other field is its zero value. Dirty state is
// derived from the counts and never stored.
type StatusSnapshot struct {
	IsRepo                 bool   `json:"isRepo"`
	HasRemote              bool   `json:"hasRemote"`
	CurrentBranch          string `json:"currentBranch,omitempty"`
	UncommittedChangeCount int    `json:"uncommittedChangeCount"`
	UnpushedCommitCount    int    `json:"unpushedCommitCount"`
	HasConflicts           bool   `json:"hasConflicts"`
	LastCommitHash         string `json:"lastCommitHash,omitempty"`
	LastCommitMessage      string `json:"lastCommitMessage,omitempty"`
}

// IsDirty reports uncommitted changes or unresolved conflicts
func (s StatusSnapshot) IsDirty() bool {
	return s.UncommittedChangeCount > 0 || s.HasConflicts
}

// MarshalJSON adds the derived isDirty field
func (s StatusSnapshot) MarshalJSON() ([]byte, error) {
	type snapshot StatusSnapshot
	return json.Marshal(struct {
		snapshot
		IsDirty bool `json:"isDirty"`
	}{snapshot(s), s.IsDirty()})
}

// ChangeKind classifies a working tree entry
type ChangeKind string

const (
	ChangeModified  ChangeKind = "modified"
	ChangeAdded     ChangeKind = "added"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeUntracked ChangeKind = "untracked"
	ChangeRenamed   ChangeKind = "renamed"
	ChangeCopied    ChangeKind = "copied"
)

// FileChangeEntry is one staged or unstaged change. A partially staged file
// yields two entries with the same path.
type FileChangeEntry struct {
	Path       string     `json:"path"`
	ChangeKind ChangeKind `json:"changeKind"`
	Staged     bool       `json:"staged"`
}

// BranchInfo describes a local branch
type BranchInfo struct {
	Name     string `json:"name"`
	Current  bool   `json:"current"`
	Upstream string `json:"upstream,omitempty"`
}

// AuthorInfo identifies a commit author
type AuthorInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Key returns the identity used for author aggregation: exact "name<email>"
func (a AuthorInfo) Key() string {
	return a.Name + "<" + a.Email + ">"
}

// CommitMetadata describes one commit of a history walk. Values are built
// once by the walker and not modified afterwards. TaskReferences is a sorted,
// duplicate-free set.
type CommitMetadata struct {
	Hash           string     `json:"hash"`
	Message        string     `json:"message"`
	Author         AuthorInfo `json:"author"`
	Timestamp      time.Time  `json:"timestamp"`
	FilesChanged   []string   `json:"filesChanged"`
	Insertions     int        `json:"insertions"`
	Deletions      int        `json:"deletions"`
	TaskReferences []string   `json:"taskReferences"`
}

// AuthorStats accumulates activity for one author key
type AuthorStats struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	CommitCount  int       `json:"commitCount"`
	LinesAdded   int       `json:"linesAdded"`
	LinesDeleted int       `json:"linesDeleted"`
	FirstCommit  time.Time `json:"firstCommit"`
	LastCommit   time.Time `json:"lastCommit"`
}

// DateRange is an inclusive timestamp window
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// FileChangeCount is one row of the churn ranking
type FileChangeCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// CodeVelocity summarises commit and line throughput
type CodeVelocity struct {
	AvgCommitsPerDay  float64 `json:"avgCommitsPerDay"`
	AvgLinesChanged   float64 `json:"avgLinesChanged"`
	TotalLinesAdded   int     `json:"totalLinesAdded"`
	TotalLinesDeleted int     `json:"totalLinesDeleted"`
}

// CommitAnalysis is the aggregate report over a commit walk
type CommitAnalysis struct {
	TotalCommits       int                         `json:"totalCommits"`
	DateRange          DateRange                   `json:"dateRange"`
	Authors            []AuthorStats               `json:"authors"`
	CommitFrequency    map[string]int              `json:"commitFrequency"`
	FileChangePatterns []FileChangeCount           `json:"fileChangePatterns"`
	TaskReferences     map[string][]CommitMetadata `json:"taskReferences"`
	CodeVelocity       CodeVelocity                `json:"codeVelocity"`
	GeneratedAt        time.Time                   `json:"generatedAt"`
}

// SyncKind tags the result of a sync operation
type SyncKind string

const (
	SyncSuccess       SyncKind = "success"
	SyncNeedsUpstream SyncKind = "needs_upstream"
	SyncNeedsPull     SyncKind = "needs_pull"
	SyncFailed        SyncKind = "failed"
)

// StepResult records one git invocation inside a sync operation
type StepResult struct {
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SyncOutcome is the tagged result of push/pull recovery. Callers switch on
// Kind; NeedsUpstream and NeedsPull each have a dedicated recovery operation.
type SyncOutcome struct {
	Kind   SyncKind    `json:"kind"`
	Reason string      `json:"reason,omitempty"`
	Pull   *StepResult `json:"pull,omitempty"`
	Push   *StepResult `json:"push,omitempty"`
	// Err carries a sentinel such as ErrNoCurrentBranch for errors.Is checks
	Err error `json:"-"`
}

func (o SyncOutcome) String() string {
	if o.Reason == "" {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
}
