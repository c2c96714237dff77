package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/stwalsh4118/repolens/internal/logging"
)

// requireGit skips tests that shell out when no git binary is installed
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// tempDir returns a temporary directory with symlinks resolved
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}
	return dir
}

// newTestRunner returns an exec runner with an isolated git environment
func newTestRunner(t *testing.T) *ExecRunner {
	t.Helper()
	requireGit(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "Test Author")
	t.Setenv("GIT_AUTHOR_EMAIL", "author@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test Author")
	t.Setenv("GIT_COMMITTER_EMAIL", "author@example.com")

	runner, err := NewExecRunner("git", 30*time.Second, logging.NewNoopLogger())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	return runner
}

// runGit runs git in dir and fails the test on error
func runGit(t *testing.T, runner Runner, dir string, args ...string) string {
	t.Helper()
	out, err := runner.Run(context.Background(), dir, args...)
	if err != nil {
		t.Fatalf("git %s failed: %v", strings.Join(args, " "), err)
	}
	return out
}

// initTestRepo creates a repository with go-git on branch main
func initTestRepo(t *testing.T, dir string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}
	// point HEAD at main so exec and go-git agree on the branch name
	if err := os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0644); err != nil {
		t.Fatalf("failed to write HEAD: %v", err)
	}
	return repo
}

// commitFiles writes files and commits them with go-git
func commitFiles(t *testing.T, repo *git.Repository, dir, message string, when time.Time, files map[string]string) string {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("failed to add file: %v", err)
		}
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "Test Author", Email: "author@example.com", When: when},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

// fakeCall is one scripted response of fakeRunner
type fakeCall struct {
	prefix string
	out    string
	err    error
}

// fakeRunner answers git invocations from a script keyed by argument prefix
type fakeRunner struct {
	mu    sync.Mutex
	calls []fakeCall
	seen  [][]string
}

func (f *fakeRunner) on(prefix, out string, err error) *fakeRunner {
	f.calls = append(f.calls, fakeCall{prefix: prefix, out: out, err: err})
	return f
}

func (f *fakeRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, args)
	joined := strings.Join(args, " ")
	for _, c := range f.calls {
		if strings.HasPrefix(joined, c.prefix) {
			return c.out, c.err
		}
	}
	return "", &CommandError{Args: args, ExitCode: 1, Stderr: "fatal: unscripted command"}
}

func (f *fakeRunner) invoked(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, args := range f.seen {
		if strings.HasPrefix(strings.Join(args, " "), prefix) {
			return true
		}
	}
	return false
}

// gitFailure builds a CommandError resembling a failed git invocation
func gitFailure(stdout, stderr string) error {
	return &CommandError{Args: []string{"push"}, ExitCode: 1, Stdout: stdout, Stderr: stderr}
}
