package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stwalsh4118/repolens/internal/logging"
)

func TestNewRepoWatcher_Validation(t *testing.T) {
	if _, err := NewRepoWatcher(Repository{}, 0, logging.NewNoopLogger()); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := NewRepoWatcher(Repository{Path: "/tmp"}, 0, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
	w, err := NewRepoWatcher(Repository{Path: "/tmp/repo"}, 0, logging.NewNoopLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.debounce != defaultDebounce {
		t.Fatalf("expected default debounce, got %v", w.debounce)
	}
	if w.gitDir != filepath.Join("/tmp/repo", ".git") {
		t.Fatalf("unexpected git dir %q", w.gitDir)
	}
}

func TestRepoWatcher_Ignore(t *testing.T) {
	w, err := NewRepoWatcher(Repository{Path: "/repo"}, 0, logging.NewNoopLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name   string
		event  fsnotify.Event
		ignore bool
	}{
		{"chmod only", fsnotify.Event{Name: "/repo/a.go", Op: fsnotify.Chmod}, true},
		{"index lock", fsnotify.Event{Name: "/repo/.git/index.lock", Op: fsnotify.Create}, true},
		{"object write", fsnotify.Event{Name: "/repo/.git/objects/ab", Op: fsnotify.Create}, true},
		{"reflog", fsnotify.Event{Name: "/repo/.git/logs/HEAD", Op: fsnotify.Write}, true},
		{"index", fsnotify.Event{Name: "/repo/.git/index", Op: fsnotify.Create}, false},
		{"head", fsnotify.Event{Name: "/repo/.git/HEAD", Op: fsnotify.Write}, false},
		{"worktree file", fsnotify.Event{Name: "/repo/main.go", Op: fsnotify.Write}, false},
		{"lookalike dir", fsnotify.Event{Name: "/repo/.github/objects/x", Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := w.ignore(tc.event); got != tc.ignore {
				t.Fatalf("ignore(%s) = %v, want %v", tc.event.Name, got, tc.ignore)
			}
		})
	}
}

func TestRepoWatcher_DeliversDebouncedEvent(t *testing.T) {
	dir := tempDir(t)
	initTestRepo(t, dir)

	repo, err := NewRepository(dir)
	if err != nil {
		t.Fatalf("failed to build repository: %v", err)
	}
	w, err := NewRepoWatcher(repo, 50*time.Millisecond, logging.NewNoopLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err == nil {
		t.Fatal("expected error when starting twice")
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	select {
	case ev := <-w.Events():
		if ev.Repository.Path != dir {
			t.Fatalf("expected repository %q, got %q", dir, ev.Repository.Path)
		}
		if len(ev.Paths) == 0 {
			t.Fatal("expected at least one changed path")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestRepoWatcher_StopClosesEvents(t *testing.T) {
	dir := tempDir(t)
	initTestRepo(t, dir)

	w, err := NewRepoWatcher(Repository{Path: dir, Name: "r"}, 10*time.Millisecond, logging.NewNoopLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second stop should be a no-op, got %v", err)
	}

	select {
	case _, ok := <-w.Events():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("events channel was not closed")
	}

	if err := w.Start(); err == nil {
		t.Fatal("expected error when restarting a stopped watcher")
	}
}

func TestRepoWatcher_WatchesNewRefDirectories(t *testing.T) {
	dir := tempDir(t)
	initTestRepo(t, dir)
	heads := filepath.Join(dir, ".git", "refs", "heads")
	if err := os.MkdirAll(heads, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	w, err := NewRepoWatcher(Repository{Path: dir, Name: "r"}, 20*time.Millisecond, logging.NewNoopLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	feature := filepath.Join(heads, "feature")
	if err := os.Mkdir(feature, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	waitForPath(t, w, feature)

	ref := filepath.Join(feature, "login")
	if err := os.WriteFile(ref, []byte("0123456789abcdef0123456789abcdef01234567\n"), 0644); err != nil {
		t.Fatalf("failed to write ref: %v", err)
	}
	waitForPath(t, w, ref)
}

func waitForPath(t *testing.T, w *RepoWatcher, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				t.Fatal("events channel closed")
			}
			for _, p := range ev.Paths {
				if p == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event on %s", want)
		}
	}
}
