package git

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stwalsh4118/repolens/internal/logging"
)

func newTestProbe(t *testing.T, runner Runner) StatusProbe {
	t.Helper()
	probe, err := NewStatusProbe(runner, logging.NewNoopLogger())
	if err != nil {
		t.Fatalf("failed to create probe: %v", err)
	}
	return probe
}

func TestNewStatusProbe_Validation(t *testing.T) {
	if _, err := NewStatusProbe(nil, logging.NewNoopLogger()); err == nil {
		t.Error("expected error for nil runner")
	}
	if _, err := NewStatusProbe(&fakeRunner{}, nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestSnapshot_NotARepository(t *testing.T) {
	runner := (&fakeRunner{}).on("rev-parse", "", gitFailure("", "fatal: not a git repository"))
	snap := newTestProbe(t, runner).Snapshot(context.Background(), Repository{Path: "/nowhere"})

	if snap != (StatusSnapshot{}) {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
	if snap.IsDirty() {
		t.Fatal("zero snapshot must not be dirty")
	}
}

func TestSnapshot_FromPorcelain(t *testing.T) {
	runner := (&fakeRunner{}).
		on("rev-parse --is-inside-work-tree", "true\n", nil).
		on("status", "UU a.txt\x00 M b.txt\x00MM b.txt\x00?? c.txt\x00", nil).
		on("symbolic-ref", "main\n", nil)

	snap := newTestProbe(t, runner).Snapshot(context.Background(), Repository{Path: filepath.Join(t.TempDir(), "absent")})

	if !snap.IsRepo {
		t.Fatal("expected IsRepo")
	}
	if snap.CurrentBranch != "main" {
		t.Errorf("expected branch main, got %q", snap.CurrentBranch)
	}
	if snap.UncommittedChangeCount != 3 {
		t.Errorf("expected 3 distinct paths, got %d", snap.UncommittedChangeCount)
	}
	if !snap.HasConflicts {
		t.Error("expected conflicts")
	}
	if !snap.IsDirty() {
		t.Error("expected dirty")
	}
	if snap.HasRemote || snap.UnpushedCommitCount != 0 {
		t.Errorf("expected no remote data, got %+v", snap)
	}
	if runner.invoked("for-each-ref") {
		t.Error("tracking state must not be queried without a remote")
	}
}

func TestSnapshot_RealRepository(t *testing.T) {
	runner := newTestRunner(t)
	probe := newTestProbe(t, runner)
	ctx := context.Background()
	dir := tempDir(t)

	t.Run("plain directory", func(t *testing.T) {
		snap := probe.Snapshot(ctx, Repository{Path: dir})
		if snap != (StatusSnapshot{}) {
			t.Fatalf("expected zero snapshot, got %+v", snap)
		}
	})

	repo := initTestRepo(t, dir)

	t.Run("empty repository", func(t *testing.T) {
		snap := probe.Snapshot(ctx, Repository{Path: dir})
		if !snap.IsRepo {
			t.Fatal("expected IsRepo")
		}
		if snap.CurrentBranch != "main" {
			t.Errorf("expected branch main, got %q", snap.CurrentBranch)
		}
		if snap.LastCommitHash != "" {
			t.Errorf("expected no last commit, got %s", snap.LastCommitHash)
		}
	})

	hash := commitFiles(t, repo, dir, "Initial commit\n\nbody", time.Now(), map[string]string{"a.txt": "a\n"})

	t.Run("clean repository", func(t *testing.T) {
		snap := probe.Snapshot(ctx, Repository{Path: dir})
		if snap.LastCommitHash != hash {
			t.Errorf("expected last commit %s, got %s", hash, snap.LastCommitHash)
		}
		if snap.LastCommitMessage != "Initial commit\n\nbody" {
			t.Errorf("unexpected message %q", snap.LastCommitMessage)
		}
		if snap.IsDirty() || snap.UncommittedChangeCount != 0 {
			t.Errorf("expected clean snapshot, got %+v", snap)
		}
	})

	t.Run("dirty repository", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("changed\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("new\n"), 0644); err != nil {
			t.Fatal(err)
		}
		snap := probe.Snapshot(ctx, Repository{Path: dir})
		if snap.UncommittedChangeCount != 2 {
			t.Errorf("expected 2 changes, got %d", snap.UncommittedChangeCount)
		}
		if !snap.IsDirty() {
			t.Error("expected dirty")
		}
	})
}

func TestSnapshot_UnpushedCommits(t *testing.T) {
	runner := newTestRunner(t)
	probe := newTestProbe(t, runner)
	ctx := context.Background()

	root := tempDir(t)
	remote := filepath.Join(root, "remote.git")
	work := filepath.Join(root, "work")
	runGit(t, runner, root, "init", "--bare", remote)
	repo := initTestRepo(t, work)
	commitFiles(t, repo, work, "first", time.Now(), map[string]string{"a.txt": "a\n"})
	runGit(t, runner, work, "remote", "add", "origin", remote)
	runGit(t, runner, work, "push", "-u", "origin", "main")

	snap := probe.Snapshot(ctx, Repository{Path: work})
	if !snap.HasRemote {
		t.Fatal("expected remote")
	}
	if snap.UnpushedCommitCount != 0 {
		t.Fatalf("expected 0 unpushed, got %d", snap.UnpushedCommitCount)
	}

	commitFiles(t, repo, work, "second", time.Now(), map[string]string{"b.txt": "b\n"})
	commitFiles(t, repo, work, "third", time.Now(), map[string]string{"c.txt": "c\n"})

	snap = probe.Snapshot(ctx, Repository{Path: work})
	if snap.UnpushedCommitCount != 2 {
		t.Fatalf("expected 2 unpushed, got %d", snap.UnpushedCommitCount)
	}
}

func TestParseAhead(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"[ahead 3]", 3},
		{"[ahead 2, behind 5]", 2},
		{"[behind 1]", 0},
		{"[gone]", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseAhead(tt.in); got != tt.want {
			t.Errorf("parseAhead(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestChangesFromPorcelain(t *testing.T) {
	out := "MM a.go\x00A  b.go\x00?? c.go\x00R  new.go\x00old.go\x00 D d.go\x00!! ignored.log\x00"
	got := changesFromPorcelain(parsePorcelainZ(out))
	want := []FileChangeEntry{
		{Path: "a.go", ChangeKind: ChangeModified, Staged: true},
		{Path: "a.go", ChangeKind: ChangeModified},
		{Path: "b.go", ChangeKind: ChangeAdded, Staged: true},
		{Path: "c.go", ChangeKind: ChangeUntracked},
		{Path: "new.go", ChangeKind: ChangeRenamed, Staged: true},
		{Path: "d.go", ChangeKind: ChangeDeleted},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("changes mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestListChanges_NotARepository(t *testing.T) {
	runner := (&fakeRunner{}).on("status", "", gitFailure("", "fatal: not a git repository"))
	changes := newTestProbe(t, runner).ListChanges(context.Background(), Repository{Path: "/nowhere"})
	if changes == nil || len(changes) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", changes)
	}
}

func TestListBranches(t *testing.T) {
	runner := (&fakeRunner{}).on("for-each-ref", "*\x00main\x00origin/main\n \x00feature\x00\n", nil)
	branches := newTestProbe(t, runner).ListBranches(context.Background(), Repository{Path: "/repo"})
	want := []BranchInfo{
		{Name: "feature"},
		{Name: "main", Current: true, Upstream: "origin/main"},
	}
	if !reflect.DeepEqual(branches, want) {
		t.Fatalf("branches mismatch\n got: %+v\nwant: %+v", branches, want)
	}
}

func TestStatusSnapshot_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(StatusSnapshot{IsRepo: true, UncommittedChangeCount: 1})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["isDirty"] != true {
		t.Fatalf("expected isDirty=true in %s", data)
	}
	if decoded["uncommittedChangeCount"] != float64(1) {
		t.Fatalf("unexpected count in %s", data)
	}
}
