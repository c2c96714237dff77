package daemon

import (
	"errors"
	"os"
	"testing"
)

func TestPIDFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPIDFile(dir)
	if err != nil {
		t.Fatalf("failed to create PID file: %v", err)
	}

	if _, err := p.Read(); !errors.Is(err, ErrNoPIDFile) {
		t.Fatalf("expected ErrNoPIDFile, got %v", err)
	}

	if err := p.Write(4242); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	info, err := os.Stat(p.Path())
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected 0600 permissions, got %o", info.Mode().Perm())
	}

	pid, err := p.Read()
	if err != nil || pid != 4242 {
		t.Fatalf("expected 4242, got %d (%v)", pid, err)
	}

	if err := p.Remove(); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := p.Remove(); err != nil {
		t.Fatalf("second remove should be a no-op, got %v", err)
	}
}

func TestPIDFile_InvalidContent(t *testing.T) {
	p, err := NewPIDFile(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create PID file: %v", err)
	}
	if err := os.WriteFile(p.Path(), []byte("garbage"), 0600); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if _, err := p.Read(); err == nil {
		t.Fatal("expected error for invalid content")
	}

	state, err := Inspect(p)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if state.Running || !state.Stale {
		t.Fatalf("expected stale state, got %+v", state)
	}
}

func TestNewPIDFile_EmptyDir(t *testing.T) {
	if _, err := NewPIDFile(" "); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestInspect_CurrentProcess(t *testing.T) {
	p, err := NewPIDFile(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create PID file: %v", err)
	}

	state, err := Inspect(p)
	if err != nil || state.Running || state.Stale {
		t.Fatalf("expected empty state without PID file, got %+v (%v)", state, err)
	}

	if err := p.Write(os.Getpid()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	state, err = Inspect(p)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !state.Running || state.PID != os.Getpid() {
		t.Fatalf("expected running state for own PID, got %+v", state)
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Fatal("own process should be running")
	}
}
