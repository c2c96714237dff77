package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stwalsh4118/repolens/internal/config"
	"github.com/stwalsh4118/repolens/internal/git"
	"github.com/stwalsh4118/repolens/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.BasePath = t.TempDir()
	cfg.Storage.DatabasePath = filepath.Join(cfg.Storage.BasePath, "repolens.db")
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Watch.Mode = config.WatchModePoll
	return cfg
}

func newTestDaemon(t *testing.T, cfg *config.Config, repos []git.Repository) *Daemon {
	t.Helper()
	logger := logging.NewNoopLogger()
	engine, err := git.NewEngine(cfg, logger)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	d, err := NewDaemon(cfg, engine, repos, logger)
	if err != nil {
		t.Fatalf("failed to create daemon: %v", err)
	}
	return d
}

func TestNewDaemon_Validation(t *testing.T) {
	cfg := testConfig(t)
	engine, err := git.NewEngine(cfg, logging.NewNoopLogger())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if _, err := NewDaemon(nil, engine, nil, logging.NewNoopLogger()); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := NewDaemon(cfg, nil, nil, logging.NewNoopLogger()); err == nil {
		t.Fatal("expected error for nil engine")
	}
	if _, err := NewDaemon(cfg, engine, nil, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}

func TestDaemon_RunServesAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	repoDir := t.TempDir()
	repo, err := git.NewRepository(repoDir)
	if err != nil {
		t.Fatalf("failed to build repository: %v", err)
	}
	d := newTestDaemon(t, cfg, []git.Repository{repo})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-d.Ready():
	case err := <-done:
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not become ready")
	}

	pidPath := filepath.Join(cfg.Storage.BasePath, pidFileName)
	if _, err := os.Stat(pidPath); err != nil {
		t.Fatalf("expected PID file while running: %v", err)
	}

	resp, err := http.Get("http://" + d.Addr() + "/api/status?repo=" + repoDir)
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var snap map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	// a plain directory is not a repository
	if snap["isRepo"] != false {
		t.Fatalf("expected isRepo=false, got %v", snap)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(shutdownTimeout + 2*time.Second):
		t.Fatal("daemon did not shut down")
	}

	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected PID file to be removed, got %v", err)
	}
}

func TestDaemon_RunTwiceIsRejected(t *testing.T) {
	d := newTestDaemon(t, testConfig(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	<-d.Ready()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if err := d.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Fatalf("expected ErrAlreadyRun, got %v", err)
	}
}

func TestDaemon_RunFailsOnBusyAddress(t *testing.T) {
	cfg := testConfig(t)
	first := newTestDaemon(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()
	<-first.Ready()

	second := testConfig(t)
	second.Server.Address = first.Addr()
	d := newTestDaemon(t, second, nil)
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected listen error for busy address")
	}

	cancel()
	<-done
}
