package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/repolens/internal/config"
)

func TestWriterLogger_FieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger(&buf, zerolog.InfoLevel).With("component", "status_probe")

	log.Debug("hidden")
	log.Info("probed repository", "repo", "/tmp/x", "ahead", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line (debug filtered), got %d: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["component"] != "status_probe" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
	if entry["repo"] != "/tmp/x" {
		t.Errorf("expected repo field, got %v", entry["repo"])
	}
	if entry["message"] != "probed repository" {
		t.Errorf("unexpected message %v", entry["message"])
	}
}

func TestNewLogger_CreatesFileWithRestrictivePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "repolens.log")

	log, err := NewLogger(config.LoggingConfig{Level: "debug", FilePath: path})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	log.Info("hello")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestNoopLogger(t *testing.T) {
	log := NewNoopLogger()
	log.With("a", 1).Error("discarded", "err", "x")
}
