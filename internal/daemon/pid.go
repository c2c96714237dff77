package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const pidFileName = "repolens.pid"

// ErrNoPIDFile is returned by Read when no server has recorded its PID
var ErrNoPIDFile = errors.New("PID file does not exist")

// PIDFile records the PID of the running server under the storage directory
type PIDFile struct {
	path string
}

// NewPIDFile returns the PID file inside dir
func NewPIDFile(dir string) (*PIDFile, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("PID file directory cannot be empty")
	}
	abs, err := filepath.Abs(filepath.Join(dir, pidFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve PID file path: %w", err)
	}
	return &PIDFile{path: abs}, nil
}

// Path returns the absolute file path
func (p *PIDFile) Path() string {
	return p.path
}

// Write stores pid with owner-only permissions, creating the directory if needed
func (p *PIDFile) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(pid)+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoPIDFile
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID value: %d", pid)
	}
	return pid, nil
}

// Remove deletes the file; a missing file is not an error
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}
