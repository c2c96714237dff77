package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ServerState is what the PID file says about a previously started server
type ServerState struct {
	PID     int
	Running bool
	// Stale is set when a PID file exists but its process is gone
	Stale bool
}

// Inspect reports whether the server recorded in pidFile is alive
func Inspect(pidFile *PIDFile) (ServerState, error) {
	pid, err := pidFile.Read()
	if errors.Is(err, ErrNoPIDFile) {
		return ServerState{}, nil
	}
	if err != nil {
		return ServerState{Stale: true}, nil
	}

	if !IsProcessRunning(pid) {
		return ServerState{PID: pid, Stale: true}, nil
	}
	same, err := IsSameExecutable(pid)
	if err != nil {
		// cannot verify; assume it is ours
		return ServerState{PID: pid, Running: true}, nil
	}
	if !same {
		return ServerState{PID: pid, Stale: true}, nil
	}
	return ServerState{PID: pid, Running: true}, nil
}

// IsProcessRunning checks for a live process with signal 0
func IsProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return false
	}
	// EPERM: the process exists but belongs to someone else
	return true
}

// IsSameExecutable compares the executable of pid with our own. It returns an
// error where /proc is unavailable.
func IsSameExecutable(pid int) (bool, error) {
	current, err := executablePath()
	if err != nil {
		return false, err
	}
	procExe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return false, fmt.Errorf("failed to read process executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(procExe); err == nil {
		procExe = resolved
	}
	return filepath.Clean(procExe) == current, nil
}

// SendSignal sends sig to pid
func SendSignal(pid int, sig os.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to send signal to process: %w", err)
	}
	return nil
}

// WaitForProcessExit polls until pid is gone. The server is not our child,
// so os.Process.Wait cannot be used.
func WaitForProcessExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !IsProcessRunning(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("process %d did not exit within %v", pid, timeout)
}

func executablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return filepath.Abs(exe)
}
