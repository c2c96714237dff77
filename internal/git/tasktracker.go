package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/stwalsh4118/repolens/internal/logging"
)

// TaskUpdateResult is the unparsed outcome of a task tracker invocation
type TaskUpdateResult struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
}

// TaskTracker pushes status or notes to an external task tracker
type TaskTracker interface {
	Update(ctx context.Context, dir, taskID, status, payload string) (TaskUpdateResult, error)
}

// ExecTaskTracker drives a task-master compatible CLI
type ExecTaskTracker struct {
	bin     string
	timeout time.Duration
	logger  logging.Logger
}

// NewExecTaskTracker creates a tracker invoking bin
func NewExecTaskTracker(bin string, timeout time.Duration, logger logging.Logger) (*ExecTaskTracker, error) {
	if strings.TrimSpace(bin) == "" {
		return nil, fmt.Errorf("task tracker binary cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &ExecTaskTracker{
		bin:     bin,
		timeout: timeout,
		logger:  logger.With("component", "task_tracker"),
	}, nil
}

// Update sets the task status and, when payload is set, appends it as an
// update note. A non-zero exit is reported through Success; the error is
// reserved for invocations that could not run at all.
func (t *ExecTaskTracker) Update(ctx context.Context, dir, taskID, status, payload string) (TaskUpdateResult, error) {
	if strings.TrimSpace(taskID) == "" {
		return TaskUpdateResult{}, fmt.Errorf("task id cannot be empty")
	}
	if status == "" && payload == "" {
		return TaskUpdateResult{}, fmt.Errorf("status or payload is required")
	}

	var calls [][]string
	if status != "" {
		calls = append(calls, []string{"set-status", "--id=" + taskID, "--status=" + status})
	}
	if payload != "" {
		calls = append(calls, []string{"update-task", "--id=" + taskID, "--prompt=" + payload})
	}

	result := TaskUpdateResult{Success: true}
	var stdout, stderr []string
	for _, args := range calls {
		out, errOut, ok, err := t.run(ctx, dir, args)
		if err != nil {
			return TaskUpdateResult{}, err
		}
		if s := strings.TrimSpace(out); s != "" {
			stdout = append(stdout, s)
		}
		if s := strings.TrimSpace(errOut); s != "" {
			stderr = append(stderr, s)
		}
		if !ok {
			result.Success = false
			break
		}
	}
	result.Stdout = strings.Join(stdout, "\n")
	result.Stderr = strings.Join(stderr, "\n")

	t.logger.Info("task tracker updated", "task_id", taskID, "status", status, "success", result.Success)
	return result, nil
}

func (t *ExecTaskTracker) run(ctx context.Context, dir string, args []string) (string, string, bool, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), stderr.String(), true, nil
	}
	if ctx.Err() != nil {
		return "", "", false, fmt.Errorf("task tracker %s: %w", args[0], ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), false, nil
	}
	return "", "", false, fmt.Errorf("failed to run task tracker: %w", err)
}
