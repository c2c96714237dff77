package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/stwalsh4118/repolens/internal/logging"
)

const (
	maxRetries        = 3
	initialRetryDelay = 50 * time.Millisecond
)

var (
	safeArgPattern    = regexp.MustCompile(`^[a-z][a-z-]*$`)
	credentialURL     = regexp.MustCompile(`https?://[^\s@/]+@`)
	credentialKeyVals = regexp.MustCompile(`(?i)(token|secret|password|passwd|bearer)=[^\s]+`)
)

// Runner executes git subcommands in a working directory. Stdout is returned
// on success; failures are reported as *CommandError.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CommandError describes a failed git invocation with both output streams
type CommandError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *CommandError) Error() string {
	msg := e.Diagnostic()
	if e.TimedOut {
		return fmt.Sprintf("git %s: timed out", sanitizeArgs(e.Args))
	}
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", sanitizeArgs(e.Args), msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Diagnostic returns the redacted stderr, falling back to stdout
func (e *CommandError) Diagnostic() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	return redactTokens(msg)
}

// ExecRunner runs the git binary. Timeout applies only when the caller's
// context carries no deadline of its own.
type ExecRunner struct {
	Bin     string
	Timeout time.Duration
	logger  logging.Logger
}

// NewExecRunner creates a runner for bin ("git" when empty)
func NewExecRunner(bin string, timeout time.Duration, logger logging.Logger) (*ExecRunner, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if strings.TrimSpace(bin) == "" {
		bin = "git"
	}
	return &ExecRunner{
		Bin:     bin,
		Timeout: timeout,
		logger:  logger.With("component", "git_runner"),
	}, nil
}

// Run executes git with args in dir. Index lock contention is retried with
// exponential backoff.
func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := initialRetryDelay * time.Duration(1<<uint(attempt-1))
			r.logger.Debug("retrying git command", "op", sanitizeArgs(args), "attempt", attempt, "delay_ms", delay.Milliseconds())
			select {
			case <-ctx.Done():
				return "", &CommandError{Args: args, ExitCode: -1, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		out, err := r.runOnce(ctx, dir, args)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) || !isLockContention(cmdErr) {
			return "", err
		}
		r.logger.Warn("git lock contention, will retry", "op", sanitizeArgs(args), "attempt", attempt+1)
	}
	return "", lastErr
}

func (r *ExecRunner) runOnce(ctx context.Context, dir string, args []string) (string, error) {
	runCtx := ctx
	if _, ok := ctx.Deadline(); !ok && r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.Bin, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C", "GIT_OPTIONAL_LOCKS=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("git command finished", "op", sanitizeArgs(args), "dir", dir, "duration_ms", time.Since(start).Milliseconds(), "failed", err != nil)
	if err == nil {
		return stdout.String(), nil
	}

	cmdErr := &CommandError{
		Args:     args,
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := runCtx.Err(); ctxErr != nil {
		cmdErr.Err = ctxErr
		cmdErr.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)
	}
	return "", cmdErr
}

func isLockContention(err *CommandError) bool {
	if err.TimedOut {
		return false
	}
	msg := strings.ToLower(err.Stderr)
	return strings.Contains(msg, "index.lock") || strings.Contains(msg, ".lock': file exists")
}

// IsTimeout reports whether err came from a git invocation that exceeded its deadline
func IsTimeout(err error) bool {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.TimedOut
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// sanitizeArgs keeps at most the first two subcommand tokens that look like
// plain words so paths and URLs never reach logs.
func sanitizeArgs(args []string) string {
	if len(args) == 0 {
		return "<no-args>"
	}
	safe := make([]string, 0, 2)
	for _, a := range args {
		if !safeArgPattern.MatchString(a) {
			break
		}
		safe = append(safe, a)
		if len(safe) == 2 {
			break
		}
	}
	if len(safe) == 0 {
		return "<redacted>"
	}
	return strings.Join(safe, " ")
}

// redactTokens removes credential substrings from git diagnostics
func redactTokens(s string) string {
	s = credentialURL.ReplaceAllString(s, "https://<redacted>@")
	return credentialKeyVals.ReplaceAllString(s, "$1=<redacted>")
}
