package cli

import (
	"errors"
	"fmt"

	"github.com/stwalsh4118/repolens/internal/git"
)

// Process exit codes. Sync outcomes that have a dedicated recovery command
// get their own code so scripts can branch on them.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitNeedsUpstream = 2
	ExitNeedsPull     = 3
)

// ExitCoder is an error carrying a process exit code
type ExitCoder interface {
	error
	ExitCode() int
}

// ExitError pairs a user-facing message with an exit code
type ExitError struct {
	code  int
	msg   string
	cause error
}

func (e *ExitError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.cause)
}

func (e *ExitError) ExitCode() int { return e.code }

func (e *ExitError) Unwrap() error { return e.cause }

// newExitError builds an ExitError; codes below one become ExitFailure
func newExitError(code int, msg string, cause error) error {
	if code <= 0 {
		code = ExitFailure
	}
	return &ExitError{code: code, msg: msg, cause: cause}
}

// ExitCodeOf extracts an exit code from any error, defaulting to 1
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return ExitFailure
}

// outcomeError turns a non-successful sync outcome into an exit error that
// names the recovery command.
func outcomeError(outcome git.SyncOutcome) error {
	switch outcome.Kind {
	case git.SyncSuccess:
		return nil
	case git.SyncNeedsUpstream:
		return newExitError(ExitNeedsUpstream, "branch has no upstream; run `repolens push --set-upstream`", nil)
	case git.SyncNeedsPull:
		return newExitError(ExitNeedsPull, "remote has commits you do not have; run `repolens sync`", nil)
	default:
		reason := outcome.Reason
		if reason == "" {
			reason = "unknown error"
		}
		return newExitError(ExitFailure, "sync failed", errors.Join(errors.New(reason), outcome.Err))
	}
}
