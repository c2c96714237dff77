package git

import (
	"errors"
	"strings"
)

var (
	needsUpstreamMarkers = []string{
		"no upstream branch",
		"has no upstream",
		"--set-upstream",
	}
	needsPullMarkers = []string{
		"fetch first",
		"non-fast-forward",
		"updates were rejected",
		"tip of your current branch is behind",
	}
	// transportMarkers show the push tried to reach the remote and failed.
	transportMarkers = []string{
		"could not read from remote repository",
		"does not appear to be a git repository",
		"repository not found",
		"permission denied",
		"authentication failed",
		"unable to access",
		"could not resolve host",
		"connection refused",
		"connection timed out",
	}
)

// ClassifyPushFailure maps a failed push to a sync outcome. A timeout is always
// Failed and `push --porcelain` rejection flags mean NeedsPull. Known
// diagnostic markers come next. missingUpstream only decides the outcome when
// git never got as far as the remote; any other failure stays Failed.
func ClassifyPushFailure(err error, missingUpstream bool) SyncOutcome {
	if err == nil {
		return SyncOutcome{Kind: SyncSuccess}
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return SyncOutcome{Kind: SyncFailed, Reason: err.Error(), Err: err}
	}
	if cmdErr.TimedOut {
		return SyncOutcome{Kind: SyncFailed, Reason: "timed out", Err: err}
	}

	diagnostic := cmdErr.Diagnostic()
	if diagnostic == "" {
		diagnostic = err.Error()
	}

	if porcelainRejectedForPull(cmdErr.Stdout) {
		return SyncOutcome{Kind: SyncNeedsPull, Reason: diagnostic, Err: err}
	}

	lower := strings.ToLower(cmdErr.Stderr + "\n" + cmdErr.Stdout)
	if containsAny(lower, needsUpstreamMarkers) {
		return SyncOutcome{Kind: SyncNeedsUpstream, Reason: diagnostic, Err: err}
	}
	if containsAny(lower, needsPullMarkers) {
		return SyncOutcome{Kind: SyncNeedsPull, Reason: diagnostic, Err: err}
	}
	if missingUpstream && !contactedRemote(cmdErr.Stdout) && !containsAny(lower, transportMarkers) {
		return SyncOutcome{Kind: SyncNeedsUpstream, Reason: diagnostic, Err: err}
	}
	return SyncOutcome{Kind: SyncFailed, Reason: diagnostic, Err: err}
}

// porcelainRejectedForPull looks for ref lines flagged "!" whose summary says
// the remote has work the local branch lacks.
func porcelainRejectedForPull(stdout string) bool {
	for _, line := range strings.Split(stdout, "\n") {
		if !strings.HasPrefix(line, "!") {
			continue
		}
		if strings.Contains(line, "(fetch first)") || strings.Contains(line, "(non-fast-forward)") {
			return true
		}
	}
	return false
}

// contactedRemote reports whether `push --porcelain` output carries a
// destination line or any ref status line.
func contactedRemote(stdout string) bool {
	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(line, "To ") {
			return true
		}
		if len(line) > 1 && line[1] == '\t' && strings.ContainsRune("=-+*!", rune(line[0])) {
			return true
		}
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
