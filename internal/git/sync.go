package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stwalsh4118/repolens/internal/logging"
)

// ErrNoCurrentBranch is reported when an operation needs the checked-out
// branch and HEAD is detached.
var ErrNoCurrentBranch = errors.New("no current branch")

// ErrEmptyCommitMessage rejects commits without a message
var ErrEmptyCommitMessage = errors.New("commit message cannot be empty")

// SyncCoordinator performs every state-changing repository operation.
// Callers serialise calls per repository path.
type SyncCoordinator interface {
	// Push attempts a plain push. Empty remote and branch defer to git's defaults.
	Push(ctx context.Context, repo Repository, remote, branch string) SyncOutcome
	// PushWithUpstream pushes and configures tracking for branch (current branch when empty)
	PushWithUpstream(ctx context.Context, repo Repository, remote, branch string) SyncOutcome
	// PullAndPush pulls then pushes, recording both steps
	PullAndPush(ctx context.Context, repo Repository, remote, branch string) SyncOutcome

	Init(ctx context.Context, repo Repository) error
	Stage(ctx context.Context, repo Repository, paths []string) error
	Unstage(ctx context.Context, repo Repository, paths []string) error
	// Commit records staged changes and returns the new commit hash
	Commit(ctx context.Context, repo Repository, message string) (string, error)
	AddRemote(ctx context.Context, repo Repository, name, url string) error
	CreateBranch(ctx context.Context, repo Repository, name string, checkout bool) error
	SwitchBranch(ctx context.Context, repo Repository, name string) error
	DeleteBranch(ctx context.Context, repo Repository, name string, force bool) error
}

type syncCoordinator struct {
	runner         Runner
	defaultRemote  string
	networkTimeout time.Duration
	logger         logging.Logger
}

// NewSyncCoordinator creates a coordinator. networkTimeout bounds push and
// pull; other operations use the runner's default timeout.
func NewSyncCoordinator(runner Runner, defaultRemote string, networkTimeout time.Duration, logger logging.Logger) (SyncCoordinator, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if strings.TrimSpace(defaultRemote) == "" {
		defaultRemote = "origin"
	}
	return &syncCoordinator{
		runner:         runner,
		defaultRemote:  defaultRemote,
		networkTimeout: networkTimeout,
		logger:         logger.With("component", "sync_coordinator"),
	}, nil
}

func (s *syncCoordinator) networkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.networkTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.networkTimeout)
}

func (s *syncCoordinator) Push(ctx context.Context, repo Repository, remote, branch string) SyncOutcome {
	args := []string{"push", "--porcelain"}
	if branch != "" && remote == "" {
		remote = s.defaultRemote
	}
	if remote != "" {
		args = append(args, remote)
	}
	if branch != "" {
		args = append(args, branch)
	}

	step, err := s.runStep(ctx, repo, "push", args...)
	if err == nil {
		s.logger.Info("push succeeded", "path", repo.Path, "remote", remote, "branch", branch)
		return SyncOutcome{Kind: SyncSuccess, Push: step}
	}

	// An explicit branch names its destination, so tracking is irrelevant.
	missingUpstream := false
	if branch == "" && !IsTimeout(err) {
		missingUpstream = s.lacksUpstream(ctx, repo)
	}
	outcome := ClassifyPushFailure(err, missingUpstream)
	outcome.Push = step
	s.logger.Warn("push failed", "path", repo.Path, "outcome", string(outcome.Kind), "reason", outcome.Reason)
	return outcome
}

// lacksUpstream reports whether the checked-out branch has no tracking ref
func (s *syncCoordinator) lacksUpstream(ctx context.Context, repo Repository) bool {
	if _, err := s.runner.Run(ctx, repo.Path, "symbolic-ref", "-q", "HEAD"); err != nil {
		return false
	}
	_, err := s.runner.Run(ctx, repo.Path, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{upstream}")
	return err != nil
}

func (s *syncCoordinator) PushWithUpstream(ctx context.Context, repo Repository, remote, branch string) SyncOutcome {
	if remote == "" {
		remote = s.defaultRemote
	}
	if branch == "" {
		branch = s.currentBranch(ctx, repo)
		if branch == "" {
			return SyncOutcome{Kind: SyncFailed, Reason: ErrNoCurrentBranch.Error(), Err: ErrNoCurrentBranch}
		}
	}

	step, err := s.runStep(ctx, repo, "push", "push", "--porcelain", "--set-upstream", remote, branch)
	if err != nil {
		outcome := ClassifyPushFailure(err, false)
		// Tracking is being configured here, so an upstream complaint is terminal.
		if outcome.Kind == SyncNeedsUpstream {
			outcome.Kind = SyncFailed
		}
		outcome.Push = step
		s.logger.Warn("push with upstream failed", "path", repo.Path, "remote", remote, "branch", branch, "outcome", string(outcome.Kind))
		return outcome
	}
	s.logger.Info("push with upstream succeeded", "path", repo.Path, "remote", remote, "branch", branch)
	return SyncOutcome{Kind: SyncSuccess, Push: step}
}

func (s *syncCoordinator) PullAndPush(ctx context.Context, repo Repository, remote, branch string) SyncOutcome {
	if remote == "" {
		remote = s.defaultRemote
	}
	if branch == "" {
		branch = s.currentBranch(ctx, repo)
		if branch == "" {
			return SyncOutcome{Kind: SyncFailed, Reason: ErrNoCurrentBranch.Error(), Err: ErrNoCurrentBranch}
		}
	}

	pull, err := s.runStep(ctx, repo, "pull", "pull", "--no-rebase", "--no-edit", remote, branch)
	if err != nil {
		s.logger.Warn("pull failed, push not attempted", "path", repo.Path, "remote", remote, "branch", branch, "error", err)
		return SyncOutcome{Kind: SyncFailed, Reason: pull.Error, Pull: pull, Err: err}
	}

	push, err := s.runStep(ctx, repo, "push", "push", "--porcelain", remote, branch)
	if err != nil {
		s.logger.Warn("push after pull failed", "path", repo.Path, "remote", remote, "branch", branch, "error", err)
		return SyncOutcome{Kind: SyncFailed, Reason: push.Error, Pull: pull, Push: push, Err: err}
	}

	s.logger.Info("pull and push succeeded", "path", repo.Path, "remote", remote, "branch", branch)
	return SyncOutcome{Kind: SyncSuccess, Pull: pull, Push: push}
}

// runStep runs a network operation under the network timeout and records it
func (s *syncCoordinator) runStep(ctx context.Context, repo Repository, op string, args ...string) (*StepResult, error) {
	nctx, cancel := s.networkContext(ctx)
	defer cancel()

	out, err := s.runner.Run(nctx, repo.Path, args...)
	step := &StepResult{Operation: op, Success: err == nil, Output: strings.TrimSpace(out)}
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			step.Output = strings.TrimSpace(cmdErr.Stdout)
			step.Error = cmdErr.Diagnostic()
			if cmdErr.TimedOut {
				step.Error = "timed out"
			}
		}
		if step.Error == "" {
			step.Error = err.Error()
		}
	}
	return step, err
}

func (s *syncCoordinator) currentBranch(ctx context.Context, repo Repository) string {
	out, err := s.runner.Run(ctx, repo.Path, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func (s *syncCoordinator) Init(ctx context.Context, repo Repository) error {
	if _, err := s.runner.Run(ctx, repo.Path, "init"); err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	s.logger.Info("initialized repository", "path", repo.Path)
	return nil
}

func (s *syncCoordinator) Stage(ctx context.Context, repo Repository, paths []string) error {
	args := []string{"add"}
	if len(paths) == 0 {
		args = append(args, "-A")
	} else {
		args = append(args, "--")
		args = append(args, paths...)
	}
	if _, err := s.runner.Run(ctx, repo.Path, args...); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	s.logger.Debug("staged changes", "path", repo.Path, "count", len(paths))
	return nil
}

func (s *syncCoordinator) Unstage(ctx context.Context, repo Repository, paths []string) error {
	args := append([]string{"reset", "-q", "--"}, paths...)
	if _, err := s.runner.Run(ctx, repo.Path, args...); err != nil {
		return fmt.Errorf("failed to unstage changes: %w", err)
	}
	s.logger.Debug("unstaged changes", "path", repo.Path, "count", len(paths))
	return nil
}

func (s *syncCoordinator) Commit(ctx context.Context, repo Repository, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyCommitMessage
	}
	if _, err := s.runner.Run(ctx, repo.Path, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	out, err := s.runner.Run(ctx, repo.Path, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve new commit: %w", err)
	}
	hash := strings.TrimSpace(out)
	s.logger.Info("created commit", "path", repo.Path, "commit", hash)
	return hash, nil
}

func (s *syncCoordinator) AddRemote(ctx context.Context, repo Repository, name, url string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(url) == "" {
		return fmt.Errorf("remote name and url are required")
	}
	if _, err := s.runner.Run(ctx, repo.Path, "remote", "add", name, url); err != nil {
		return fmt.Errorf("failed to add remote %s: %w", name, err)
	}
	s.logger.Info("added remote", "path", repo.Path, "remote", name)
	return nil
}

func (s *syncCoordinator) CreateBranch(ctx context.Context, repo Repository, name string, checkout bool) error {
	if err := validateBranchName(name); err != nil {
		return err
	}
	args := []string{"branch", name}
	if checkout {
		args = []string{"switch", "-c", name}
	}
	if _, err := s.runner.Run(ctx, repo.Path, args...); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	s.logger.Info("created branch", "path", repo.Path, "branch", name, "checkout", checkout)
	return nil
}

func (s *syncCoordinator) SwitchBranch(ctx context.Context, repo Repository, name string) error {
	if err := validateBranchName(name); err != nil {
		return err
	}
	if _, err := s.runner.Run(ctx, repo.Path, "switch", name); err != nil {
		return fmt.Errorf("failed to switch to branch %s: %w", name, err)
	}
	s.logger.Info("switched branch", "path", repo.Path, "branch", name)
	return nil
}

func (s *syncCoordinator) DeleteBranch(ctx context.Context, repo Repository, name string, force bool) error {
	if err := validateBranchName(name); err != nil {
		return err
	}
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := s.runner.Run(ctx, repo.Path, "branch", flag, name); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", name, err)
	}
	s.logger.Info("deleted branch", "path", repo.Path, "branch", name, "force", force)
	return nil
}

func validateBranchName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("invalid branch name: %s", name)
	}
	return nil
}
