package cli

import (
	"github.com/spf13/cobra"

	"github.com/stwalsh4118/repolens/internal/git"
)

// syncTarget holds the remote and branch flags of push and sync
type syncTarget struct {
	remote string
	branch string
}

func addSyncTargetFlags(cmd *cobra.Command, t *syncTarget) {
	cmd.Flags().StringVar(&t.remote, "remote", "", "Remote to push to (default from git.default_remote)")
	cmd.Flags().StringVar(&t.branch, "branch", "", "Branch to push (default: current branch)")
}

func newPushCmd(opts *rootOptions) *cobra.Command {
	var (
		target      syncTarget
		setUpstream bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the current branch",
		Long: `Push the current branch and classify the result.

Exit status is 0 on success, 2 when the branch has no upstream (retry with
--set-upstream), 3 when the remote is ahead (run 'repolens sync'), and 1 for
any other failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			var outcome git.SyncOutcome
			if setUpstream {
				outcome = a.engine.Sync.PushWithUpstream(ctx, a.repo, target.remote, target.branch)
			} else {
				outcome = a.engine.Sync.Push(ctx, a.repo, target.remote, target.branch)
			}
			return a.reportOutcome(outcome)
		},
	}
	addSyncTargetFlags(cmd, &target)
	cmd.Flags().BoolVarP(&setUpstream, "set-upstream", "u", false, "Configure the remote branch as upstream while pushing")
	return cmd
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var target syncTarget

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull remote changes, then push",
		Long: `Pull with a merge and push the result. Use this when a push was rejected
because the remote has commits you do not have.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			outcome := a.engine.Sync.PullAndPush(commandContext(cmd), a.repo, target.remote, target.branch)
			return a.reportOutcome(outcome)
		},
	}
	addSyncTargetFlags(cmd, &target)
	return cmd
}

// reportOutcome prints the outcome and converts it to the command's error
func (a *app) reportOutcome(outcome git.SyncOutcome) error {
	a.logger.Info("sync finished", "repository", a.repo.Path, "kind", outcome.Kind)
	if a.json {
		if err := printJSON(a.out, outcome); err != nil {
			return err
		}
	} else {
		renderOutcome(a.out, outcome)
	}
	return outcomeError(outcome)
}
