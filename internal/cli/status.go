package cli

import (
	"github.com/spf13/cobra"

	"github.com/stwalsh4118/repolens/internal/git"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the working tree",
		Long: `Show branch, uncommitted and unpushed counts, conflicts and the last
commit of the repository. A path that is not a repository reports isRepo=false
rather than failing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			snapshot := a.engine.Status(commandContext(cmd), a.repo)
			if a.json {
				return printJSON(a.out, snapshot)
			}
			renderStatus(a.out, a.repo, snapshot)
			return nil
		},
	}
}

func newChangesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "changes",
		Short: "List staged, unstaged and untracked files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			changes := a.engine.Probe.ListChanges(commandContext(cmd), a.repo)
			if a.json {
				if changes == nil {
					changes = []git.FileChangeEntry{}
				}
				return printJSON(a.out, changes)
			}
			renderChanges(a.out, changes)
			return nil
		},
	}
}
