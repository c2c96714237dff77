package cli

import (
	"github.com/spf13/cobra"

	"github.com/stwalsh4118/repolens/internal/git"
)

// addWalkFlags registers the history filters shared by log and analyze
func addWalkFlags(cmd *cobra.Command, opts *git.WalkOptions) {
	cmd.Flags().IntVarP(&opts.MaxCount, "max-count", "n", 0, "Maximum commits to walk (default from analysis.max_count)")
	cmd.Flags().StringVar(&opts.Since, "since", "", "Only commits after this date (any format git accepts)")
	cmd.Flags().StringVar(&opts.Until, "until", "", "Only commits before this date")
	cmd.Flags().StringVar(&opts.Author, "author", "", "Only commits whose author matches this pattern")
}

func newLogCmd(opts *rootOptions) *cobra.Command {
	var walk git.WalkOptions

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List recent commits with diffstats and task references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			commits, err := a.engine.Commits(commandContext(cmd), a.repo, walk)
			if err != nil {
				return err
			}
			if a.json {
				if commits == nil {
					commits = []git.CommitMetadata{}
				}
				return printJSON(a.out, commits)
			}
			renderCommits(a.out, commits)
			return nil
		},
	}
	addWalkFlags(cmd, &walk)
	return cmd
}
