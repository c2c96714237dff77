package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/repolens/internal/git"
)

func newTaskCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Connect commits to an external task tracker",
	}
	cmd.AddCommand(newTaskUpdateCmd(opts))
	cmd.AddCommand(newTaskCorrelateCmd(opts))
	return cmd
}

func newTaskUpdateCmd(opts *rootOptions) *cobra.Command {
	var status, note string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Set a task's status through the configured tracker CLI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			timeout := time.Duration(a.cfg.Tasks.TimeoutSeconds) * time.Second
			tracker, err := git.NewExecTaskTracker(a.cfg.Tasks.Binary, timeout, a.logger)
			if err != nil {
				return err
			}

			result, err := tracker.Update(commandContext(cmd), a.repo.Path, args[0], status, note)
			if err != nil {
				return err
			}
			if a.json {
				if err := printJSON(a.out, result); err != nil {
					return err
				}
			} else if result.Stdout != "" {
				fmt.Fprint(a.out, result.Stdout)
			}
			if !result.Success {
				return newExitError(ExitFailure, "task tracker reported failure", fmt.Errorf("%s", result.Stderr))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "New task status (e.g. in-progress, done)")
	cmd.Flags().StringVar(&note, "note", "", "Progress note appended to the task")
	return cmd
}

func newTaskCorrelateCmd(opts *rootOptions) *cobra.Command {
	var walk git.WalkOptions

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Match recent commits to the tasks their messages reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			commits, err := a.engine.Commits(ctx, a.repo, walk)
			if err != nil {
				return err
			}
			correlations, err := git.CorrelateCommits(ctx, git.ReferenceCorrelator{}, commits, a.logger)
			if err != nil {
				return err
			}
			byTask := git.GroupCorrelationsByTask(correlations)
			if a.json {
				return printJSON(a.out, byTask)
			}
			renderCorrelations(a.out, byTask)
			return nil
		},
	}
	addWalkFlags(cmd, &walk)
	return cmd
}
