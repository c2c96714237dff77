package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStageCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stage [paths...]",
		Short: "Stage paths, or every change when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := a.engine.Sync.Stage(commandContext(cmd), a.repo, args); err != nil {
				return err
			}
			if len(args) == 0 {
				fmt.Fprintln(a.out, "staged all changes")
			} else {
				fmt.Fprintf(a.out, "staged %d path(s)\n", len(args))
			}
			return nil
		},
	}
}

func newUnstageCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unstage [paths...]",
		Short: "Remove paths from the index, keeping working tree edits",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := a.engine.Sync.Unstage(commandContext(cmd), a.repo, args); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "unstaged")
			return nil
		},
	}
}

func newCommitCmd(opts *rootOptions) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit staged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			hash, err := a.engine.Sync.Commit(commandContext(cmd), a.repo, message)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, map[string]string{"hash": hash})
			}
			fmt.Fprintf(a.out, "committed %s\n", styleAccent.Render(shortHash(hash)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	return cmd
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty repository at --repo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(a.repo.Path, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			if err := a.engine.Sync.Init(commandContext(cmd), a.repo); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "initialized repository in %s\n", a.repo.Path)
			return nil
		},
	}
}

func newRemoteCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage remotes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a remote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := a.engine.Sync.AddRemote(commandContext(cmd), a.repo, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "added remote %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func newBranchCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "List, create, switch and delete branches",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List local branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			branches := a.engine.Probe.ListBranches(commandContext(cmd), a.repo)
			if a.json {
				return printJSON(a.out, branches)
			}
			renderBranches(a.out, branches)
			return nil
		},
	})

	var checkout bool
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a branch at HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := a.engine.Sync.CreateBranch(commandContext(cmd), a.repo, args[0], checkout); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created branch %s\n", args[0])
			return nil
		},
	}
	create.Flags().BoolVar(&checkout, "checkout", false, "Switch to the new branch")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "switch <name>",
		Short: "Switch to a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := a.engine.Sync.SwitchBranch(commandContext(cmd), a.repo, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "switched to %s\n", args[0])
			return nil
		},
	})

	var force bool
	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := a.engine.Sync.DeleteBranch(commandContext(cmd), a.repo, args[0], force); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted branch %s\n", args[0])
			return nil
		},
	}
	del.Flags().BoolVarP(&force, "force", "f", false, "Delete even if not merged")
	cmd.AddCommand(del)

	return cmd
}
