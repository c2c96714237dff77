package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/repolens/internal/git"
)

func newDiscoverCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discover [dirs...]",
		Short: "Find repositories under directories",
		Long: `Scan directories for git working trees and worktrees. Without arguments
the watched_directories from the configuration are scanned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			dirs := args
			if len(dirs) == 0 {
				dirs = a.cfg.WatchedDirectories
			}
			if len(dirs) == 0 {
				return fmt.Errorf("no directories given and no watched_directories configured (see 'repolens config --add-watch')")
			}

			repos, err := discover(cmd, a, dirs)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, repos)
			}
			renderRepositories(a.out, repos)
			return nil
		},
	}
}

func discover(cmd *cobra.Command, a *app, dirs []string) ([]git.Repository, error) {
	discoverer, err := git.NewDiscoverer(a.logger)
	if err != nil {
		return nil, err
	}
	repos, err := discoverer.DiscoverRepositories(commandContext(cmd), dirs)
	if err != nil {
		return nil, fmt.Errorf("failed to discover repositories: %w", err)
	}
	if repos == nil {
		repos = []git.Repository{}
	}
	return repos, nil
}
