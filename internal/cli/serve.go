package cli

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/repolens/internal/daemon"
	"github.com/stwalsh4118/repolens/internal/git"
)

const (
	stopTimeout = 10 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API in the foreground",
		Long: `Serve repository status, history and sync operations over HTTP, and push
status updates to WebSocket subscribers.

The repositories under watched_directories and --repo (when it is one) are
watched for changes; watch.mode selects filesystem notifications or polling.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if address != "" {
				a.cfg.Server.Address = address
			}

			repos, err := a.watchedRepositories(cmd)
			if err != nil {
				return err
			}
			d, err := daemon.NewDaemon(a.cfg, a.engine, repos, a.logger)
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run(commandContext(cmd))
		},
	}
	cmd.Flags().StringVar(&address, "addr", "", "Listen address (default from server.address)")

	cmd.AddCommand(newServeStatusCmd(opts))
	cmd.AddCommand(newServeStopCmd(opts))
	return cmd
}

// watchedRepositories collects --repo and everything under watched_directories
func (a *app) watchedRepositories(cmd *cobra.Command) ([]git.Repository, error) {
	var repos []git.Repository
	seen := make(map[string]bool)

	if git.IsRepository(a.repo.Path) {
		repos = append(repos, a.repo)
		seen[a.repo.Path] = true
	}
	if len(a.cfg.WatchedDirectories) == 0 {
		return repos, nil
	}

	found, err := discover(cmd, a, a.cfg.WatchedDirectories)
	if err != nil {
		return nil, err
	}
	for _, r := range found {
		if !seen[r.Path] {
			seen[r.Path] = true
			repos = append(repos, r)
		}
	}
	return repos, nil
}

func newServeStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether a server is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			pidFile, err := daemon.NewPIDFile(a.cfg.Storage.BasePath)
			if err != nil {
				return err
			}
			state, err := daemon.Inspect(pidFile)
			if err != nil {
				return fmt.Errorf("failed to check server status: %w", err)
			}

			switch {
			case state.Running:
				fmt.Fprintf(a.out, "Status: %s (PID: %d)\n", styleSuccess.Render("running"), state.PID)
			case state.Stale:
				if err := pidFile.Remove(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: found stale PID file but failed to remove it: %v\n", err)
				}
				fmt.Fprintln(a.out, "Status: stopped (stale PID file removed)")
			default:
				fmt.Fprintln(a.out, "Status: stopped")
			}
			return nil
		},
	}
}

func newServeStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running server gracefully",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			pidFile, err := daemon.NewPIDFile(a.cfg.Storage.BasePath)
			if err != nil {
				return err
			}
			state, err := daemon.Inspect(pidFile)
			if err != nil {
				return fmt.Errorf("failed to check server status: %w", err)
			}
			if state.Stale {
				if err := pidFile.Remove(); err != nil {
					return fmt.Errorf("server is not running, but failed to remove stale PID file: %w", err)
				}
				return errors.New("server is not running (stale PID file removed)")
			}
			if !state.Running {
				return errors.New("server is not running")
			}

			if err := daemon.SendSignal(state.PID, syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send shutdown signal: %w", err)
			}
			fmt.Fprintf(a.out, "Shutdown signal sent to server (PID: %d), waiting for graceful shutdown...\n", state.PID)

			if err := daemon.WaitForProcessExit(state.PID, stopTimeout); err != nil {
				return fmt.Errorf("server did not exit within %v: %w", stopTimeout, err)
			}
			fmt.Fprintln(a.out, "Server stopped")
			return nil
		},
	}
}
