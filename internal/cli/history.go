package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/repolens/internal/git"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived analysis reports",
		Long: `List reports saved with 'repolens analyze --save', newest first.
Only reports for --repo are shown unless --all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			storage, closeDB, err := a.openReports()
			if err != nil {
				return err
			}
			defer closeDB()

			repoPath := a.repo.Path
			if all {
				repoPath = ""
			}
			reports, err := storage.ListAnalyses(commandContext(cmd), repoPath, limit)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, reports)
			}
			renderReports(a.out, reports)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum reports to list")
	cmd.Flags().BoolVar(&all, "all", false, "List reports for every repository")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print an archived report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			storage, closeDB, err := a.openReports()
			if err != nil {
				return err
			}
			defer closeDB()

			report, err := storage.GetAnalysis(commandContext(cmd), args[0])
			if errors.Is(err, git.ErrReportNotFound) {
				return fmt.Errorf("no archived report with id %s", args[0])
			}
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, report)
			}
			repo := git.Repository{Path: report.RepositoryPath, Name: report.RepositoryName}
			renderAnalysis(a.out, repo, *report.Analysis)
			return nil
		},
	})

	return cmd
}
