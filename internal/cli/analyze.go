package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/repolens/internal/db"
	"github.com/stwalsh4118/repolens/internal/git"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		walk git.WalkOptions
		save bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Aggregate commit history into activity analytics",
		Long: `Walk commit history and report authors, commit frequency, the most
changed files, task references and code velocity.

With --save the report is also archived in the local database and can be
listed later with 'repolens history'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			analysis, err := a.engine.Analyze(ctx, a.repo, walk)
			if err != nil {
				return err
			}

			if save {
				id, err := a.archive(cmd, walk, analysis)
				if err != nil {
					return err
				}
				// keep stdout a single JSON document
				fmt.Fprintf(cmd.ErrOrStderr(), "saved report %s\n", id)
			}

			if a.json {
				return printJSON(a.out, analysis)
			}
			renderAnalysis(a.out, a.repo, analysis)
			return nil
		},
	}
	addWalkFlags(cmd, &walk)
	cmd.Flags().BoolVar(&save, "save", false, "Archive the report in the local database")
	return cmd
}

// openReports opens the archive database; the caller closes the returned func
func (a *app) openReports() (git.ReportStorage, func(), error) {
	database, err := db.Open(a.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open report archive: %w", err)
	}
	storage, err := git.NewReportStorage(database, a.logger)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return storage, func() { database.Close() }, nil
}

func (a *app) archive(cmd *cobra.Command, walk git.WalkOptions, analysis git.CommitAnalysis) (string, error) {
	storage, closeDB, err := a.openReports()
	if err != nil {
		return "", err
	}
	defer closeDB()
	return storage.StoreAnalysis(commandContext(cmd), a.repo, walk, analysis)
}
