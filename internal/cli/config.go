package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stwalsh4118/repolens/internal/config"
)

// newConfigCmd creates the config command for viewing and modifying configuration
func newConfigCmd() *cobra.Command {
	var showFlag bool
	var initFlag bool
	var addWatchPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long: `View and modify repolens configuration settings.

Use --init to write the default configuration file, --show to display the
current configuration, or --add-watch to add a directory to the list scanned
by 'discover' and 'serve'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flagCount := 0
			for _, set := range []bool{showFlag, initFlag, addWatchPath != ""} {
				if set {
					flagCount++
				}
			}
			if flagCount == 0 {
				return cmd.Help()
			}
			if flagCount > 1 {
				return fmt.Errorf("only one flag can be used at a time")
			}

			if initFlag {
				if err := config.EnsureConfigFile(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Configuration file is in place at ~/.repolens/config.yaml")
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			if showFlag {
				return handleShow(cmd.OutOrStdout(), cfg)
			}
			return handleAddWatch(cmd.OutOrStdout(), cfg, addWatchPath)
		},
	}

	cmd.Flags().BoolVarP(&showFlag, "show", "s", false, "Display current configuration")
	cmd.Flags().BoolVar(&initFlag, "init", false, "Write the default configuration file if none exists")
	cmd.Flags().StringVar(&addWatchPath, "add-watch", "", "Add directory to watched directories list")

	return cmd
}

// handleShow displays the current configuration in YAML format
func handleShow(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// handleAddWatch adds a directory to the watched directories list
func handleAddWatch(w io.Writer, cfg *config.Config, path string) error {
	if err := config.ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if config.IsDuplicate(path, cfg.WatchedDirectories) {
		return fmt.Errorf("directory already in watch list: %s", path)
	}

	cfg.WatchedDirectories = append(cfg.WatchedDirectories, path)

	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(w, "Added %s to watched directories\n", path)
	return nil
}
