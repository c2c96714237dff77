package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Save saves the configuration to ~/.repolens/config.yaml, creating the
// directory if needed. Paths inside the home directory are written with ~.
func Save(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir, err := resolveConfigDir(homeDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Re-resolve after creation in case the directory was swapped for a symlink
	if resolved, err := filepath.EvalSymlinks(configDir); err == nil && !isPathWithinHome(resolved, homeDir) {
		return fmt.Errorf("config directory is outside home directory")
	}

	configPath := filepath.Join(configDir, configFileName+"."+configFileType)

	data, err := yaml.Marshal(convertPathsToTilde(cfg, homeDir))
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// convertPathsToTilde returns a copy of cfg with home-relative paths in ~ form
func convertPathsToTilde(cfg *Config, homeDir string) *Config {
	result := *cfg
	result.Logging.FilePath = convertPathToTilde(cfg.Logging.FilePath, homeDir)
	result.Storage.BasePath = convertPathToTilde(cfg.Storage.BasePath, homeDir)
	result.Storage.DatabasePath = convertPathToTilde(cfg.Storage.DatabasePath, homeDir)

	result.WatchedDirectories = make([]string, len(cfg.WatchedDirectories))
	for i, dir := range cfg.WatchedDirectories {
		result.WatchedDirectories[i] = convertPathToTilde(dir, homeDir)
	}

	return &result
}

// convertPathToTilde converts an absolute path to ~ form if it is within
// homeDir, otherwise returns it unchanged.
func convertPathToTilde(path, homeDir string) string {
	if path == "" || strings.HasPrefix(path, "~") {
		return path
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	homeDirAbs, err := filepath.Abs(homeDir)
	if err != nil {
		return path
	}

	relPath, err := filepath.Rel(homeDirAbs, absPath)
	if err != nil {
		return path
	}

	if !strings.HasPrefix(relPath, "..") {
		if relPath == "." {
			return "~"
		}
		return filepath.Join("~", relPath)
	}

	return path
}
