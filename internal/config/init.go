package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configFilePerm = 0600 // Read/write for user only
	configDirPerm  = 0755
)

// EnsureConfigFile ensures that the configuration file exists, creating it
// with default values if it does not. Symlinks are resolved and the config
// directory must stay within the home directory.
func EnsureConfigFile() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir, err := resolveConfigDir(homeDir)
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, configFileName+"."+configFileType)
	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(configDir, configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := CreateDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create default config: %w", err)
	}

	return nil
}

// CreateDefaultConfig writes the default configuration to ~/.repolens/config.yaml
// with 0600 permissions.
func CreateDefaultConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir, err := resolveConfigDir(homeDir)
	if err != nil {
		return err
	}

	defaultCfg := Default()
	if err := ValidateConfig(defaultCfg); err != nil {
		return fmt.Errorf("default configuration validation failed: %w", err)
	}

	if err := Save(defaultCfg); err != nil {
		return fmt.Errorf("failed to save default config: %w", err)
	}

	configPath := filepath.Join(configDir, configFileName+"."+configFileType)
	if err := os.Chmod(configPath, configFilePerm); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	return nil
}

// resolveConfigDir returns the symlink-resolved config directory, refusing
// any location that escapes the home directory.
func resolveConfigDir(homeDir string) (string, error) {
	configDir := filepath.Join(homeDir, configDirName)

	resolved, err := filepath.EvalSymlinks(configDir)
	if err != nil {
		// Not created yet; check the literal path instead
		if !isPathWithinHome(configDir, homeDir) {
			return "", fmt.Errorf("config directory path is outside home directory")
		}
		return configDir, nil
	}

	if !isPathWithinHome(resolved, homeDir) {
		return "", fmt.Errorf("config directory resolves to path outside home directory")
	}
	return resolved, nil
}

// isPathWithinHome reports whether path is homeDir or one of its descendants
func isPathWithinHome(path, homeDir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absHome, err := filepath.Abs(homeDir)
	if err != nil {
		return false
	}
	if resolvedHome, err := filepath.EvalSymlinks(absHome); err == nil {
		if resolvedPath, err := filepath.EvalSymlinks(absPath); err == nil {
			absHome, absPath = resolvedHome, resolvedPath
		}
	}

	rel, err := filepath.Rel(absHome, absPath)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}
