package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ValidateConfig checks enum values, numeric bounds and watched directories.
// All problems are reported together.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []error

	if strings.TrimSpace(cfg.Git.Binary) == "" {
		errs = append(errs, fmt.Errorf("git.binary cannot be empty"))
	}
	if cfg.Git.CommandTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("git.command_timeout_seconds must be positive, got %d", cfg.Git.CommandTimeoutSeconds))
	}
	if cfg.Git.NetworkTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("git.network_timeout_seconds must be positive, got %d", cfg.Git.NetworkTimeoutSeconds))
	}
	switch cfg.Git.StatsBackend {
	case StatsBackendExec, StatsBackendGoGit:
	default:
		errs = append(errs, fmt.Errorf("git.stats_backend must be %q or %q, got %q", StatsBackendExec, StatsBackendGoGit, cfg.Git.StatsBackend))
	}
	if cfg.Git.StatsWorkers < 1 {
		errs = append(errs, fmt.Errorf("git.stats_workers must be at least 1, got %d", cfg.Git.StatsWorkers))
	}

	if cfg.Analysis.MaxCount < 1 {
		errs = append(errs, fmt.Errorf("analysis.max_count must be at least 1, got %d", cfg.Analysis.MaxCount))
	}
	if cfg.Analysis.TopFiles < 1 {
		errs = append(errs, fmt.Errorf("analysis.top_files must be at least 1, got %d", cfg.Analysis.TopFiles))
	}

	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	switch cfg.Watch.Mode {
	case WatchModeFSNotify, WatchModePoll:
	default:
		errs = append(errs, fmt.Errorf("watch.mode must be %q or %q, got %q", WatchModeFSNotify, WatchModePoll, cfg.Watch.Mode))
	}
	if cfg.Watch.DebounceMillis < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce_millis cannot be negative"))
	}

	if strings.TrimSpace(cfg.Server.Address) == "" {
		errs = append(errs, fmt.Errorf("server.address cannot be empty"))
	}

	for _, dir := range cfg.WatchedDirectories {
		if err := ValidatePath(dir); err != nil {
			errs = append(errs, fmt.Errorf("watched_directories: %w", err))
		}
	}

	return errors.Join(errs...)
}

// ParseLevel validates a log level name. It lives here rather than in the
// logging package so validation does not depend on the logger backend.
func ParseLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return "debug", nil
	case "info", "":
		return "info", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unknown log level %q", level)
	}
}

// ValidatePath validates that a path exists and is a directory.
// It expands home directory paths (~) before validation and checks for security issues.
// Returns an error with a helpful message if validation fails.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	// Validate input doesn't contain dangerous characters
	if err := validatePathInput(path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	// Expand home directory path
	expandedPath := expandHomeDir(path)

	// Resolve symlinks to prevent symlink attacks
	resolvedPath, err := filepath.EvalSymlinks(expandedPath)
	if err != nil {
		// If symlink resolution fails, use expanded path
		// This could be a real error or the path doesn't exist yet
		resolvedPath = expandedPath
	}

	// Check if path exists
	info, err := os.Stat(resolvedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", path)
		}
		return fmt.Errorf("failed to check path: %w", err)
	}

	// Check if path is a directory
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// validatePathInput checks for dangerous characters in path input
func validatePathInput(path string) error {
	// Check for null bytes
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path contains null byte")
	}

	// Check for control characters (except newline/tab which might be valid in some contexts)
	for _, r := range path {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return fmt.Errorf("path contains control character")
		}
	}

	return nil
}

// IsDuplicate checks if a path (after expansion) already exists in the given slice of paths.
// It compares paths after expanding home directory notation and normalizing.
// Returns true if the path is a duplicate, false otherwise.
func IsDuplicate(path string, paths []string) bool {
	if path == "" {
		return false
	}

	expandedPath := expandHomeDir(path)
	expandedPathAbs, err := filepath.Abs(expandedPath)
	if err != nil {
		// If we can't get absolute path, do simple string comparison
		expandedPathAbs = expandedPath
	}

	for _, existingPath := range paths {
		if existingPath == "" {
			continue
		}

		expandedExisting := expandHomeDir(existingPath)
		expandedExistingAbs, err := filepath.Abs(expandedExisting)
		if err != nil {
			expandedExistingAbs = expandedExisting
		}

		// Compare normalized paths
		if expandedPathAbs == expandedExistingAbs {
			return true
		}

		// Also check if paths are the same after resolving symlinks
		// This handles cases where paths might be different representations
		// of the same directory
		resolvedPath, err1 := filepath.EvalSymlinks(expandedPathAbs)
		resolvedExisting, err2 := filepath.EvalSymlinks(expandedExistingAbs)

		if err1 == nil && err2 == nil && resolvedPath == resolvedExisting {
			return true
		}
	}

	return false
}
