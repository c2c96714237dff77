package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configDirName  = ".repolens"
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "REPOLENS"
)

// Load loads the configuration from file, environment variables, and defaults.
// Precedence, highest first:
// 1. Environment variables (REPOLENS_ prefix)
// 2. Configuration file (~/.repolens/config.yaml)
// 3. Default values
func Load() (*Config, error) {
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("failed to initialize viper: %w", err)
	}

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandConfigPaths(&cfg)

	return &cfg, nil
}

// Default returns a configuration populated only with default values.
// It does not touch viper's global state, so library callers and tests can use it freely.
func Default() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "~"
	}
	base := filepath.Join(homeDir, configDirName)

	return &Config{
		WatchedDirectories: []string{},
		Git: GitConfig{
			Binary:                "git",
			CommandTimeoutSeconds: 30,
			NetworkTimeoutSeconds: 120,
			DefaultRemote:         "origin",
			StatsBackend:          StatsBackendExec,
			StatsWorkers:          4,
			PollIntervalSeconds:   30,
		},
		Analysis: AnalysisConfig{
			MaxCount: 100,
			TopFiles: 50,
		},
		Tasks: TasksConfig{
			Binary:         "task-master",
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: filepath.Join(base, "repolens.log"),
			Console:  true,
		},
		Storage: StorageConfig{
			BasePath:     base,
			DatabasePath: filepath.Join(base, "repolens.db"),
		},
		Server: ServerConfig{
			Address: "127.0.0.1:7420",
		},
		Watch: WatchConfig{
			Mode:           WatchModeFSNotify,
			DebounceMillis: 250,
		},
	}
}

// initViper initializes Viper with configuration file path, environment variable prefix, and settings
func initViper() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, configDirName, configFileName+"."+configFileType)

	viper.SetConfigFile(configPath)
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	// git.command_timeout_seconds -> REPOLENS_GIT_COMMAND_TIMEOUT_SECONDS
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// A missing config file is fine - defaults apply
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !os.IsNotExist(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every key of Default() with viper so env overrides bind
func setDefaults() {
	d := Default()

	viper.SetDefault("watched_directories", d.WatchedDirectories)

	viper.SetDefault("git.binary", d.Git.Binary)
	viper.SetDefault("git.command_timeout_seconds", d.Git.CommandTimeoutSeconds)
	viper.SetDefault("git.network_timeout_seconds", d.Git.NetworkTimeoutSeconds)
	viper.SetDefault("git.default_remote", d.Git.DefaultRemote)
	viper.SetDefault("git.stats_backend", d.Git.StatsBackend)
	viper.SetDefault("git.stats_workers", d.Git.StatsWorkers)
	viper.SetDefault("git.poll_interval_seconds", d.Git.PollIntervalSeconds)

	viper.SetDefault("analysis.max_count", d.Analysis.MaxCount)
	viper.SetDefault("analysis.top_files", d.Analysis.TopFiles)

	viper.SetDefault("tasks.binary", d.Tasks.Binary)
	viper.SetDefault("tasks.timeout_seconds", d.Tasks.TimeoutSeconds)

	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.file_path", d.Logging.FilePath)
	viper.SetDefault("logging.console", d.Logging.Console)

	viper.SetDefault("storage.base_path", d.Storage.BasePath)
	viper.SetDefault("storage.database_path", d.Storage.DatabasePath)

	viper.SetDefault("server.address", d.Server.Address)

	viper.SetDefault("watch.mode", d.Watch.Mode)
	viper.SetDefault("watch.debounce_millis", d.Watch.DebounceMillis)
}

// expandHomeDir expands ~ in a path to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		if strings.HasPrefix(path, "~/") {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

// ExpandHomeDir is the exported form of expandHomeDir, used for --repo style flags
func ExpandHomeDir(path string) string {
	return expandHomeDir(path)
}

// expandConfigPaths expands all ~ paths in the configuration struct
func expandConfigPaths(cfg *Config) {
	cfg.Logging.FilePath = expandHomeDir(cfg.Logging.FilePath)
	cfg.Storage.BasePath = expandHomeDir(cfg.Storage.BasePath)
	cfg.Storage.DatabasePath = expandHomeDir(cfg.Storage.DatabasePath)

	for i, dir := range cfg.WatchedDirectories {
		cfg.WatchedDirectories[i] = expandHomeDir(dir)
	}
}
