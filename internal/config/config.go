package config

// Config represents the root configuration structure for repolens
type Config struct {
	WatchedDirectories []string       `mapstructure:"watched_directories" yaml:"watched_directories"`
	Git                GitConfig      `mapstructure:"git" yaml:"git"`
	Analysis           AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Tasks              TasksConfig    `mapstructure:"tasks" yaml:"tasks"`
	Logging            LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Storage            StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Server             ServerConfig   `mapstructure:"server" yaml:"server"`
	Watch              WatchConfig    `mapstructure:"watch" yaml:"watch"`
}

// GitConfig controls how the git binary is driven
type GitConfig struct {
	Binary                string `mapstructure:"binary" yaml:"binary"`
	CommandTimeoutSeconds int    `mapstructure:"command_timeout_seconds" yaml:"command_timeout_seconds"`
	NetworkTimeoutSeconds int    `mapstructure:"network_timeout_seconds" yaml:"network_timeout_seconds"`
	DefaultRemote         string `mapstructure:"default_remote" yaml:"default_remote"`
	StatsBackend          string `mapstructure:"stats_backend" yaml:"stats_backend"`
	StatsWorkers          int    `mapstructure:"stats_workers" yaml:"stats_workers"`
	PollIntervalSeconds   int    `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
}

// AnalysisConfig contains commit history analysis settings
type AnalysisConfig struct {
	MaxCount int `mapstructure:"max_count" yaml:"max_count"`
	TopFiles int `mapstructure:"top_files" yaml:"top_files"`
}

// TasksConfig configures the external task-tracking CLI
type TasksConfig struct {
	Binary         string `mapstructure:"binary" yaml:"binary"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level" yaml:"level"`
	FilePath string `mapstructure:"file_path" yaml:"file_path"`
	Console  bool   `mapstructure:"console" yaml:"console"`
}

// StorageConfig contains storage-related configuration
type StorageConfig struct {
	BasePath     string `mapstructure:"base_path" yaml:"base_path"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// ServerConfig configures the HTTP/WebSocket transport
type ServerConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// WatchConfig selects how repository changes are detected while serving
type WatchConfig struct {
	Mode           string `mapstructure:"mode" yaml:"mode"`
	DebounceMillis int    `mapstructure:"debounce_millis" yaml:"debounce_millis"`
}

const (
	// StatsBackendExec computes per-commit diffstats with `git show --numstat`
	StatsBackendExec = "exec"
	// StatsBackendGoGit computes per-commit diffstats in-process with go-git
	StatsBackendGoGit = "gogit"

	// WatchModeFSNotify watches the working tree with filesystem notifications
	WatchModeFSNotify = "fsnotify"
	// WatchModePoll re-probes repository status on an interval
	WatchModePoll = "poll"
)
