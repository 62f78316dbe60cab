// Package config handles para configuration loading and management.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"para/internal/errors"
)

// Version is the current para version.
const Version = "0.3.0"

// Config represents the para configuration.
type Config struct {
	// BranchPrefix namespaces every branch para owns: session branches
	// ({prefix}/{name}), archived branches ({prefix}/archived/...) and
	// integration scratch branches ({prefix}/tmp/...).
	BranchPrefix string `yaml:"branch_prefix"`

	// DefaultTarget is the branch integrations land on when --target is
	// not given. Empty means detect the repository's main branch.
	DefaultTarget string `yaml:"default_target"`

	// DataDirName is the per-repository data directory, relative to the
	// repository root. Integration state, history and events live here.
	DataDirName string `yaml:"data_dir"`

	// ArchiveRetentionDays bounds how long archived branches are kept
	// before `para clean --archives` offers them for deletion.
	ArchiveRetentionDays int `yaml:"archive_retention_days"`

	// HistoryLimit is the default row count for `para history`.
	HistoryLimit int `yaml:"history_limit"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Integrate contains integration defaults.
	Integrate IntegrateConfig `yaml:"integrate"`

	// Notifications contains desktop notification settings.
	Notifications NotificationConfig `yaml:"notifications"`
}

// IntegrateConfig contains integration defaults.
type IntegrateConfig struct {
	// DefaultStrategy pins a strategy (merge, squash, rebase) for every
	// integration. Empty means auto-select per branch.
	DefaultStrategy string `yaml:"default_strategy"`

	// AutoFetch updates the target branch from origin before integrating.
	AutoFetch bool `yaml:"auto_fetch"`
}

// NotificationConfig contains desktop notification settings.
type NotificationConfig struct {
	// Enabled turns all desktop notifications on or off.
	Enabled bool `yaml:"enabled"`

	// OnComplete notifies when an integration finishes cleanly.
	OnComplete bool `yaml:"on_complete"`

	// OnConflict notifies when an integration pauses on conflicts.
	OnConflict bool `yaml:"on_conflict"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BranchPrefix:         "para",
		DefaultTarget:        "", // Empty means use repository's default branch
		DataDirName:          ".para",
		ArchiveRetentionDays: 30,
		HistoryLimit:         20,
		LogLevel:             "info",
		Integrate: IntegrateConfig{
			DefaultStrategy: "",
			AutoFetch:       true,
		},
		Notifications: NotificationConfig{
			Enabled:    true,
			OnComplete: true,
			OnConflict: true,
		},
	}
}

// Load reads configuration from file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		if dir := os.Getenv("PARA_CONFIG_DIR"); dir != "" {
			path = filepath.Join(dir, "config.yaml")
		}
	}
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		candidates := []string{
			filepath.Join(homeDir, ".config", "para", "config.yaml"),
			filepath.Join(homeDir, ".para.yaml"),
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path == "" {
		return cfg, nil // No config file, use defaults
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.ConfigLoadFailed(path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.ConfigLoadFailed(path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir reads {dir}/config.yaml, merging with defaults. Used by tests
// to avoid touching the real home directory.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, "config.yaml"))
}

// Save writes configuration to file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate checks the configuration for values the engine cannot work with.
func (c *Config) Validate() error {
	if c.BranchPrefix == "" {
		return errors.ConfigInvalid("branch_prefix must not be empty")
	}
	if strings.ContainsAny(c.BranchPrefix, "/ \t") {
		return errors.ConfigInvalid("branch_prefix must not contain slashes or whitespace")
	}
	if c.ArchiveRetentionDays < 0 {
		return errors.ConfigInvalid("archive_retention_days must not be negative")
	}
	switch strings.ToLower(c.Integrate.DefaultStrategy) {
	case "", "merge", "squash", "rebase":
	default:
		return errors.ConfigInvalid("integrate.default_strategy must be merge, squash or rebase")
	}
	return nil
}

// DataDir returns the per-repository data directory.
func (c *Config) DataDir(repoRoot string) string {
	return filepath.Join(repoRoot, c.DataDirName)
}

// StateDir returns the directory holding integration state for a repository.
func (c *Config) StateDir(repoRoot string) string {
	return filepath.Join(c.DataDir(repoRoot), "state")
}

// HistoryPath returns the path to the integration history database.
func (c *Config) HistoryPath(repoRoot string) string {
	return filepath.Join(c.DataDir(repoRoot), "history.db")
}

// EventsPath returns the path to the event journal.
func (c *Config) EventsPath(repoRoot string) string {
	return filepath.Join(c.DataDir(repoRoot), "events.jsonl")
}

// LogPath returns the path to the per-repository log file.
func (c *Config) LogPath(repoRoot string) string {
	return filepath.Join(c.DataDir(repoRoot), "para.log")
}
