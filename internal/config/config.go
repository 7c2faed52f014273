// Package config loads and validates the backplane configuration file.
//
// Search order: explicit path (--config flag), .backplane.yaml in the current
// directory, then ~/.config/backplane/config.yaml. Missing files fall back to
// defaults so the dashboard works out of the box against the local daemon.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/icryo/backplane-tui/internal/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".backplane.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/backplane"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
)

// Config represents the complete backplane configuration file.
type Config struct {
	// Runtime holds daemon connection settings.
	Runtime RuntimeConfig `yaml:"runtime" mapstructure:"runtime"`

	// Refresh holds the poll cadences for each live data source.
	Refresh RefreshConfig `yaml:"refresh" mapstructure:"refresh"`

	// Logs holds log session settings.
	Logs LogsConfig `yaml:"logs" mapstructure:"logs"`

	// Exec holds exec session settings.
	Exec ExecConfig `yaml:"exec" mapstructure:"exec"`

	// TombstoneGrace is how long a container missing from inventory is kept
	// visible before being purged, to ride out transient daemon hiccups.
	TombstoneGrace time.Duration `yaml:"tombstone_grace" mapstructure:"tombstone_grace"`

	// CommandTimeout bounds each container command (start/stop/restart/remove/create).
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`
}

// RuntimeConfig holds connection settings for the container runtime.
type RuntimeConfig struct {
	// Host overrides the daemon socket (e.g. unix:///var/run/docker.sock).
	// Empty means use the environment (DOCKER_HOST) or platform default.
	Host string `yaml:"host" mapstructure:"host"`
}

// RefreshConfig holds the poll cadence per data source. Host metrics change
// more slowly and are more expensive to sample, so their cadence is coarser
// than the container cadences.
type RefreshConfig struct {
	Inventory time.Duration `yaml:"inventory" mapstructure:"inventory"`
	Stats     time.Duration `yaml:"stats" mapstructure:"stats"`
	Host      time.Duration `yaml:"host" mapstructure:"host"`
}

// LogsConfig holds log session settings.
type LogsConfig struct {
	// Tail is how many existing lines to load when a log session opens.
	Tail int `yaml:"tail" mapstructure:"tail"`
	// Buffer bounds the in-memory scrollback ring per session.
	Buffer int `yaml:"buffer" mapstructure:"buffer"`
}

// ExecConfig holds exec session settings.
type ExecConfig struct {
	// Shells are the shell candidates tried in order when attaching.
	Shells []string `yaml:"shells" mapstructure:"shells"`
}

// Default returns a config populated with default values.
func Default() *Config {
	return &Config{
		Refresh: RefreshConfig{
			Inventory: 3 * time.Second,
			Stats:     2 * time.Second,
			Host:      5 * time.Second,
		},
		Logs: LogsConfig{
			Tail:   500,
			Buffer: 2000,
		},
		Exec: ExecConfig{
			Shells: []string{"/bin/bash", "/bin/sh", "/bin/zsh", "/bin/ash"},
		},
		TombstoneGrace: 10 * time.Second,
		CommandTimeout: 15 * time.Second,
	}
}

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'backplane init' to create one, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to parse config file",
			"Check the file structure matches the documented schema")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .backplane.yaml in current directory
// 3. ~/.config/backplane/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults if no
// config file exists anywhere in the search order.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the config for values that would break the engine.
func (c *Config) Validate() error {
	if c.Refresh.Inventory <= 0 || c.Refresh.Stats <= 0 || c.Refresh.Host <= 0 {
		return errors.New(errors.ErrConfig,
			"Refresh cadences must be positive",
			"Use durations like '2s' or '500ms' under the refresh section")
	}
	if c.Logs.Buffer <= 0 {
		return errors.New(errors.ErrConfig,
			"Log buffer size must be positive",
			"Set logs.buffer to the number of scrollback lines to retain")
	}
	if c.Logs.Tail < 0 {
		return errors.New(errors.ErrConfig,
			"Log tail must not be negative",
			"Set logs.tail to 0 to load no history, or a positive line count")
	}
	if len(c.Exec.Shells) == 0 {
		return errors.New(errors.ErrConfig,
			"At least one exec shell candidate is required",
			"Set exec.shells, e.g. [/bin/bash, /bin/sh]")
	}
	if c.TombstoneGrace < 0 {
		return errors.New(errors.ErrConfig,
			"Tombstone grace must not be negative",
			"Set tombstone_grace to 0 to purge missing containers immediately")
	}
	if c.CommandTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"Command timeout must be positive",
			"Set command_timeout to a duration like '15s'")
	}
	return nil
}

// WriteDefault writes a default config file to the given path, creating
// parent directories as needed. Fails if the file already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.New(errors.ErrConfig,
			"Config file already exists: "+path,
			"Edit it directly, or remove it before running 'backplane init'")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot create config directory",
			"Check directory permissions")
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot encode default config", "")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write config file",
			"Check directory permissions")
	}
	return nil
}
