package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/mdpane/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int          `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string       `mapstructure:"state_dir" yaml:"state_dir"`
	Workspace     string       `mapstructure:"workspace" yaml:"workspace"`
	Editor        EditorConfig `mapstructure:"editor" yaml:"editor"`
	Watch         WatchConfig  `mapstructure:"watch" yaml:"watch"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EditorConfig controls session timing and history limits.
type EditorConfig struct {
	DebounceMS      int  `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	RestoreAttempts int  `mapstructure:"restore_attempts" yaml:"restore_attempts"`
	PollIntervalMS  int  `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	PollAttempts    int  `mapstructure:"poll_attempts" yaml:"poll_attempts"`
	HistoryMax      int  `mapstructure:"history_max" yaml:"history_max"`
	FollowTabMode   bool `mapstructure:"follow_tab_mode" yaml:"follow_tab_mode"`
}

// WatchConfig controls reloading of files changed on disk.
type WatchConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".mdpane", "state"),
		Workspace:     "default",
		Editor: EditorConfig{
			DebounceMS:      int(schema.DefaultDebounceDelay / time.Millisecond),
			RestoreAttempts: schema.DefaultRestoreAttempts,
			PollIntervalMS:  int(schema.DefaultPollInterval / time.Millisecond),
			PollAttempts:    schema.DefaultPollAttempts,
			HistoryMax:      schema.DefaultHistoryMax,
			FollowTabMode:   false,
		},
		Watch: WatchConfig{
			Enabled: true,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mdpane", "config.yaml"), nil
}

// SessionConfig converts the editor section into a session config.
func (c Config) SessionConfig() schema.SessionConfig {
	return schema.SessionConfig{
		DebounceDelay:   time.Duration(c.Editor.DebounceMS) * time.Millisecond,
		RestoreAttempts: c.Editor.RestoreAttempts,
		PollInterval:    time.Duration(c.Editor.PollIntervalMS) * time.Millisecond,
		PollAttempts:    c.Editor.PollAttempts,
		HistoryMax:      c.Editor.HistoryMax,
		FollowTabMode:   c.Editor.FollowTabMode,
	}
}
