package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MDPANE")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("workspace", cfg.Workspace)
	v.SetDefault("editor.debounce_ms", cfg.Editor.DebounceMS)
	v.SetDefault("editor.restore_attempts", cfg.Editor.RestoreAttempts)
	v.SetDefault("editor.poll_interval_ms", cfg.Editor.PollIntervalMS)
	v.SetDefault("editor.poll_attempts", cfg.Editor.PollAttempts)
	v.SetDefault("editor.history_max", cfg.Editor.HistoryMax)
	v.SetDefault("editor.follow_tab_mode", cfg.Editor.FollowTabMode)
	v.SetDefault("watch.enabled", cfg.Watch.Enabled)
	if err := v.BindEnv("state_dir"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("workspace"); err != nil {
		return Config{}, err
	}

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateEditorConfig(cfg.Editor); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateEditorConfig(cfg EditorConfig) error {
	checks := []struct {
		key   string
		value int
	}{
		{"editor.debounce_ms", cfg.DebounceMS},
		{"editor.restore_attempts", cfg.RestoreAttempts},
		{"editor.poll_interval_ms", cfg.PollIntervalMS},
		{"editor.poll_attempts", cfg.PollAttempts},
		{"editor.history_max", cfg.HistoryMax},
	}
	for _, check := range checks {
		if check.value < 0 {
			return fmt.Errorf("%s must not be negative", check.key)
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
