package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 7
editor:
  debounce_ms: 100
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
editor:
  debounce_ms: 100
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected missing version error, got %v", err)
	}
}

func TestLoadRejectsNegativeEditorValues(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
editor:
  poll_attempts: -2
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "editor.poll_attempts") {
		t.Fatalf("expected poll_attempts error, got %v", err)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Setenv("MDPANE_TEST_STATE", "/tmp/mdpane-state")
	path := writeConfig(t, `
config_version: 1
state_dir: $MDPANE_TEST_STATE/notes
editor:
  debounce_ms: 120
  follow_tab_mode: true
watch:
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/tmp/mdpane-state/notes" {
		t.Fatalf("expected expanded state dir, got %q", cfg.StateDir)
	}
	session := cfg.SessionConfig()
	if session.DebounceDelay != 120*time.Millisecond || !session.FollowTabMode {
		t.Fatalf("unexpected session config %+v", session)
	}
	if cfg.Editor.RestoreAttempts != 3 || cfg.Editor.HistoryMax != 100 {
		t.Fatalf("expected unset keys to keep defaults, got %+v", cfg.Editor)
	}
	if cfg.Watch.Enabled {
		t.Fatalf("expected watch disabled")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion || cfg.Workspace != "default" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("expected written default to load: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
