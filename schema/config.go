package schema

import (
	"fmt"
	"time"
)

// SessionConfig defines timing and limits for an editing session.
type SessionConfig struct {
	// DebounceDelay is the quiet period before a surface edit is pushed to the store.
	DebounceDelay time.Duration
	// RestoreAttempts bounds position restoration on surfaces without a ready signal.
	RestoreAttempts int
	// PollInterval and PollAttempts bound the fallback poll for slots not yet mounted.
	PollInterval time.Duration
	PollAttempts int
	// HistoryMax caps the number of undo snapshots kept per tab.
	HistoryMax int
	// FollowTabMode applies a tab's remembered view mode when it is activated.
	FollowTabMode bool
}

const (
	// DefaultDebounceDelay is the default surface to store push delay.
	DefaultDebounceDelay = 300 * time.Millisecond
	// DefaultRestoreAttempts covers immediate, next-frame and next-tick attempts.
	DefaultRestoreAttempts = 3
	// DefaultPollInterval is the default slot discovery poll interval.
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultPollAttempts is the default slot discovery poll bound.
	DefaultPollAttempts = 20
	// DefaultHistoryMax is the default per-tab undo snapshot cap.
	DefaultHistoryMax = 100
)

// NormalizeSessionConfig applies defaults and validates the config.
func NormalizeSessionConfig(cfg SessionConfig) (SessionConfig, error) {
	if cfg.DebounceDelay < 0 {
		return SessionConfig{}, fmt.Errorf("%w: negative debounce delay", ErrInvalidConfig)
	}
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	if cfg.RestoreAttempts <= 0 {
		cfg.RestoreAttempts = DefaultRestoreAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = DefaultPollAttempts
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = DefaultHistoryMax
	}
	return cfg, nil
}
