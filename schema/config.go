package schema

import "time"

// Default timing and bound values for the engine.
const (
	// DefaultOpenDebounce collapses rapid stream open calls.
	DefaultOpenDebounce = 50 * time.Millisecond
	// DefaultQuietPeriod batches rapidly-arriving failures before acting.
	DefaultQuietPeriod = 2 * time.Second
	// DefaultRefreshDelay is the trailing debounce for preview reloads.
	DefaultRefreshDelay = 1500 * time.Millisecond
	// DefaultReloadDelay lets remediated changes propagate before a reload.
	DefaultReloadDelay = 750 * time.Millisecond
	// DefaultFailureGrace is how long a build error may stand unrecovered
	// before the session is declared failed.
	DefaultFailureGrace = 5 * time.Second
	// DefaultHistoryMax bounds the file view history.
	DefaultHistoryMax = 20
	// DefaultConversationMaxLines bounds the conversation log.
	DefaultConversationMaxLines = 2000
)

// EngineConfig defines timings and bounds for the preview engine.
type EngineConfig struct {
	OpenDebounce         time.Duration
	QuietPeriod          time.Duration
	RefreshDelay         time.Duration
	ReloadDelay          time.Duration
	FailureGrace         time.Duration
	HistoryMax           int
	ConversationMaxLines int
}

// NormalizeEngineConfig applies defaults to unset fields.
func NormalizeEngineConfig(cfg EngineConfig) EngineConfig {
	if cfg.OpenDebounce <= 0 {
		cfg.OpenDebounce = DefaultOpenDebounce
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	if cfg.RefreshDelay <= 0 {
		cfg.RefreshDelay = DefaultRefreshDelay
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = DefaultReloadDelay
	}
	if cfg.FailureGrace <= 0 {
		cfg.FailureGrace = DefaultFailureGrace
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = DefaultHistoryMax
	}
	if cfg.ConversationMaxLines <= 0 {
		cfg.ConversationMaxLines = DefaultConversationMaxLines
	}
	return cfg
}

// ValidateProjectID ensures a project id matches [a-z0-9._-] with no
// normalization.
func ValidateProjectID(project ProjectID) error {
	raw := string(project)
	if raw == "" {
		return ErrInvalidProject
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidProject
	}
	return nil
}
