package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/forgeview/schema"
)

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	Backend       BackendConfig `mapstructure:"backend" yaml:"backend"`
	Engine        EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Preview       PreviewConfig `mapstructure:"preview" yaml:"preview"`
	Mirror        MirrorConfig  `mapstructure:"mirror" yaml:"mirror"`
}

// BackendConfig locates the builder backend.
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// EngineConfig controls timings and bounds of the preview engine.
type EngineConfig struct {
	OpenDebounceMS       int `mapstructure:"open_debounce_ms" yaml:"open_debounce_ms"`
	QuietPeriodMS        int `mapstructure:"quiet_period_ms" yaml:"quiet_period_ms"`
	RefreshDelayMS       int `mapstructure:"refresh_delay_ms" yaml:"refresh_delay_ms"`
	ReloadDelayMS        int `mapstructure:"reload_delay_ms" yaml:"reload_delay_ms"`
	FailureGraceMS       int `mapstructure:"failure_grace_ms" yaml:"failure_grace_ms"`
	HistoryMax           int `mapstructure:"history_max" yaml:"history_max"`
	ConversationMaxLines int `mapstructure:"conversation_max_lines" yaml:"conversation_max_lines"`
}

// PreviewConfig selects the preview surface.
type PreviewConfig struct {
	// Mode is "chrome" for a headless browser viewport or "log" for a
	// log-only target.
	Mode     string `mapstructure:"mode" yaml:"mode"`
	Headless bool   `mapstructure:"headless" yaml:"headless"`
}

// MirrorConfig controls the local artifact mirror.
type MirrorConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".forgeview", "config.yaml"), nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Backend: BackendConfig{
			BaseURL:        "http://127.0.0.1:8799",
			TimeoutSeconds: 120,
		},
		Engine: EngineConfig{
			OpenDebounceMS:       int(schema.DefaultOpenDebounce / time.Millisecond),
			QuietPeriodMS:        int(schema.DefaultQuietPeriod / time.Millisecond),
			RefreshDelayMS:       int(schema.DefaultRefreshDelay / time.Millisecond),
			ReloadDelayMS:        int(schema.DefaultReloadDelay / time.Millisecond),
			FailureGraceMS:       int(schema.DefaultFailureGrace / time.Millisecond),
			HistoryMax:           schema.DefaultHistoryMax,
			ConversationMaxLines: schema.DefaultConversationMaxLines,
		},
		Preview: PreviewConfig{
			Mode:     "log",
			Headless: true,
		},
		Mirror: MirrorConfig{
			Enabled: false,
			Dir:     filepath.Join(home, ".forgeview", "mirror"),
		},
	}, nil
}

// EngineSettings converts the config durations into engine settings.
func (c Config) EngineSettings() schema.EngineConfig {
	return schema.NormalizeEngineConfig(schema.EngineConfig{
		OpenDebounce:         time.Duration(c.Engine.OpenDebounceMS) * time.Millisecond,
		QuietPeriod:          time.Duration(c.Engine.QuietPeriodMS) * time.Millisecond,
		RefreshDelay:         time.Duration(c.Engine.RefreshDelayMS) * time.Millisecond,
		ReloadDelay:          time.Duration(c.Engine.ReloadDelayMS) * time.Millisecond,
		FailureGrace:         time.Duration(c.Engine.FailureGraceMS) * time.Millisecond,
		HistoryMax:           c.Engine.HistoryMax,
		ConversationMaxLines: c.Engine.ConversationMaxLines,
	})
}
