package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("expected config_version %d, got %d", CurrentConfigVersion, cfg.ConfigVersion)
	}
	if cfg.Backend.BaseURL == "" {
		t.Fatalf("expected default backend.base_url")
	}
	if cfg.Preview.Mode != "log" {
		t.Fatalf("expected default preview.mode log, got %q", cfg.Preview.Mode)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
backend:
  base_url: http://127.0.0.1:8799
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsMissingConfigVersion(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://127.0.0.1:8799
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedPreviewMode(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
preview:
  mode: vr
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported preview.mode") {
		t.Fatalf("expected preview.mode error, got %v", err)
	}
}

func TestLoadRejectsInvalidBackendBaseURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
backend:
  base_url: example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "backend.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
}

func TestLoadExpandsEnvInMirrorDir(t *testing.T) {
	t.Setenv("FORGEVIEW_TEST_DIR", "/tmp/fv-mirror")
	path := writeConfig(t, `
config_version: 1
mirror:
  enabled: true
  dir: $FORGEVIEW_TEST_DIR/out
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mirror.Dir != "/tmp/fv-mirror/out" {
		t.Fatalf("expected env expansion, got %q", cfg.Mirror.Dir)
	}
}

func TestEngineSettingsConvertsDurations(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
engine:
  quiet_period_ms: 500
  history_max: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	settings := cfg.EngineSettings()
	if settings.QuietPeriod != 500*time.Millisecond {
		t.Fatalf("expected 500ms quiet period, got %v", settings.QuietPeriod)
	}
	if settings.HistoryMax != 5 {
		t.Fatalf("expected history max 5, got %d", settings.HistoryMax)
	}
	if settings.RefreshDelay <= 0 {
		t.Fatalf("expected defaulted refresh delay, got %v", settings.RefreshDelay)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
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
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
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
