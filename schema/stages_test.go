package schema

import "testing"

func TestStageForPhase(t *testing.T) {
	cases := []struct {
		phase Phase
		stage Stage
		ok    bool
	}{
		{phase: "generate", stage: StageGeneratingBackend, ok: true},
		{phase: "building_image", stage: StageBuildingImage, ok: true},
		{phase: "deploy", stage: StageDeployingContainer, ok: true},
		{phase: "health", stage: StageWaitingForHealth, ok: true},
		{phase: "backend_ready", stage: StageBackendReady, ok: true},
		{phase: "frontend", stage: StagePreparingFrontend, ok: true},
		{phase: "ready", stage: StageReady, ok: true},
		{phase: "warming_up_flux_capacitor", ok: false},
		{phase: "", ok: false},
	}
	for _, tc := range cases {
		stage, ok := StageForPhase(tc.phase)
		if ok != tc.ok {
			t.Fatalf("phase %q: expected ok=%v, got %v", tc.phase, tc.ok, ok)
		}
		if ok && stage != tc.stage {
			t.Fatalf("phase %q: expected stage %q, got %q", tc.phase, tc.stage, stage)
		}
	}
}

func TestStageOrderIsMonotonic(t *testing.T) {
	pipeline := []Stage{
		StagePending,
		StageGeneratingBackend,
		StageBuildingImage,
		StageDeployingContainer,
		StageWaitingForHealth,
		StageBackendReady,
		StagePreparingFrontend,
		StageReady,
	}
	last := -1
	lastPercent := -1
	for _, stage := range pipeline {
		order := StageOrder(stage)
		if order <= last {
			t.Fatalf("stage %q order %d not after %d", stage, order, last)
		}
		percent := StagePercent(stage)
		if percent <= lastPercent {
			t.Fatalf("stage %q percent %d not after %d", stage, percent, lastPercent)
		}
		last = order
		lastPercent = percent
	}
	if StagePercent(StageReady) != 100 {
		t.Fatalf("READY must render 100%%")
	}
	if StageOrder(StageFailed) != -1 {
		t.Fatalf("FAILED has no pipeline order")
	}
}

func TestNormalizeEngineConfigDefaults(t *testing.T) {
	cfg := NormalizeEngineConfig(EngineConfig{})
	if cfg.OpenDebounce != DefaultOpenDebounce {
		t.Fatalf("expected default open debounce, got %v", cfg.OpenDebounce)
	}
	if cfg.QuietPeriod != DefaultQuietPeriod {
		t.Fatalf("expected default quiet period, got %v", cfg.QuietPeriod)
	}
	if cfg.HistoryMax != DefaultHistoryMax {
		t.Fatalf("expected default history max, got %d", cfg.HistoryMax)
	}
}

func TestValidateProjectID(t *testing.T) {
	if err := ValidateProjectID("todo-app_2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []ProjectID{"", "Has Caps", "spaces here", "semi;colon"} {
		if err := ValidateProjectID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
