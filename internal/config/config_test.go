package config

import (
	"testing"
	"time"
)

// TestFromEnvDefaults verifies the pipeline defaults used by the billing model.
func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"ADMISSION_COST", "TOP_K_CLIPS", "MAX_ATTEMPTS", "RETRY_BASE_DELAY", "WORKER_ENABLED", "TITLE_LOOKUP_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.AdmissionCost != 10 {
		t.Fatalf("AdmissionCost = %d, want 10", cfg.AdmissionCost)
	}
	if cfg.TopKClips != 10 {
		t.Fatalf("TopKClips = %d, want 10", cfg.TopKClips)
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.RetryBaseDelay != 2*time.Second {
		t.Fatalf("RetryBaseDelay = %v, want 2s", cfg.RetryBaseDelay)
	}
	if cfg.TitleTimeout != 2*time.Second {
		t.Fatalf("TitleTimeout = %v, want 2s", cfg.TitleTimeout)
	}
	if !cfg.WorkerEnabled {
		t.Fatal("worker should be enabled by default")
	}
}

// TestFromEnvOverrides checks parsing and fallback on malformed values.
func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ADMISSION_COST", "25")
	t.Setenv("MAX_ATTEMPTS", "not-a-number")
	t.Setenv("JOB_LEASE", "90s")
	t.Setenv("WORKER_ENABLED", "false")
	t.Setenv("ANALYSIS_URL", "http://analysis:8000/")

	cfg := FromEnv()
	if cfg.AdmissionCost != 25 {
		t.Errorf("AdmissionCost = %d, want 25", cfg.AdmissionCost)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want fallback 3", cfg.MaxAttempts)
	}
	if cfg.JobLease != 90*time.Second {
		t.Errorf("JobLease = %v, want 90s", cfg.JobLease)
	}
	if cfg.WorkerEnabled {
		t.Error("WorkerEnabled should be false")
	}
	if cfg.AnalysisURL != "http://analysis:8000" {
		t.Errorf("AnalysisURL = %q, want trailing slash trimmed", cfg.AnalysisURL)
	}
}
