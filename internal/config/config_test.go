package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PrimaryURL != defaultPrimaryURL || cfg.FallbackURL != defaultFallbackURL {
		t.Fatalf("addresses = %q/%q, want defaults", cfg.PrimaryURL, cfg.FallbackURL)
	}
	if cfg.RequestTimeout != defaultRequestTimeout || cfg.ProbeTimeout != defaultProbeTimeout {
		t.Fatalf("timeouts = %v/%v, want defaults", cfg.RequestTimeout, cfg.ProbeTimeout)
	}
	if cfg.ProbeInterval != 30*time.Second || cfg.RecoveryThreshold != time.Minute {
		t.Fatalf("probe interval/recovery = %v/%v, want 30s/1m", cfg.ProbeInterval, cfg.RecoveryThreshold)
	}
	wantSession, err := expandPath(defaultSessionPath)
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	if cfg.SessionPath != wantSession {
		t.Fatalf("SessionPath = %q, want %q", cfg.SessionPath, wantSession)
	}
	if cfg.RollbackOnFailure {
		t.Fatalf("RollbackOnFailure defaulted to true")
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
primary_url = "  http://10.0.0.5:9999  "
fallback_url = "https://backup.example.com"
request_timeout = "12s"
probe_interval = "1m"
rollback_on_failure = true
session_path = "  ~/.orbit/session.toml  "
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PrimaryURL != "http://10.0.0.5:9999" {
		t.Fatalf("PrimaryURL = %q, want trimmed", cfg.PrimaryURL)
	}
	if cfg.FallbackURL != "https://backup.example.com" {
		t.Fatalf("FallbackURL = %q", cfg.FallbackURL)
	}
	if cfg.RequestTimeout != 12*time.Second || cfg.ProbeInterval != time.Minute {
		t.Fatalf("durations = %v/%v, want 12s/1m", cfg.RequestTimeout, cfg.ProbeInterval)
	}
	if cfg.ProbeTimeout != defaultProbeTimeout {
		t.Fatalf("ProbeTimeout = %v, want default", cfg.ProbeTimeout)
	}
	if !cfg.RollbackOnFailure {
		t.Fatalf("RollbackOnFailure = false, want true")
	}
	if !strings.HasPrefix(cfg.SessionPath, home) {
		t.Fatalf("SessionPath = %q, want it under HOME %q", cfg.SessionPath, home)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ORBIT_PRIMARY_URL", "http://env-primary:1")
	t.Setenv("ORBIT_DEV_MODE", "true")
	t.Setenv("ORBIT_PROBE_TIMEOUT", "2s")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`primary_url = "http://file-primary:1"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PrimaryURL != "http://env-primary:1" {
		t.Fatalf("PrimaryURL = %q, want env override", cfg.PrimaryURL)
	}
	if !cfg.DeveloperMode {
		t.Fatalf("DeveloperMode = false, want env override")
	}
	if cfg.ProbeTimeout != 2*time.Second {
		t.Fatalf("ProbeTimeout = %v, want 2s", cfg.ProbeTimeout)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`primary_url = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_InvalidDurationFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`probe_interval = "soon"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "probe_interval") {
		t.Fatalf("Load error = %v, want probe_interval parse error", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() returned error: %v", err)
	}

	same := Default()
	same.FallbackURL = strings.ToUpper(same.PrimaryURL) + "/"
	if err := same.Validate(); err == nil {
		t.Fatalf("Validate accepted identical addresses")
	}

	empty := Default()
	empty.PrimaryURL = " "
	if err := empty.Validate(); err == nil {
		t.Fatalf("Validate accepted empty primary")
	}

	zero := Default()
	zero.RequestTimeout = 0
	if err := zero.Validate(); err == nil || !strings.Contains(err.Error(), "request_timeout") {
		t.Fatalf("Validate error = %v, want request_timeout", err)
	}
}

func TestDefault_BuildDeveloperMode(t *testing.T) {
	prev := BuildDeveloperMode
	t.Cleanup(func() { BuildDeveloperMode = prev })

	BuildDeveloperMode = "true"
	if !Default().DeveloperMode {
		t.Fatalf("DeveloperMode = false with BuildDeveloperMode=true")
	}
	BuildDeveloperMode = "garbage"
	if Default().DeveloperMode {
		t.Fatalf("DeveloperMode = true with unparsable BuildDeveloperMode")
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
