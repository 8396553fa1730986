package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
)

// BuildDeveloperMode is set at link time (-X .../config.BuildDeveloperMode=true)
// to produce binaries that never touch a backend.
var BuildDeveloperMode = "false"

// Config captures everything orbit needs to reach and monitor the backend.
type Config struct {
	PrimaryURL        string
	FallbackURL       string
	APIToken          string
	RequestTimeout    time.Duration
	ProbeTimeout      time.Duration
	ProbeInterval     time.Duration
	RefreshInterval   time.Duration
	RecoveryThreshold time.Duration
	WakeDelay         time.Duration
	RollbackOnFailure bool
	DeveloperMode     bool
	SessionPath       string
	LogLevel          string
	LogFile           string
	MetricsAddr       string
}

const (
	defaultConfigPath        = "~/.config/orbit/config.toml"
	defaultEnvFile           = ".env"
	defaultPrimaryURL        = "http://localhost:5000"
	defaultFallbackURL       = "https://orbit-backend-new.onrender.com"
	defaultRequestTimeout    = 8 * time.Second
	defaultProbeTimeout      = 5 * time.Second
	defaultProbeInterval     = 30 * time.Second
	defaultRefreshInterval   = 30 * time.Second
	defaultRecoveryThreshold = time.Minute
	defaultWakeDelay         = 3 * time.Second
	defaultSessionPath       = "~/.config/orbit/session.toml"
	defaultLogLevel          = "info"
	defaultLogFile           = "~/.local/state/orbit/orbit.log"
)

type fileConfig struct {
	PrimaryURL        string `toml:"primary_url"`
	FallbackURL       string `toml:"fallback_url"`
	APIToken          string `toml:"api_token"`
	RequestTimeout    string `toml:"request_timeout"`
	ProbeTimeout      string `toml:"probe_timeout"`
	ProbeInterval     string `toml:"probe_interval"`
	RefreshInterval   string `toml:"refresh_interval"`
	RecoveryThreshold string `toml:"recovery_threshold"`
	WakeDelay         string `toml:"wake_delay"`
	RollbackOnFailure bool   `toml:"rollback_on_failure"`
	DeveloperMode     bool   `toml:"developer_mode"`
	SessionPath       string `toml:"session_path"`
	LogLevel          string `toml:"log_level"`
	LogFile           string `toml:"log_file"`
	MetricsAddr       string `toml:"metrics_addr"`
}

// envOverrides are read from ORBIT_* variables after the file is parsed.
// Pointer fields distinguish "unset" from zero values.
type envOverrides struct {
	PrimaryURL        string         `envconfig:"PRIMARY_URL"`
	FallbackURL       string         `envconfig:"FALLBACK_URL"`
	APIToken          string         `envconfig:"API_TOKEN"`
	RequestTimeout    *time.Duration `envconfig:"REQUEST_TIMEOUT"`
	ProbeTimeout      *time.Duration `envconfig:"PROBE_TIMEOUT"`
	ProbeInterval     *time.Duration `envconfig:"PROBE_INTERVAL"`
	RefreshInterval   *time.Duration `envconfig:"REFRESH_INTERVAL"`
	RollbackOnFailure *bool          `envconfig:"ROLLBACK_ON_FAILURE"`
	DeveloperMode     *bool          `envconfig:"DEV_MODE"`
	SessionPath       string         `envconfig:"SESSION_PATH"`
	LogLevel          string         `envconfig:"LOG_LEVEL"`
	LogFile           string         `envconfig:"LOG_FILE"`
	MetricsAddr       string         `envconfig:"METRICS_ADDR"`
}

// Default returns the configuration used when no file or environment
// overrides exist.
func Default() Config {
	buildDev, _ := strconv.ParseBool(strings.TrimSpace(BuildDeveloperMode))
	return Config{
		PrimaryURL:        defaultPrimaryURL,
		FallbackURL:       defaultFallbackURL,
		RequestTimeout:    defaultRequestTimeout,
		ProbeTimeout:      defaultProbeTimeout,
		ProbeInterval:     defaultProbeInterval,
		RefreshInterval:   defaultRefreshInterval,
		RecoveryThreshold: defaultRecoveryThreshold,
		WakeDelay:         defaultWakeDelay,
		DeveloperMode:     buildDev,
		SessionPath:       mustExpand(defaultSessionPath),
		LogLevel:          defaultLogLevel,
		LogFile:           mustExpand(defaultLogFile),
	}
}

// Load locates and parses the orbit config, falling back to defaults when
// missing, then applies ORBIT_* environment overrides (optionally read from
// a .env file in the working directory).
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		if err := cfg.applyFile(file); err != nil {
			return Config{}, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	if err := cfg.applyEnv(defaultEnvFile); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(r io.Reader) error {
	bytes, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.PrimaryURL, raw.PrimaryURL)
	setString(&c.FallbackURL, raw.FallbackURL)
	setString(&c.APIToken, raw.APIToken)
	setString(&c.LogLevel, raw.LogLevel)
	setString(&c.MetricsAddr, raw.MetricsAddr)
	if v := strings.TrimSpace(raw.SessionPath); v != "" {
		c.SessionPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		c.LogFile = mustExpand(v)
	}

	durations := []struct {
		key   string
		value string
		dest  *time.Duration
	}{
		{"request_timeout", raw.RequestTimeout, &c.RequestTimeout},
		{"probe_timeout", raw.ProbeTimeout, &c.ProbeTimeout},
		{"probe_interval", raw.ProbeInterval, &c.ProbeInterval},
		{"refresh_interval", raw.RefreshInterval, &c.RefreshInterval},
		{"recovery_threshold", raw.RecoveryThreshold, &c.RecoveryThreshold},
		{"wake_delay", raw.WakeDelay, &c.WakeDelay},
	}
	for _, d := range durations {
		trimmed := strings.TrimSpace(d.value)
		if trimmed == "" {
			continue
		}
		parsed, err := time.ParseDuration(trimmed)
		if err != nil {
			return fmt.Errorf("parse config: %s: %w", d.key, err)
		}
		*d.dest = parsed
	}

	c.RollbackOnFailure = raw.RollbackOnFailure
	c.DeveloperMode = c.DeveloperMode || raw.DeveloperMode
	return nil
}

func (c *Config) applyEnv(envFile string) error {
	// A missing .env file is normal.
	_ = godotenv.Load(envFile)

	var env envOverrides
	if err := envconfig.Process("orbit", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	setString(&c.PrimaryURL, env.PrimaryURL)
	setString(&c.FallbackURL, env.FallbackURL)
	setString(&c.APIToken, env.APIToken)
	setString(&c.LogLevel, env.LogLevel)
	setString(&c.MetricsAddr, env.MetricsAddr)
	if v := strings.TrimSpace(env.SessionPath); v != "" {
		c.SessionPath = mustExpand(v)
	}
	if v := strings.TrimSpace(env.LogFile); v != "" {
		c.LogFile = mustExpand(v)
	}
	if env.RequestTimeout != nil {
		c.RequestTimeout = *env.RequestTimeout
	}
	if env.ProbeTimeout != nil {
		c.ProbeTimeout = *env.ProbeTimeout
	}
	if env.ProbeInterval != nil {
		c.ProbeInterval = *env.ProbeInterval
	}
	if env.RefreshInterval != nil {
		c.RefreshInterval = *env.RefreshInterval
	}
	if env.RollbackOnFailure != nil {
		c.RollbackOnFailure = *env.RollbackOnFailure
	}
	if env.DeveloperMode != nil {
		c.DeveloperMode = *env.DeveloperMode
	}
	return nil
}

// Validate rejects configurations the resilience layer cannot honor.
func (c Config) Validate() error {
	primary := normalizeAddress(c.PrimaryURL)
	fallback := normalizeAddress(c.FallbackURL)
	if primary == "" {
		return fmt.Errorf("config: primary_url is required")
	}
	if fallback == "" {
		return fmt.Errorf("config: fallback_url is required")
	}
	if primary == fallback {
		return fmt.Errorf("config: fallback_url must differ from primary_url (%s)", c.PrimaryURL)
	}
	checks := []struct {
		key   string
		value time.Duration
	}{
		{"request_timeout", c.RequestTimeout},
		{"probe_timeout", c.ProbeTimeout},
		{"probe_interval", c.ProbeInterval},
		{"refresh_interval", c.RefreshInterval},
		{"recovery_threshold", c.RecoveryThreshold},
		{"wake_delay", c.WakeDelay},
	}
	for _, check := range checks {
		if check.value <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", check.key, check.value)
		}
	}
	return nil
}

func setString(dest *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dest = v
	}
}

func normalizeAddress(addr string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(addr)), "/")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
