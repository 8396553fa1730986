// Package config loads orbit's configuration.
//
// # Configuration Discovery
//
// Load resolves settings in this order, later sources winning:
//
//  1. Built-in defaults (see Default)
//  2. The TOML file at the given path, or ~/.config/orbit/config.toml
//  3. ORBIT_* environment variables, optionally read from ./.env
//
// A missing config file is NOT an error; orbit runs against the default
// addresses out of the box.
//
// # TOML Format
//
//	primary_url = "http://localhost:5000"
//	fallback_url = "https://orbit-backend-new.onrender.com"
//	api_token = ""
//	request_timeout = "8s"
//	probe_timeout = "5s"
//	probe_interval = "30s"
//	refresh_interval = "30s"
//	recovery_threshold = "1m"
//	wake_delay = "3s"
//	rollback_on_failure = false
//	developer_mode = false
//	session_path = "~/.config/orbit/session.toml"
//	log_level = "info"
//	log_file = "~/.local/state/orbit/orbit.log"
//	metrics_addr = ""
//
// Durations use Go duration syntax. Paths get tilde expansion.
//
// # Developer Mode
//
// Developer mode makes every backend operation return synthetic data. It can
// be switched on at build time (BuildDeveloperMode via -ldflags), in the
// config file, with ORBIT_DEV_MODE, or per machine through the session store
// (see package prefs). Any one source enabling it is enough, except that
// ORBIT_DEV_MODE=false overrides the file.
//
// # Validation
//
// The primary and fallback addresses must both be set and must differ;
// every duration must be positive.
package config
