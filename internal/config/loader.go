package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/campusattend/console/internal/types"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvAPIBase = "CONSOLE_API_BASE"
	EnvAPIPort = "API_PORT"
)

// LoadConfig loads configuration from a YAML file, applies environment
// overrides and defaults, and validates the result
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := loadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	applyEnv(cfg)
	ApplyDefaults(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadYAML loads a YAML file into a struct
func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func applyEnv(cfg *Config) {
	if base := os.Getenv(EnvAPIBase); base != "" {
		cfg.Backend.BaseURL = base
	}
	if port := os.Getenv(EnvAPIPort); port != "" {
		cfg.Server.Port = port
	}
}

// ApplyDefaults fills unset fields
func ApplyDefaults(cfg *Config) {
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:5000"
	}
	if cfg.Backend.ModulesBaseURL == "" {
		cfg.Backend.ModulesBaseURL = cfg.Backend.BaseURL
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10 * time.Second
	}
	if cfg.Polling.DevicesInterval == 0 {
		cfg.Polling.DevicesInterval = 5 * time.Second
	}
	if cfg.Alerts.OfflineAfter == 0 {
		cfg.Alerts.OfflineAfter = 10 * time.Minute
	}
	if cfg.Alerts.OfflineSeverity == "" {
		cfg.Alerts.OfflineSeverity = string(types.SeverityHigh)
	}
	if cfg.Notifications.Display == 0 {
		cfg.Notifications.Display = 3 * time.Second
	}
	if cfg.Session.RequiredRole == "" {
		cfg.Session.RequiredRole = types.RoleSystemAdmin
	}
	if cfg.Session.LoginURL == "" {
		cfg.Session.LoginURL = "/"
	}
	if cfg.Users.DefaultPassword == "" {
		cfg.Users.DefaultPassword = "password"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8090"
	}
	if cfg.Probe.Port == 0 {
		cfg.Probe.Port = 9339
	}
	if cfg.Probe.DialTimeout == 0 {
		cfg.Probe.DialTimeout = 5 * time.Second
	}
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	for name, raw := range map[string]string{
		"backend.base_url":         cfg.Backend.BaseURL,
		"backend.modules_base_url": cfg.Backend.ModulesBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s: scheme must be http or https, got %q", name, u.Scheme)
		}
	}

	if cfg.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if cfg.Polling.DevicesInterval < 100*time.Millisecond {
		return fmt.Errorf("polling.devices_interval must be at least 100ms")
	}
	if cfg.Polling.BackoffMax != 0 && cfg.Polling.BackoffMax < cfg.Polling.DevicesInterval {
		return fmt.Errorf("polling.backoff_max must not be shorter than polling.devices_interval")
	}
	if cfg.Alerts.OfflineAfter < 0 {
		return fmt.Errorf("alerts.offline_after must not be negative")
	}
	if sev := types.Severity(cfg.Alerts.OfflineSeverity); sev.Rank() == 0 {
		return fmt.Errorf("alerts.offline_severity must be one of critical, high, medium, low")
	}
	if cfg.Notifications.Display <= 0 {
		return fmt.Errorf("notifications.display must be positive")
	}
	if !types.IsRole(cfg.Session.RequiredRole) {
		return fmt.Errorf("session.required_role: unknown role %s", cfg.Session.RequiredRole)
	}
	if cfg.Session.Role != "" && !types.IsRole(cfg.Session.Role) {
		return fmt.Errorf("session.role: unknown role %s", cfg.Session.Role)
	}

	if cfg.Probe.Enabled {
		if cfg.Probe.Port <= 0 || cfg.Probe.Port > 65535 {
			return fmt.Errorf("probe.port must be a valid TCP port")
		}
		if cfg.Probe.TLS.CertFile != "" && cfg.Probe.TLS.KeyFile == "" {
			return fmt.Errorf("probe.tls: cert_file requires key_file")
		}
	}

	return nil
}

// ProbePassword resolves the probe password from the configured env var
func (c *Config) ProbePassword() string {
	if c.Probe.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.Probe.PasswordEnv)
}
