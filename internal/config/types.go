package config

import "time"

// Config represents the complete console configuration
type Config struct {
	Backend       BackendConfig      `yaml:"backend"`
	Polling       PollingConfig      `yaml:"polling"`
	Alerts        AlertConfig        `yaml:"alerts"`
	Notifications NotificationConfig `yaml:"notifications"`
	Session       SessionConfig      `yaml:"session"`
	Users         UsersConfig        `yaml:"users"`
	Server        ServerConfig       `yaml:"server"`
	Probe         ProbeConfig        `yaml:"probe"`
}

// BackendConfig points at the attendance REST backend
type BackendConfig struct {
	BaseURL        string            `yaml:"base_url"`
	ModulesBaseURL string            `yaml:"modules_base_url,omitempty"`
	Timeout        time.Duration     `yaml:"timeout"`
	Headers        map[string]string `yaml:"headers,omitempty"`
}

// PollingConfig controls periodic refresh
type PollingConfig struct {
	DevicesInterval time.Duration `yaml:"devices_interval"`
	BackoffMax      time.Duration `yaml:"backoff_max,omitempty"`
}

// AlertConfig controls locally derived alerts
type AlertConfig struct {
	OfflineAfter    time.Duration `yaml:"offline_after"`
	OfflineSeverity string        `yaml:"offline_severity"`
}

// NotificationConfig controls transient notifications
type NotificationConfig struct {
	Display time.Duration `yaml:"display"`
}

// SessionConfig describes the operator session the console runs under
type SessionConfig struct {
	Email        string `yaml:"email"`
	Role         string `yaml:"role"`
	RequiredRole string `yaml:"required_role"`
	LoginURL     string `yaml:"login_url"`
}

// UsersConfig controls staff account management
type UsersConfig struct {
	DefaultPassword string `yaml:"default_password"`
}

// ServerConfig controls the console HTTP listener
type ServerConfig struct {
	Port string `yaml:"port"`
}

// ProbeConfig enables gNMI reachability probing for device pings
type ProbeConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Port        int           `yaml:"port"`
	Username    string        `yaml:"username,omitempty"`
	PasswordEnv string        `yaml:"password_env,omitempty"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	TLS         TLSConfig     `yaml:"tls,omitempty"`
}

// TLSConfig holds probe TLS settings
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
	ServerName         string `yaml:"server_name,omitempty"`
	CAFile             string `yaml:"ca_file,omitempty"`
	CertFile           string `yaml:"cert_file,omitempty"`
	KeyFile            string `yaml:"key_file,omitempty"`
}
