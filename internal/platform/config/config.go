// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// DefaultBaseURL is the production backend origin.
const DefaultBaseURL = "https://api-for-app.vercel.app"

// Config holds the client configuration.
type Config struct {
	// Mode is the operating mode: prod or dev.
	Mode string `toml:"mode"`

	// API holds backend endpoint and outbound HTTP settings.
	API APIConfig `toml:"api"`

	// Token holds bearer token caching settings.
	Token TokenConfig `toml:"token"`

	// Store selects the persistent key-value driver backing the token cache.
	Store StoreConfig `toml:"store"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig holds settings for requests to the backend.
type APIConfig struct {
	// BaseURL is the backend origin, e.g. "https://api-for-app.vercel.app".
	BaseURL string `toml:"base_url"`

	// TimeoutMS is the overall request timeout in milliseconds
	TimeoutMS int `toml:"timeout_ms"`

	// ConnectTimeoutMS is the connection timeout in milliseconds
	ConnectTimeoutMS int `toml:"connect_timeout_ms"`

	// MaxRedirects is the maximum number of same-host redirects to follow
	MaxRedirects int `toml:"max_redirects"`

	// MaxResponseBytes is the maximum response body size
	MaxResponseBytes int64 `toml:"max_response_bytes"`

	// UserAgent is sent on every request when non-empty.
	UserAgent string `toml:"user_agent"`

	// InsecureSkipVerify disables TLS verification (dev-only)
	InsecureSkipVerify bool `toml:"insecure_skip_verify"`
}

// Timeout returns TimeoutMS as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMS) * time.Millisecond
}

// TokenConfig holds bearer token cache settings.
type TokenConfig struct {
	// TTLMinutes is how long a freshly issued token is trusted. Default: 50.
	TTLMinutes int `toml:"ttl_minutes"`

	// KeyPrefix namespaces cache entries. Default: "marrfa:jwt:".
	KeyPrefix string `toml:"key_prefix"`

	// ForgetOnSignOut deletes the persisted token on sign-out.
	// Pointer for presence detection; nil = use preset default.
	ForgetOnSignOut *bool `toml:"forget_on_sign_out"`

	// SealKey, when set, encrypts cached tokens at rest.
	SealKey string `toml:"seal_key"`
}

// TTL returns TTLMinutes as a duration.
func (t TokenConfig) TTL() time.Duration {
	return time.Duration(t.TTLMinutes) * time.Minute
}

// StoreConfig holds persistent store settings.
type StoreConfig struct {
	// Driver is the store driver name: sqlite, json, redis, memory.
	Driver string `toml:"driver"`

	// DataDir is the directory for file-backed drivers.
	DataDir string `toml:"data_dir"`

	// Drivers holds per-driver configuration.
	// Example: [store.drivers.redis] address = "127.0.0.1:6379"
	Drivers map[string]map[string]any `toml:"drivers"`
}

// DriverOptions returns a copy of the raw config map for the named driver, or nil.
func (s StoreConfig) DriverOptions(name string) map[string]any {
	raw, ok := s.Drivers[name]
	if !ok {
		return nil
	}
	result := make(map[string]any, len(raw))
	for k, v := range raw {
		result[k] = v
	}
	return result
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info in prod mode, debug in dev mode.
	Level string `toml:"level"`

	// AllowSensitive permits logging of full bearer tokens.
	// Default: false. Use only for debugging.
	AllowSensitive bool `toml:"allow_sensitive"`
}

// ForgetTokenOnSignOut returns whether sign-out deletes the cached token.
// Safe for nil pointer on the *bool field.
func (c *Config) ForgetTokenOnSignOut() bool {
	return c.Token.ForgetOnSignOut != nil && *c.Token.ForgetOnSignOut
}

// Redacted returns a string representation of the config with secrets redacted.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  Mode: %q,\n", c.Mode))
	sb.WriteString("  API: {\n")
	sb.WriteString(fmt.Sprintf("    BaseURL: %q,\n", c.API.BaseURL))
	sb.WriteString(fmt.Sprintf("    TimeoutMS: %d,\n", c.API.TimeoutMS))
	sb.WriteString(fmt.Sprintf("    MaxRedirects: %d,\n", c.API.MaxRedirects))
	sb.WriteString(fmt.Sprintf("    MaxResponseBytes: %d,\n", c.API.MaxResponseBytes))
	sb.WriteString(fmt.Sprintf("    InsecureSkipVerify: %v,\n", c.API.InsecureSkipVerify))
	sb.WriteString("  },\n")
	sb.WriteString("  Token: {\n")
	sb.WriteString(fmt.Sprintf("    TTLMinutes: %d,\n", c.Token.TTLMinutes))
	sb.WriteString(fmt.Sprintf("    KeyPrefix: %q,\n", c.Token.KeyPrefix))
	sb.WriteString(fmt.Sprintf("    ForgetOnSignOut: %v,\n", c.ForgetTokenOnSignOut()))
	if c.Token.SealKey != "" {
		sb.WriteString("    SealKey: [REDACTED],\n")
	}
	sb.WriteString("  },\n")
	sb.WriteString("  Store: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Store.Driver))
	sb.WriteString(fmt.Sprintf("    DataDir: %q,\n", c.Store.DataDir))
	sb.WriteString(fmt.Sprintf("    DriversCount: %d,\n", len(c.Store.Drivers)))
	sb.WriteString("  },\n")
	sb.WriteString("  Logging: {\n")
	sb.WriteString(fmt.Sprintf("    Level: %q,\n", c.Logging.Level))
	sb.WriteString(fmt.Sprintf("    AllowSensitive: %v,\n", c.Logging.AllowSensitive))
	sb.WriteString("  },\n")
	sb.WriteString("}")
	return sb.String()
}
