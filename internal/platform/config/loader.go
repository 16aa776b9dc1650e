// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Mode represents the client operating mode.
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MARRFA_"

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "":
		return ModeProd, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of prod, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// EnvFile is a dotenv file whose values fill in unset MARRFA_* variables (optional).
	// A missing file is ignored.
	EnvFile string

	// LookupEnv reads environment variables. Nil uses os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	APIBaseURL            *string
	APITimeoutMS          *string
	TokenTTLMinutes       *string
	StoreDriver           *string
	StoreDataDir          *string
	LoggingLevel          *string
	LoggingAllowSensitive *string // "true", "false", or "" (unset)
}

// fileConfig mirrors Config but with pointer fields to detect presence.
type fileConfig struct {
	Mode    string         `toml:"mode"`
	API     *apiConfig     `toml:"api"`
	Token   *tokenConfig   `toml:"token"`
	Store   *storeConfig   `toml:"store"`
	Logging *loggingConfig `toml:"logging"`
}

type apiConfig struct {
	BaseURL            string `toml:"base_url"`
	TimeoutMS          int    `toml:"timeout_ms"`
	ConnectTimeoutMS   int    `toml:"connect_timeout_ms"`
	MaxRedirects       *int   `toml:"max_redirects"`
	MaxResponseBytes   int64  `toml:"max_response_bytes"`
	UserAgent          string `toml:"user_agent"`
	InsecureSkipVerify *bool  `toml:"insecure_skip_verify"`
}

type tokenConfig struct {
	TTLMinutes      int    `toml:"ttl_minutes"`
	KeyPrefix       string `toml:"key_prefix"`
	ForgetOnSignOut *bool  `toml:"forget_on_sign_out"`
	SealKey         string `toml:"seal_key"`
}

type storeConfig struct {
	Driver  string                    `toml:"driver"`
	DataDir string                    `toml:"data_dir"`
	Drivers map[string]map[string]any `toml:"drivers"`
}

type loggingConfig struct {
	Level          string `toml:"level"`
	AllowSensitive *bool  `toml:"allow_sensitive"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > MARRFA_MODE > mode in config file > default (prod)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay MARRFA_* environment variables (process env wins over EnvFile)
//  5. Overlay CLI flags
//  6. Validate
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error. Unknown TOML keys produce a warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	// Step 1: Load TOML file if provided
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	env, err := newEnvLookup(opts)
	if err != nil {
		return nil, err
	}

	// Step 2: Determine effective mode
	modeStr := "prod"
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if v, ok := env("MODE"); ok && v != "" {
		modeStr = v
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	// Step 3: Start from mode preset
	cfg := presetForMode(mode)

	// Step 4: Overlay TOML values
	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	// Step 5: Overlay environment
	if err := overlayEnv(cfg, env); err != nil {
		return nil, err
	}

	// Step 6: Overlay CLI flags
	if err := overlayFlags(cfg, opts.FlagOverrides); err != nil {
		return nil, err
	}

	// Step 7: Validate
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func ptrBool(b bool) *bool { return &b }

// presetForMode returns the preset config for the given mode.
func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return ProdConfig()
}

// ProdConfig returns the production preset.
func ProdConfig() *Config {
	return &Config{
		Mode: string(ModeProd),
		API: APIConfig{
			BaseURL:          DefaultBaseURL,
			TimeoutMS:        15000,
			ConnectTimeoutMS: 5000,
			MaxRedirects:     1,
			MaxResponseBytes: 1 << 20,
			UserAgent:        "marrfa-go",
		},
		Token: TokenConfig{
			TTLMinutes:      50,
			KeyPrefix:       "marrfa:jwt:",
			ForgetOnSignOut: ptrBool(true),
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: ".marrfa",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DevConfig returns the development preset: JSON store, debug logs,
// and tokens kept across sign-outs.
func DevConfig() *Config {
	cfg := ProdConfig()
	cfg.Mode = string(ModeDev)
	cfg.Store.Driver = "json"
	cfg.Token.ForgetOnSignOut = ptrBool(false)
	cfg.Logging.Level = "debug"
	return cfg
}

// overlayFileConfig applies present TOML values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.API != nil {
		if fc.API.BaseURL != "" {
			cfg.API.BaseURL = fc.API.BaseURL
		}
		if fc.API.TimeoutMS > 0 {
			cfg.API.TimeoutMS = fc.API.TimeoutMS
		}
		if fc.API.ConnectTimeoutMS > 0 {
			cfg.API.ConnectTimeoutMS = fc.API.ConnectTimeoutMS
		}
		if fc.API.MaxRedirects != nil {
			cfg.API.MaxRedirects = *fc.API.MaxRedirects
		}
		if fc.API.MaxResponseBytes > 0 {
			cfg.API.MaxResponseBytes = fc.API.MaxResponseBytes
		}
		if fc.API.UserAgent != "" {
			cfg.API.UserAgent = fc.API.UserAgent
		}
		if fc.API.InsecureSkipVerify != nil {
			cfg.API.InsecureSkipVerify = *fc.API.InsecureSkipVerify
		}
	}

	if fc.Token != nil {
		if fc.Token.TTLMinutes > 0 {
			cfg.Token.TTLMinutes = fc.Token.TTLMinutes
		}
		if fc.Token.KeyPrefix != "" {
			cfg.Token.KeyPrefix = fc.Token.KeyPrefix
		}
		if fc.Token.ForgetOnSignOut != nil {
			cfg.Token.ForgetOnSignOut = fc.Token.ForgetOnSignOut
		}
		if fc.Token.SealKey != "" {
			cfg.Token.SealKey = fc.Token.SealKey
		}
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
		if fc.Store.Drivers != nil {
			cfg.Store.Drivers = fc.Store.Drivers
		}
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.Logging.Level = fc.Logging.Level
		}
		if fc.Logging.AllowSensitive != nil {
			cfg.Logging.AllowSensitive = *fc.Logging.AllowSensitive
		}
	}
}

// envLookup resolves a MARRFA_-relative variable name.
type envLookup func(name string) (string, bool)

// newEnvLookup layers the process environment over an optional dotenv file.
func newEnvLookup(opts LoaderOptions) (envLookup, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var fileVars map[string]string
	if opts.EnvFile != "" {
		vars, err := godotenv.Read(opts.EnvFile)
		switch {
		case err == nil:
			fileVars = vars
		case os.IsNotExist(err):
			// optional
		default:
			return nil, fmt.Errorf("failed to read env file %s: %w", opts.EnvFile, err)
		}
	}

	return func(name string) (string, bool) {
		key := EnvPrefix + name
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}, nil
}

// overlayEnv applies MARRFA_* variables onto cfg.
func overlayEnv(cfg *Config, env envLookup) error {
	if v, ok := env("API_BASE_URL"); ok && v != "" {
		cfg.API.BaseURL = v
	}
	if v, ok := env("API_TIMEOUT_MS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sAPI_TIMEOUT_MS %q: %w", EnvPrefix, v, err)
		}
		cfg.API.TimeoutMS = n
	}
	if v, ok := env("TOKEN_TTL_MINUTES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sTOKEN_TTL_MINUTES %q: %w", EnvPrefix, v, err)
		}
		cfg.Token.TTLMinutes = n
	}
	if v, ok := env("TOKEN_SEAL_KEY"); ok && v != "" {
		cfg.Token.SealKey = v
	}
	if v, ok := env("STORE_DRIVER"); ok && v != "" {
		cfg.Store.Driver = v
	}
	if v, ok := env("STORE_DATA_DIR"); ok && v != "" {
		cfg.Store.DataDir = v
	}
	if v, ok := env("LOGGING_LEVEL"); ok && v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) error {
	if f.APIBaseURL != nil && *f.APIBaseURL != "" {
		cfg.API.BaseURL = *f.APIBaseURL
	}
	if f.APITimeoutMS != nil && *f.APITimeoutMS != "" {
		n, err := strconv.Atoi(*f.APITimeoutMS)
		if err != nil {
			return fmt.Errorf("invalid --api-timeout-ms %q: %w", *f.APITimeoutMS, err)
		}
		cfg.API.TimeoutMS = n
	}
	if f.TokenTTLMinutes != nil && *f.TokenTTLMinutes != "" {
		n, err := strconv.Atoi(*f.TokenTTLMinutes)
		if err != nil {
			return fmt.Errorf("invalid --token-ttl-minutes %q: %w", *f.TokenTTLMinutes, err)
		}
		cfg.Token.TTLMinutes = n
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.StoreDataDir != nil && *f.StoreDataDir != "" {
		cfg.Store.DataDir = *f.StoreDataDir
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if f.LoggingAllowSensitive != nil && *f.LoggingAllowSensitive != "" {
		// Parse "true" or "false" string (only apply when explicitly set)
		cfg.Logging.AllowSensitive = *f.LoggingAllowSensitive == "true"
	}
	return nil
}

// validate checks enum fields, ranges and the base URL.
func validate(cfg *Config) error {
	switch cfg.Store.Driver {
	case "sqlite", "json", "redis", "memory":
		// valid
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of sqlite, json, redis, memory", cfg.Store.Driver)
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	if cfg.API.TimeoutMS <= 0 {
		return fmt.Errorf("invalid api.timeout_ms %d: must be positive", cfg.API.TimeoutMS)
	}
	if cfg.Token.TTLMinutes <= 0 {
		return fmt.Errorf("invalid token.ttl_minutes %d: must be positive", cfg.Token.TTLMinutes)
	}
	if cfg.API.MaxRedirects < 0 {
		return fmt.Errorf("invalid api.max_redirects %d: must not be negative", cfg.API.MaxRedirects)
	}

	return validateBaseURL(cfg.API.BaseURL)
}

// validateBaseURL requires an absolute http(s) origin with no query or fragment.
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid api.base_url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api.base_url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q: host is required", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid api.base_url %q: query and fragment are not allowed", raw)
	}
	return nil
}
