package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func noEnv(string) (string, bool) { return "", false }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"prod", "prod", ModeProd, false},
		{"dev", "dev", ModeDev, false},
		{"empty defaults to prod", "", ModeProd, false},
		{"uppercase", "PROD", ModeProd, false},
		{"whitespace", "  dev  ", ModeDev, false},
		{"invalid", "strict", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(LoaderOptions{LookupEnv: noEnv})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "prod" {
		t.Errorf("expected mode prod, got %s", cfg.Mode)
	}
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("expected base url %s, got %s", DefaultBaseURL, cfg.API.BaseURL)
	}
	if cfg.API.TimeoutMS != 15000 {
		t.Errorf("expected 15000ms timeout, got %d", cfg.API.TimeoutMS)
	}
	if cfg.Token.TTLMinutes != 50 {
		t.Errorf("expected 50 minute token ttl, got %d", cfg.Token.TTLMinutes)
	}
	if cfg.Token.KeyPrefix != "marrfa:jwt:" {
		t.Errorf("expected marrfa:jwt: key prefix, got %q", cfg.Token.KeyPrefix)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected sqlite store, got %s", cfg.Store.Driver)
	}
	if !cfg.ForgetTokenOnSignOut() {
		t.Error("expected prod preset to forget tokens on sign-out")
	}
}

func TestLoad_DevPreset(t *testing.T) {
	cfg, err := Load(LoaderOptions{ModeFlag: "dev", LookupEnv: noEnv})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != "json" {
		t.Errorf("expected json store in dev, got %s", cfg.Store.Driver)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug logging in dev, got %s", cfg.Logging.Level)
	}
	if cfg.ForgetTokenOnSignOut() {
		t.Error("expected dev preset to keep tokens on sign-out")
	}
}

func TestLoad_TOMLOverlay(t *testing.T) {
	path := writeFile(t, "config.toml", `
mode = "dev"

[api]
base_url = "http://localhost:8080"
timeout_ms = 2000
max_redirects = 0

[token]
ttl_minutes = 5
forget_on_sign_out = true

[store]
driver = "redis"

[store.drivers.redis]
address = "127.0.0.1:6379"
`)

	cfg, err := Load(LoaderOptions{ConfigPath: path, LookupEnv: noEnv})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "dev" {
		t.Errorf("expected mode dev, got %s", cfg.Mode)
	}
	if cfg.API.BaseURL != "http://localhost:8080" {
		t.Errorf("unexpected base url %s", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutMS != 2000 {
		t.Errorf("expected 2000ms, got %d", cfg.API.TimeoutMS)
	}
	if cfg.API.MaxRedirects != 0 {
		t.Errorf("expected explicit zero redirects to be kept, got %d", cfg.API.MaxRedirects)
	}
	if cfg.Token.TTL().Minutes() != 5 {
		t.Errorf("expected 5 minute ttl, got %v", cfg.Token.TTL())
	}
	if !cfg.ForgetTokenOnSignOut() {
		t.Error("expected file to override dev forget_on_sign_out")
	}
	if cfg.Store.Driver != "redis" {
		t.Errorf("expected redis store, got %s", cfg.Store.Driver)
	}
	opts := cfg.Store.DriverOptions("redis")
	if opts["address"] != "127.0.0.1:6379" {
		t.Errorf("expected redis address, got %v", opts["address"])
	}
	if cfg.Store.DriverOptions("sqlite") != nil {
		t.Error("expected nil options for unconfigured driver")
	}
}

func TestLoad_UndecodedKeysWarn(t *testing.T) {
	path := writeFile(t, "config.toml", `
[api]
base_url = "https://example.com"
unknown_field = 1
`)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	if _, err := Load(LoaderOptions{ConfigPath: path, LookupEnv: noEnv, Logger: logger}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.Contains(buf.String(), "api.unknown_field") {
		t.Errorf("expected warning naming api.unknown_field, got %q", buf.String())
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.toml"), LookupEnv: noEnv})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.toml", `
[api]
base_url = "https://file.example.com"
`)
	env := map[string]string{
		"MARRFA_API_BASE_URL":      "https://env.example.com",
		"MARRFA_TOKEN_TTL_MINUTES": "10",
		"MARRFA_MODE":              "dev",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := Load(LoaderOptions{ConfigPath: path, LookupEnv: lookup})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "https://env.example.com" {
		t.Errorf("expected env base url, got %s", cfg.API.BaseURL)
	}
	if cfg.Token.TTLMinutes != 10 {
		t.Errorf("expected env ttl 10, got %d", cfg.Token.TTLMinutes)
	}
	if cfg.Mode != "dev" {
		t.Errorf("expected env mode dev, got %s", cfg.Mode)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "MARRFA_STORE_DRIVER=memory\nMARRFA_LOGGING_LEVEL=warn\n")
	lookup := func(k string) (string, bool) {
		if k == "MARRFA_LOGGING_LEVEL" {
			return "error", true
		}
		return "", false
	}

	cfg, err := Load(LoaderOptions{EnvFile: envFile, LookupEnv: lookup})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected memory driver from env file, got %s", cfg.Store.Driver)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected process env to win over env file, got %s", cfg.Logging.Level)
	}

	if _, err := Load(LoaderOptions{EnvFile: filepath.Join(t.TempDir(), "absent.env"), LookupEnv: noEnv}); err != nil {
		t.Errorf("expected missing env file to be ignored, got %v", err)
	}
}

func TestLoad_FlagsWin(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "MARRFA_STORE_DRIVER" {
			return "json", true
		}
		return "", false
	}
	driver := "memory"
	sensitive := "true"
	timeout := "500"

	cfg, err := Load(LoaderOptions{
		LookupEnv: lookup,
		FlagOverrides: FlagOverrides{
			StoreDriver:           &driver,
			LoggingAllowSensitive: &sensitive,
			APITimeoutMS:          &timeout,
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected flag driver memory, got %s", cfg.Store.Driver)
	}
	if !cfg.Logging.AllowSensitive {
		t.Error("expected allow_sensitive from flag")
	}
	if cfg.API.Timeout().Milliseconds() != 500 {
		t.Errorf("expected 500ms timeout, got %v", cfg.API.Timeout())
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{"bad driver", "[store]\ndriver = \"mongo\"\n", "store.driver"},
		{"bad level", "[logging]\nlevel = \"verbose\"\n", "logging.level"},
		{"bad scheme", "[api]\nbase_url = \"ftp://example.com\"\n", "scheme"},
		{"no host", "[api]\nbase_url = \"https://\"\n", "host"},
		{"query", "[api]\nbase_url = \"https://example.com?x=1\"\n", "query"},
		{"negative redirects", "[api]\nmax_redirects = -1\n", "max_redirects"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.toml", tt.content)
			_, err := Load(LoaderOptions{ConfigPath: path, LookupEnv: noEnv})
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("expected error mentioning %q, got %v", tt.errPart, err)
			}
		})
	}
}

func TestRedacted_HidesSealKey(t *testing.T) {
	cfg := ProdConfig()
	cfg.Token.SealKey = "super-secret"

	out := cfg.Redacted()
	if strings.Contains(out, "super-secret") {
		t.Error("expected seal key to be redacted")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected redaction marker")
	}
}
