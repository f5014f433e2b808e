package genaigateway

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_JSON(t *testing.T) {
	data := `{
		"server": {"port": 9090, "cors_origins": ["http://localhost:5173"]},
		"provider": {"api_keys": ["k1", "k2"], "failure_cooldown": 15000, "routing_mode": "gemini-api"}
	}`
	path := writeTempFile(t, "config.json", data)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Provider.APIKeys) != 2 {
		t.Errorf("expected 2 keys, got %d", len(cfg.Provider.APIKeys))
	}
	if cfg.Provider.FailureCooldown.Std() != 15*time.Second {
		t.Errorf("expected 15s cooldown, got %s", cfg.Provider.FailureCooldown)
	}
	// Untouched fields keep their defaults.
	if cfg.Server.MaxUploadBytes != 64<<20 || cfg.Service.Name != "genai-gateway" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	data := `
server:
  host: 127.0.0.1
  rate_limit:
    requests_per_second: 2.5
    burst: 5
service:
  name: studio-bff
  environment: staging
provider:
  api_keys:
    - alpha
  failure_cooldown: 1m
  routing_mode: vertex-ai
  project: my-project
  location: us-central1
`
	path := writeTempFile(t, "config.yaml", data)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.RoutingMode != RoutingVertexAI || cfg.Provider.Location != "us-central1" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Provider.FailureCooldown.Std() != time.Minute {
		t.Errorf("cooldown = %s", cfg.Provider.FailureCooldown)
	}
	if cfg.Server.RateLimit.RequestsPerSecond != 2.5 || cfg.Server.RateLimit.Burst != 5 {
		t.Errorf("rate limit = %+v", cfg.Server.RateLimit)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "127.0.0.1:8080" {
		t.Errorf("addr = %s", cfg.Server.Addr())
	}
}

func TestLoadConfig_NonExistentFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeTempFile(t, "bad.json", `{invalid`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	path := writeTempFile(t, "bad.yaml", "provider:\n  failure_cooldown: soon\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	path := writeTempFile(t, "config.toml", "key = value")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GENAI_API_KEYS", " k1, ,k2 ")
	t.Setenv("GENAI_FAILURE_COOLDOWN", "45s")
	t.Setenv("GENAI_USE_VERTEX", "true")
	t.Setenv("GENAI_BASE_URL", "http://localhost:9999")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "proj")
	t.Setenv("PORT", "3001")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("RATE_LIMIT_RPS", "0")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg := Defaults()
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if got := cfg.Provider.APIKeys; len(got) != 2 || got[0] != "k1" || got[1] != "k2" {
		t.Errorf("keys = %q", got)
	}
	if cfg.Provider.FailureCooldown.Std() != 45*time.Second {
		t.Errorf("cooldown = %s", cfg.Provider.FailureCooldown)
	}
	if cfg.Provider.RoutingMode != RoutingVertexAI {
		t.Errorf("routing = %s", cfg.Provider.RoutingMode)
	}
	if cfg.Provider.BaseURL != "http://localhost:9999" || cfg.Provider.Project != "proj" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Server.Port != 3001 || len(cfg.Server.CORSOrigins) != 2 || cfg.Server.RateLimit.RequestsPerSecond != 0 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.Server.TrustProxyHeaders {
		t.Error("TrustProxyHeaders not applied")
	}
	if cfg.Service.Environment != "production" {
		t.Errorf("environment = %s", cfg.Service.Environment)
	}
}

func TestApplyEnv_RoutingModeWinsOverVertexFlag(t *testing.T) {
	t.Setenv("GENAI_USE_VERTEX", "true")
	t.Setenv("GENAI_ROUTING_MODE", "gemini-api")
	cfg := Defaults()
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Provider.RoutingMode != RoutingGeminiAPI {
		t.Errorf("routing = %s", cfg.Provider.RoutingMode)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	for _, name := range []string{"GENAI_FAILURE_COOLDOWN", "GENAI_USE_VERTEX", "PORT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "TRUST_PROXY_HEADERS"} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, "not-a-value")
			cfg := Defaults()
			if err := ApplyEnv(&cfg); err == nil {
				t.Fatalf("expected error for bad %s", name)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeTempFile(t, ".env", "GENAI_TEST_DOTENV=from-file\n")
	t.Setenv("GENAI_TEST_DOTENV", "")
	os.Unsetenv("GENAI_TEST_DOTENV") //nolint:errcheck

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("GENAI_TEST_DOTENV"); got != "from-file" {
		t.Errorf("GENAI_TEST_DOTENV = %q", got)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no keys is allowed", func(c *Config) { c.Provider.APIKeys = nil }, false},
		{"unknown routing", func(c *Config) { c.Provider.RoutingMode = "azure" }, true},
		{"negative cooldown", func(c *Config) { c.Provider.FailureCooldown = Duration(-time.Second) }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadBytes = 0 }, true},
		{"zero json limit", func(c *Config) { c.Server.MaxJSONBytes = 0 }, true},
		{"negative burst", func(c *Config) { c.Server.RateLimit.Burst = -1 }, true},
		{"bad base url", func(c *Config) { c.Provider.BaseURL = "ftp://x" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30000", 30 * time.Second},
		{"1.5s", 1500 * time.Millisecond},
		{"2m", 2 * time.Minute},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if err != nil || got.Std() != tt.want {
			t.Errorf("ParseDuration(%q) = %s, %v; want %s", tt.in, got, err, tt.want)
		}
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}
