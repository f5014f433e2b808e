package genaigateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			MaxUploadBytes: 64 << 20,
			MaxJSONBytes:   1 << 20,
			RateLimit:      RateLimitConfig{RequestsPerSecond: 10, Burst: 20},
		},
		Service: ServiceConfig{
			Name:        "genai-gateway",
			Environment: "development",
		},
		Provider: ProviderConfig{
			FailureCooldown: Duration(30 * time.Second),
			RoutingMode:     RoutingGeminiAPI,
		},
	}
}

// LoadConfig reads a config file on top of Defaults.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if v, ok := lookup("GENAI_API_KEYS"); ok {
		cfg.Provider.APIKeys = splitList(v)
	}
	if v, ok := lookup("GENAI_FAILURE_COOLDOWN"); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GENAI_FAILURE_COOLDOWN: %w", err)
		}
		cfg.Provider.FailureCooldown = d
	}
	if v, ok := lookup("GENAI_USE_VERTEX"); ok {
		useVertex, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GENAI_USE_VERTEX: %w", err)
		}
		if useVertex {
			cfg.Provider.RoutingMode = RoutingVertexAI
		} else {
			cfg.Provider.RoutingMode = RoutingGeminiAPI
		}
	}
	if v, ok := lookup("GENAI_ROUTING_MODE"); ok {
		cfg.Provider.RoutingMode = v
	}
	setString(&cfg.Provider.BaseURL, "GENAI_BASE_URL")
	setString(&cfg.Provider.APIVersion, "GENAI_API_VERSION")
	setString(&cfg.Provider.Project, "GOOGLE_CLOUD_PROJECT")
	setString(&cfg.Provider.Location, "GOOGLE_CLOUD_LOCATION")

	setString(&cfg.Server.Host, "HOST")
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		cfg.Server.CORSOrigins = splitList(v)
	}
	setString(&cfg.Server.StaticDir, "STATIC_DIR")
	if v, ok := lookup("RATE_LIMIT_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		cfg.Server.RateLimit.RequestsPerSecond = rps
	}
	if v, ok := lookup("RATE_LIMIT_BURST"); ok {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		cfg.Server.RateLimit.Burst = burst
	}
	if v, ok := lookup("TRUST_PROXY_HEADERS"); ok {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRUST_PROXY_HEADERS: %w", err)
		}
		cfg.Server.TrustProxyHeaders = trust
	}

	setString(&cfg.Service.Name, "SERVICE_NAME")
	setString(&cfg.Service.Environment, "ENVIRONMENT")
	return nil
}

// lookup returns a trimmed, non-empty environment value.
func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig validates a Config for correctness. An empty key list is
// allowed: the gateway starts and reports ProviderKeyNotConfigured per call.
func ValidateConfig(cfg Config) error {
	switch cfg.Provider.RoutingMode {
	case RoutingGeminiAPI, RoutingVertexAI:
	default:
		return fmt.Errorf("unknown routing mode: %q", cfg.Provider.RoutingMode)
	}

	if cfg.Provider.FailureCooldown < 0 {
		return fmt.Errorf("failure_cooldown must not be negative")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if cfg.Server.MaxJSONBytes <= 0 {
		return fmt.Errorf("max_json_bytes must be positive")
	}
	if cfg.Server.RateLimit.RequestsPerSecond < 0 || cfg.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if cfg.Provider.BaseURL != "" && !strings.HasPrefix(cfg.Provider.BaseURL, "http://") && !strings.HasPrefix(cfg.Provider.BaseURL, "https://") {
		return fmt.Errorf("base_url %q must be an http(s) URL", cfg.Provider.BaseURL)
	}

	return nil
}
