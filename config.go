// Package genaigateway holds the gateway configuration model and its
// loaders: config files, .env files and environment overrides.
package genaigateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Routing modes accepted in provider.routing_mode.
const (
	RoutingGeminiAPI = "gemini-api"
	RoutingVertexAI  = "vertex-ai"
)

// Config holds the configuration for the gateway.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Service  ServiceConfig  `json:"service" yaml:"service"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
}

// ServerConfig controls the HTTP listener and request limits.
type ServerConfig struct {
	Host        string   `json:"host" yaml:"host"`
	Port        int      `json:"port" yaml:"port"`
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
	// StaticDir, when set, serves a built frontend for unknown paths.
	StaticDir      string          `json:"static_dir,omitempty" yaml:"static_dir,omitempty"`
	MaxUploadBytes int64           `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	MaxJSONBytes   int64           `json:"max_json_bytes" yaml:"max_json_bytes"`
	RateLimit      RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `json:"trust_proxy_headers" yaml:"trust_proxy_headers"`
}

// RateLimitConfig is the per-client inbound budget. Zero RequestsPerSecond
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// ServiceConfig names the deployment in health output and logs.
type ServiceConfig struct {
	Name        string `json:"name" yaml:"name"`
	Environment string `json:"environment" yaml:"environment"`
}

// ProviderConfig holds the upstream credentials and endpoint selection.
type ProviderConfig struct {
	APIKeys         []string `json:"api_keys" yaml:"api_keys"`
	FailureCooldown Duration `json:"failure_cooldown" yaml:"failure_cooldown"`
	RoutingMode     string   `json:"routing_mode" yaml:"routing_mode"`
	BaseURL         string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIVersion      string   `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Project         string   `json:"project,omitempty" yaml:"project,omitempty"`
	Location        string   `json:"location,omitempty" yaml:"location,omitempty"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Duration accepts either a Go duration string ("30s") or a number of
// milliseconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// ParseDuration parses "30s"-style strings or bare millisecond counts.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(time.Duration(ms) * time.Millisecond), nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return Duration(v), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string or milliseconds: %w", err)
	}
	v, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
