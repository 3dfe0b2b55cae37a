// Package config provides configuration structures and loading logic for the
// guardrail service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration for the guardrail service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Guardrail GuardrailConfig `yaml:"guardrail"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// BackendConfig holds configuration for the model backend that produces
// policy judgments.
type BackendConfig struct {
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
}

// GuardrailConfig holds configuration for the policy prompt. The name lists
// fill the proprietary/competitive directive of the policy document; defaults
// are applied by the prompt itself when a list is empty.
type GuardrailConfig struct {
	BrandNames      []string `yaml:"brand_names"`
	CompetitorNames []string `yaml:"competitor_names"`
}

// AuditConfig holds configuration for the in-memory audit trail.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxRecords int  `yaml:"max_records"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Environment  string `yaml:"environment"`
	Insecure     bool   `yaml:"insecure"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration that works with no file present: mock
// backend, auditing on, no telemetry export.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8085",
		},
		Backend: BackendConfig{
			Provider:       "mock",
			TimeoutSeconds: 30,
		},
		Audit: AuditConfig{
			Enabled:    true,
			MaxRecords: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a file and applies environment variable
// overrides. An empty path loads defaults plus overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("PHYLAX_LISTEN_ADDR"); val != "" {
		cfg.Server.Address = val
	}

	if val := os.Getenv("PHYLAX_BACKEND_PROVIDER"); val != "" {
		cfg.Backend.Provider = val
	}
	if val := os.Getenv("PHYLAX_BACKEND_MODEL"); val != "" {
		cfg.Backend.Model = val
	}
	if val := os.Getenv("PHYLAX_BACKEND_BASE_URL"); val != "" {
		cfg.Backend.BaseURL = val
	}
	if val := os.Getenv("PHYLAX_BACKEND_API_KEY_ENV"); val != "" {
		cfg.Backend.APIKeyEnv = val
	}

	// Comma-separated name lists for the proprietary/competitive directive.
	// Example: PHYLAX_BRAND_NAMES="Acme Search,Acme Assist"
	if val := os.Getenv("PHYLAX_BRAND_NAMES"); val != "" {
		cfg.Guardrail.BrandNames = splitNames(val)
	}
	if val := os.Getenv("PHYLAX_COMPETITOR_NAMES"); val != "" {
		cfg.Guardrail.CompetitorNames = splitNames(val)
	}

	if val := os.Getenv("PHYLAX_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("PHYLAX_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}

	if val := os.Getenv("PHYLAX_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

func splitNames(val string) []string {
	parts := strings.Split(val, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Validate performs comprehensive validation of the entire configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration: %w", err)
	}

	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend configuration: %w", err)
	}

	if err := c.Guardrail.Validate(); err != nil {
		return fmt.Errorf("guardrail configuration: %w", err)
	}

	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit configuration: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry configuration: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	return nil
}

// Validate performs validation of server configuration.
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = ":8085"
	}
	return nil
}

// Validate performs validation of backend configuration and applies
// per-provider defaults.
func (c *BackendConfig) Validate() error {
	provider := strings.ToLower(strings.TrimSpace(c.Provider))
	if provider == "" {
		provider = "gemini"
	}
	switch provider {
	case "openai", "gemini", "anthropic", "mock":
		c.Provider = provider
	default:
		return fmt.Errorf("unknown backend provider %q, supported providers: openai, gemini, anthropic, mock", c.Provider)
	}

	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative, got %d", c.TimeoutSeconds)
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}

	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens)
	}

	if strings.TrimSpace(c.APIKeyEnv) == "" {
		c.APIKeyEnv = defaultAPIKeyEnv(c.Provider)
	}

	return nil
}

// Timeout returns the configured backend timeout as a duration.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// APIKey resolves the backend credential from the configured environment
// variable. Empty when unset or when the provider needs no credential.
func (c BackendConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

func defaultAPIKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GOOGLE_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// Validate performs validation of guardrail configuration.
func (c *GuardrailConfig) Validate() error {
	// Name lists are free-form; empty lists fall back to the prompt's
	// built-in placeholders.
	return nil
}

// Validate performs validation of audit configuration.
func (c *AuditConfig) Validate() error {
	if c.MaxRecords < 0 {
		return fmt.Errorf("max_records must not be negative, got %d", c.MaxRecords)
	}
	if c.MaxRecords == 0 {
		c.MaxRecords = 1000
	}
	return nil
}

// Validate performs validation of telemetry configuration.
func (c *TelemetryConfig) Validate() error {
	// An empty OTLP endpoint disables export entirely.
	return nil
}

// Validate performs validation of logging configuration.
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}
}
