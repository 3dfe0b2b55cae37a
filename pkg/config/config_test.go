package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromFile(t *testing.T) {
	configContent := `
server:
  address: ":9090"

backend:
  provider: "openai"
  model: "gpt-4o-mini"
  base_url: "https://llm.internal.example.com/v1"
  timeout_seconds: 10
  max_retries: 2
  temperature: 0.2
  max_tokens: 256

guardrail:
  brand_names:
    - "Acme Search"
    - "Acme Assist"
  competitor_names:
    - "Initech"

audit:
  enabled: true
  max_records: 50

telemetry:
  otlp_endpoint: "localhost:4317"
  environment: "staging"
  insecure: true

logging:
  level: "debug"
`

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Errorf("Expected server address ':9090', got %q", cfg.Server.Address)
	}
	if cfg.Backend.Provider != "openai" {
		t.Errorf("Expected provider 'openai', got %q", cfg.Backend.Provider)
	}
	if cfg.Backend.Model != "gpt-4o-mini" {
		t.Errorf("Expected model 'gpt-4o-mini', got %q", cfg.Backend.Model)
	}
	if cfg.Backend.Timeout() != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.Backend.Timeout())
	}
	if cfg.Backend.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("Expected default api_key_env 'OPENAI_API_KEY', got %q", cfg.Backend.APIKeyEnv)
	}
	if len(cfg.Guardrail.BrandNames) != 2 || cfg.Guardrail.BrandNames[0] != "Acme Search" {
		t.Errorf("Unexpected brand names: %v", cfg.Guardrail.BrandNames)
	}
	if len(cfg.Guardrail.CompetitorNames) != 1 || cfg.Guardrail.CompetitorNames[0] != "Initech" {
		t.Errorf("Unexpected competitor names: %v", cfg.Guardrail.CompetitorNames)
	}
	if !cfg.Audit.Enabled || cfg.Audit.MaxRecords != 50 {
		t.Errorf("Unexpected audit config: %+v", cfg.Audit)
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4317" || !cfg.Telemetry.Insecure {
		t.Errorf("Unexpected telemetry config: %+v", cfg.Telemetry)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level 'debug', got %q", cfg.Logging.Level)
	}
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Address != ":8085" {
		t.Errorf("Expected default address ':8085', got %q", cfg.Server.Address)
	}
	if cfg.Backend.Provider != "mock" {
		t.Errorf("Expected default provider 'mock', got %q", cfg.Backend.Provider)
	}
	if cfg.Backend.TimeoutSeconds != 30 {
		t.Errorf("Expected default timeout 30s, got %d", cfg.Backend.TimeoutSeconds)
	}
	if !cfg.Audit.Enabled || cfg.Audit.MaxRecords != 1000 {
		t.Errorf("Unexpected default audit config: %+v", cfg.Audit)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got %q", cfg.Logging.Level)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantErr     bool
		expectedErr string
	}{
		{
			name: "valid minimal config",
			config: Config{
				Backend: BackendConfig{Provider: "gemini"},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name: "empty provider defaults to gemini",
			config: Config{
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name: "unknown provider",
			config: Config{
				Backend: BackendConfig{Provider: "bard"},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr:     true,
			expectedErr: "unknown backend provider",
		},
		{
			name: "negative timeout",
			config: Config{
				Backend: BackendConfig{Provider: "mock", TimeoutSeconds: -1},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr:     true,
			expectedErr: "timeout_seconds must not be negative",
		},
		{
			name: "negative retries",
			config: Config{
				Backend: BackendConfig{Provider: "mock", MaxRetries: -2},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr:     true,
			expectedErr: "max_retries must not be negative",
		},
		{
			name: "temperature out of range",
			config: Config{
				Backend: BackendConfig{Provider: "mock", Temperature: 3.5},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr:     true,
			expectedErr: "temperature must be between 0 and 2",
		},
		{
			name: "negative audit retention",
			config: Config{
				Backend: BackendConfig{Provider: "mock"},
				Audit:   AuditConfig{Enabled: true, MaxRecords: -5},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr:     true,
			expectedErr: "max_records must not be negative",
		},
		{
			name: "invalid log level",
			config: Config{
				Backend: BackendConfig{Provider: "mock"},
				Logging: LoggingConfig{Level: "verbose"},
			},
			wantErr:     true,
			expectedErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Config.Validate() expected error but got none")
				} else if tt.expectedErr != "" && !strings.Contains(err.Error(), tt.expectedErr) {
					t.Errorf("Config.Validate() error = %v, expected to contain %q", err, tt.expectedErr)
				}
			} else {
				if err != nil {
					t.Errorf("Config.Validate() unexpected error: %v", err)
				}
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PHYLAX_LISTEN_ADDR", ":7070")
	t.Setenv("PHYLAX_BACKEND_PROVIDER", "anthropic")
	t.Setenv("PHYLAX_BACKEND_MODEL", "claude-3-5-haiku-latest")
	t.Setenv("PHYLAX_BRAND_NAMES", "Acme Search, Acme Assist ,")
	t.Setenv("PHYLAX_OTLP_ENDPOINT", "otel-collector:4317")
	t.Setenv("PHYLAX_OTLP_INSECURE", "true")
	t.Setenv("PHYLAX_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Address != ":7070" {
		t.Errorf("Expected address ':7070', got %q", cfg.Server.Address)
	}
	if cfg.Backend.Provider != "anthropic" {
		t.Errorf("Expected provider 'anthropic', got %q", cfg.Backend.Provider)
	}
	if cfg.Backend.Model != "claude-3-5-haiku-latest" {
		t.Errorf("Expected model override, got %q", cfg.Backend.Model)
	}
	if cfg.Backend.APIKeyEnv != "ANTHROPIC_API_KEY" {
		t.Errorf("Expected default api_key_env for anthropic, got %q", cfg.Backend.APIKeyEnv)
	}
	if len(cfg.Guardrail.BrandNames) != 2 || cfg.Guardrail.BrandNames[1] != "Acme Assist" {
		t.Errorf("Unexpected brand names from environment: %v", cfg.Guardrail.BrandNames)
	}
	if cfg.Telemetry.OTLPEndpoint != "otel-collector:4317" || !cfg.Telemetry.Insecure {
		t.Errorf("Unexpected telemetry config: %+v", cfg.Telemetry)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level 'warn', got %q", cfg.Logging.Level)
	}
}

func TestFileProviderReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	provider, err := NewFileConfigProvider(configPath)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			t.Errorf("Failed to close provider: %v", err)
		}
	}()

	updates := provider.Subscribe()

	select {
	case cfg := <-updates:
		if cfg.Logging.Level != "info" {
			t.Fatalf("Expected initial level 'info', got %q", cfg.Logging.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for initial snapshot")
	}

	if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("Failed to rewrite config file: %v", err)
	}

	select {
	case cfg := <-updates:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("Expected reloaded level 'debug', got %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}
}

func TestFileProviderKeepsLastGoodConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: warn\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	provider, err := NewFileConfigProvider(configPath)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	defer func() { _ = provider.Close() }()

	if provider.Current().Logging.Level != "warn" {
		t.Fatalf("Expected initial level 'warn', got %q", provider.Current().Logging.Level)
	}

	// Invalid rewrite must be skipped, keeping the previous snapshot.
	if err := os.WriteFile(configPath, []byte("logging:\n  level: shouting\n"), 0o644); err != nil {
		t.Fatalf("Failed to rewrite config file: %v", err)
	}

	time.Sleep(500 * time.Millisecond)

	if provider.Current().Logging.Level != "warn" {
		t.Fatalf("Expected level to remain 'warn' after invalid rewrite, got %q", provider.Current().Logging.Level)
	}
}
