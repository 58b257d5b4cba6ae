// Package config loads pipeline configuration from a YAML file with
// GOVPIPE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends for governance records.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds pipeline configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// Store selects the governance repository backend.
	Store       string `yaml:"store"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`

	// RedisAddr enables the shared idempotency cache when set.
	RedisAddr     string        `yaml:"redis_addr"`
	StateTTL      time.Duration `yaml:"state_ttl"`
	AuditLogPath  string        `yaml:"audit_log_path"`
	OTLPEndpoint  string        `yaml:"otlp_endpoint"`
	OTLPInsecure  bool          `yaml:"otlp_insecure"`
	MetricsExport bool          `yaml:"metrics_export"`

	Workflow WorkflowConfig `yaml:"workflow"`
}

// WorkflowConfig pins gate versions and rule expressions.
type WorkflowConfig struct {
	ModelVersion   string `yaml:"model_version"`
	PromptVersion  int    `yaml:"prompt_version"`
	PolicyRule     string `yaml:"policy_rule"`
	GuardrailRule  string `yaml:"guardrail_rule"`
	ComplianceRule string `yaml:"compliance_rule"`
}

// Default returns the development defaults.
func Default() *Config {
	return &Config{
		LogLevel:   "INFO",
		Store:      StoreMemory,
		SQLitePath: "govpipe.db",
		StateTTL:   24 * time.Hour,
		Workflow: WorkflowConfig{
			ModelVersion:  "1.0",
			PromptVersion: 1,
		},
	}
}

// Load reads the YAML file at path (when non-empty) over the defaults,
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GOVPIPE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GOVPIPE_STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("GOVPIPE_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("GOVPIPE_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("GOVPIPE_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("GOVPIPE_AUDIT_LOG_PATH"); v != "" {
		cfg.AuditLogPath = v
	}
	if v := os.Getenv("GOVPIPE_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
		cfg.MetricsExport = true
	}
	if v := os.Getenv("GOVPIPE_MODEL_VERSION"); v != "" {
		cfg.Workflow.ModelVersion = v
	}
}

// Validate rejects configurations the pipeline cannot start with.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store)
	}
	if c.Store == StorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("store %q requires database_url", StorePostgres)
	}
	if c.Store == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("store %q requires sqlite_path", StoreSQLite)
	}
	return nil
}
