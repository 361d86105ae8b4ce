// Package config loads the graphbridge host configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/graphbridge/internal/analyzer"
)

// Config represents the application configuration.
type Config struct {
	Rollout          RolloutConfig   `yaml:"rollout"`
	Backends         BackendsConfig  `yaml:"backends"`
	Metrics          MetricsConfig   `yaml:"metrics"`
	Audit            AuditConfig     `yaml:"audit"`
	Telemetry        TelemetryConfig `yaml:"telemetry"`
	SnapshotInterval string          `yaml:"snapshot_interval,omitempty"`
}

// SnapshotEvery parses the snapshot interval, defaulting to one minute.
func (c *Config) SnapshotEvery() time.Duration {
	d, err := time.ParseDuration(c.SnapshotInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// RolloutConfig controls the eligibility analyzer.
type RolloutConfig struct {
	AnalysisEnabled bool   `yaml:"analysis_enabled"`
	Mode            string `yaml:"mode"`
}

// BackendsConfig carries the supported-construct tables for both backends.
type BackendsConfig struct {
	Legalization BackendConfig `yaml:"legalization"`
	Legacy       BackendConfig `yaml:"legacy"`
}

// BackendConfig describes one backend's lowering capability.
type BackendConfig struct {
	Supported []string `yaml:"supported"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// AuditConfig controls the dispatch audit store.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path,omitempty"`
}

// TelemetryConfig controls the NATS dispatch-event publisher.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// AnalyzerMode returns the configured rollout mode as an analyzer.Mode.
func (r RolloutConfig) AnalyzerMode() analyzer.Mode {
	return analyzer.Mode(r.Mode)
}

// Load loads configuration from the specified file. A .env file alongside the
// process is applied first, and environment variables referenced in the YAML
// are expanded before parsing.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Rollout.Mode == "" {
		cfg.Rollout.Mode = string(analyzer.ModeLegacyExecute)
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9090"
	}
	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = "./graphbridge.db"
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Subject == "" {
		cfg.Telemetry.Subject = "graphbridge.dispatch"
	}
	if cfg.SnapshotInterval == "" {
		cfg.SnapshotInterval = "1m"
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if !c.Rollout.AnalyzerMode().Valid() {
		return fmt.Errorf("rollout.mode: unknown mode %q", c.Rollout.Mode)
	}
	if c.Telemetry.Enabled && c.Telemetry.NATSURL == "" {
		return fmt.Errorf("telemetry.nats_url is required when telemetry is enabled")
	}
	return nil
}

const starterConfig = `# graphbridge configuration
rollout:
  analysis_enabled: true
  mode: legacy_execute

backends:
  legalization:
    supported:
      - tf.Acos
  legacy:
    supported:
      - tf.Acos

metrics:
  listen: ":9090"

audit:
  enabled: false
  db_path: ./graphbridge.db

telemetry:
  enabled: false
  nats_url: nats://localhost:4222
  subject: graphbridge.dispatch

snapshot_interval: 1m
`

// Init writes a starter configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	return os.WriteFile(configPath, []byte(starterConfig), 0o644)
}
