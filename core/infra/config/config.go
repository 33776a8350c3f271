// Package config loads gateway configuration from the environment and an
// optional YAML file. Environment values win over file values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jarvault/jarvault/core/infra/schema"
)

const (
	defaultHTTPAddr    = ":8081"
	defaultMetricsAddr = ":9092"
	defaultCentralURL  = "https://repo1.maven.org/maven2"

	envConfigPath    = "JARVAULT_CONFIG"
	envHTTPAddr      = "JARVAULT_HTTP_ADDR"
	envMetricsAddr   = "JARVAULT_METRICS_ADDR"
	envRedisURL      = "REDIS_URL"
	envNATSURL       = "NATS_URL"
	envStagingRoot   = "JARVAULT_STAGING_ROOT"
	envRepoRoot      = "JARVAULT_REPO_ROOT"
	envCentralURL    = "JARVAULT_CENTRAL_URL"
	envAllowListPath = "JARVAULT_SHADOW_ALLOW_LIST"
)

// Config holds runtime configuration for the deploy gateway.
type Config struct {
	HTTPAddr      string `yaml:"http_addr"`
	MetricsAddr   string `yaml:"metrics_addr"`
	RedisURL      string `yaml:"redis_url"`
	NatsURL       string `yaml:"nats_url"`
	StagingRoot   string `yaml:"staging_root"`
	RepoRoot      string `yaml:"repo_root"`
	CentralURL    string `yaml:"central_url"`
	AllowListPath string `yaml:"shadow_allow_list"`
}

// Load returns configuration from JARVAULT_CONFIG (when set) overlaid
// with environment variables and sane defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if path := os.Getenv(envConfigPath); path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overlay(&cfg.HTTPAddr, envHTTPAddr, defaultHTTPAddr)
	overlay(&cfg.MetricsAddr, envMetricsAddr, defaultMetricsAddr)
	overlay(&cfg.RedisURL, envRedisURL, "")
	overlay(&cfg.NatsURL, envNATSURL, "")
	overlay(&cfg.StagingRoot, envStagingRoot, "")
	overlay(&cfg.RepoRoot, envRepoRoot, "repo")
	overlay(&cfg.CentralURL, envCentralURL, defaultCentralURL)
	overlay(&cfg.AllowListPath, envAllowListPath, "")
	return cfg, nil
}

// LoadFile parses and schema-checks a YAML config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := schema.ValidateSchema("gateway-config", gatewaySchema(), raw); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
}

func overlay(field *string, env, fallback string) {
	if v := os.Getenv(env); v != "" {
		*field = v
	}
	if *field == "" {
		*field = fallback
	}
}
