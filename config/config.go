// Package config loads tagsentry configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Region      string    `yaml:"region"`
	RulesTable  string    `yaml:"rules_table"`
	RulesFile   string    `yaml:"rules_file,omitempty"`
	QueueURL    string    `yaml:"queue_url,omitempty"`
	StoragePath string    `yaml:"storage_path"`
	Notify      Notify    `yaml:"notify"`
	Telemetry   Telemetry `yaml:"telemetry"`
}

// Notify configures the violation channels.
type Notify struct {
	SNSEnabled     bool   `yaml:"sns_enabled"`
	SNSTopicARN    string `yaml:"sns_topic_arn,omitempty"`
	LarkEnabled    bool   `yaml:"lark_enabled"`
	LarkSecretName string `yaml:"lark_secret_name,omitempty"`
}

// Telemetry configures the OTEL export and the metrics listener.
type Telemetry struct {
	OTELEndpoint string `yaml:"otel_endpoint,omitempty"`
	MetricsAddr  string `yaml:"metrics_addr,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Region:      "us-east-1",
		RulesTable:  "tag-compliance-rules",
		StoragePath: ".tagsentry",
		Telemetry: Telemetry{
			MetricsAddr: ":9090",
		},
	}
}

// Load reads configuration from path, falling back to defaults when path is
// empty, and applies environment overrides last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Region, "TAGSENTRY_REGION")
	overrideString(&c.RulesTable, "TAGSENTRY_RULES_TABLE")
	overrideString(&c.RulesFile, "TAGSENTRY_RULES_FILE")
	overrideString(&c.QueueURL, "TAGSENTRY_QUEUE_URL")
	overrideString(&c.StoragePath, "TAGSENTRY_STORAGE_PATH")
	overrideString(&c.Notify.SNSTopicARN, "TAGSENTRY_SNS_TOPIC_ARN")
	overrideString(&c.Notify.LarkSecretName, "TAGSENTRY_LARK_SECRET_NAME")
	overrideString(&c.Telemetry.OTELEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	if os.Getenv("TAGSENTRY_SNS_TOPIC_ARN") != "" {
		c.Notify.SNSEnabled = true
	}
	if os.Getenv("TAGSENTRY_LARK_SECRET_NAME") != "" {
		c.Notify.LarkEnabled = true
	}
}

func overrideString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.RulesTable == "" && c.RulesFile == "" {
		return fmt.Errorf("either rules_table or rules_file is required")
	}
	if c.Notify.SNSEnabled && c.Notify.SNSTopicARN == "" {
		return fmt.Errorf("sns_topic_arn is required when sns is enabled")
	}
	if c.Notify.LarkEnabled && c.Notify.LarkSecretName == "" {
		return fmt.Errorf("lark_secret_name is required when lark is enabled")
	}
	return nil
}
