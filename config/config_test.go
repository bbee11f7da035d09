package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	content := `
region: eu-west-1
rules_table: compliance-rules
queue_url: https://sqs.eu-west-1.amazonaws.com/123456789012/tag-events
storage_path: /var/lib/tagsentry

notify:
  sns_enabled: true
  sns_topic_arn: arn:aws:sns:eu-west-1:123456789012:tag-violations
  lark_enabled: true
  lark_secret_name: tagsentry/lark

telemetry:
  metrics_addr: ":9191"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Region != "eu-west-1" {
		t.Errorf("Region = %v, want eu-west-1", cfg.Region)
	}
	if cfg.RulesTable != "compliance-rules" {
		t.Errorf("RulesTable = %v, want compliance-rules", cfg.RulesTable)
	}
	if !cfg.Notify.SNSEnabled || cfg.Notify.SNSTopicARN == "" {
		t.Error("sns notify should be enabled with a topic ARN")
	}
	if cfg.Notify.LarkSecretName != "tagsentry/lark" {
		t.Errorf("LarkSecretName = %v, want tagsentry/lark", cfg.Notify.LarkSecretName)
	}
	if cfg.Telemetry.MetricsAddr != ":9191" {
		t.Errorf("MetricsAddr = %v, want :9191", cfg.Telemetry.MetricsAddr)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Region != "us-east-1" {
		t.Errorf("Region = %v, want us-east-1", cfg.Region)
	}
	if cfg.RulesTable == "" {
		t.Error("default RulesTable should not be empty")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TAGSENTRY_REGION", "ap-southeast-1")
	t.Setenv("TAGSENTRY_SNS_TOPIC_ARN", "arn:aws:sns:ap-southeast-1:123456789012:alerts")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Region != "ap-southeast-1" {
		t.Errorf("Region = %v, want ap-southeast-1", cfg.Region)
	}
	if !cfg.Notify.SNSEnabled {
		t.Error("setting the topic ARN env should enable sns")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				Region:     "us-east-1",
				RulesTable: "rules",
			},
			wantErr: false,
		},
		{
			name: "rules file instead of table",
			config: Config{
				Region:    "us-east-1",
				RulesFile: "rules.yaml",
			},
			wantErr: false,
		},
		{
			name: "missing region",
			config: Config{
				RulesTable: "rules",
			},
			wantErr: true,
		},
		{
			name: "no rules source",
			config: Config{
				Region: "us-east-1",
			},
			wantErr: true,
		},
		{
			name: "sns enabled without topic",
			config: Config{
				Region:     "us-east-1",
				RulesTable: "rules",
				Notify:     Notify{SNSEnabled: true},
			},
			wantErr: true,
		},
		{
			name: "lark enabled without secret",
			config: Config{
				Region:     "us-east-1",
				RulesTable: "rules",
				Notify:     Notify{LarkEnabled: true},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
