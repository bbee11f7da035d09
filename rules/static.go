package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platformsec/tagsentry/types"
)

// StaticSource serves a fixed rule list. Used when rules_file is configured
// instead of a DynamoDB table, and by tests.
type StaticSource struct {
	rules []types.Rule
}

// NewStaticSource creates a source over the given rules.
func NewStaticSource(ruleList []types.Rule) *StaticSource {
	return &StaticSource{rules: ruleList}
}

// LoadStaticSource reads rules from a YAML file.
func LoadStaticSource(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc struct {
		Rules []types.Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	return &StaticSource{rules: doc.Rules}, nil
}

// Fetch returns the enabled rules in scope for resourceType.
func (s *StaticSource) Fetch(_ context.Context, resourceType string) ([]types.Rule, error) {
	enabled := make([]types.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	return filterByResourceType(enabled, resourceType), nil
}
