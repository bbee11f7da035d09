package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformsec/tagsentry/types"
)

func sampleRules() []types.Rule {
	return []types.Rule{
		{RuleID: "rule-001", TagKey: "site", AllowedValues: []string{"us", "en"}, Enabled: true},
		{RuleID: "rule-002", TagKey: "environment", AllowedValues: []string{"dev", "staging", "prod"}, Enabled: true},
		{RuleID: "rule-003", TagKey: "cost-center", AllowedValues: []string{}, Enabled: true},
	}
}

func TestEvaluateCompliant(t *testing.T) {
	tags := []types.Tag{
		{Key: "site", Value: "us"},
		{Key: "environment", Value: "dev"},
		{Key: "cost-center", Value: "engineering"},
	}

	result := Evaluate(tags, sampleRules(), "")

	assert.True(t, result.Compliant)
	assert.Equal(t, 3, result.TotalRules)
	assert.Equal(t, 3, result.PassedCount())
	assert.Equal(t, 0, result.FailedCount())
	assert.Empty(t, result.MissingTags)
	assert.Empty(t, result.InvalidValues)
}

func TestEvaluateMissingTags(t *testing.T) {
	tags := []types.Tag{{Key: "environment", Value: "dev"}}

	result := Evaluate(tags, sampleRules(), "")

	assert.False(t, result.Compliant)
	assert.Equal(t, []string{"site", "cost-center"}, result.MissingTags)
	assert.Equal(t, 2, result.FailedCount())
	assert.Equal(t, 1, result.PassedCount())
	for _, failed := range result.FailedRules {
		assert.Equal(t, types.ReasonMissing, failed.Reason)
	}
}

func TestEvaluateInvalidValue(t *testing.T) {
	tags := []types.Tag{
		{Key: "site", Value: "us"},
		{Key: "environment", Value: "invalid-env"},
		{Key: "cost-center", Value: "engineering"},
	}

	result := Evaluate(tags, sampleRules(), "")

	assert.False(t, result.Compliant)
	require.Len(t, result.InvalidValues, 1)
	assert.Equal(t, "environment", result.InvalidValues[0].TagKey)
	assert.Equal(t, "invalid-env", result.InvalidValues[0].CurrentValue)
	assert.Equal(t, []string{"dev", "staging", "prod"}, result.InvalidValues[0].AllowedValues)
	require.Len(t, result.FailedRules, 1)
	assert.Equal(t, types.ReasonInvalidValue, result.FailedRules[0].Reason)
}

func TestEvaluateEmptyRules(t *testing.T) {
	tags := []types.Tag{{Key: "anything", Value: "goes"}}

	result := Evaluate(tags, nil, "")

	assert.True(t, result.Compliant)
	assert.Equal(t, 0, result.TotalRules)
	assert.Empty(t, result.PassedRules)
	assert.Empty(t, result.FailedRules)
}

func TestEvaluateEmptyTags(t *testing.T) {
	result := Evaluate(nil, sampleRules(), "")

	assert.False(t, result.Compliant)
	assert.Equal(t, 3, result.FailedCount())
	for _, failed := range result.FailedRules {
		assert.Equal(t, types.ReasonMissing, failed.Reason)
	}
	assert.Equal(t, []string{"site", "environment", "cost-center"}, result.MissingTags)
}

func TestEvaluateUnconstrainedAcceptsEmptyString(t *testing.T) {
	rules := []types.Rule{
		{RuleID: "r1", TagKey: "owner", AllowedValues: []string{}, Enabled: true},
	}
	tags := []types.Tag{{Key: "owner", Value: ""}}

	result := Evaluate(tags, rules, "")

	assert.True(t, result.Compliant)
	require.Len(t, result.PassedRules, 1)
	assert.Equal(t, "", result.PassedRules[0].Value)
}

func TestEvaluateCaseSensitive(t *testing.T) {
	rules := []types.Rule{
		{RuleID: "r1", TagKey: "environment", AllowedValues: []string{"dev"}, Enabled: true},
	}

	// Key casing mismatch counts as missing
	result := Evaluate([]types.Tag{{Key: "Environment", Value: "dev"}}, rules, "")
	assert.False(t, result.Compliant)
	assert.Equal(t, []string{"environment"}, result.MissingTags)

	// Value casing mismatch counts as invalid
	result = Evaluate([]types.Tag{{Key: "environment", Value: "Dev"}}, rules, "")
	assert.False(t, result.Compliant)
	require.Len(t, result.FailedRules, 1)
	assert.Equal(t, types.ReasonInvalidValue, result.FailedRules[0].Reason)
}

func TestEvaluateLastWriteWins(t *testing.T) {
	rules := []types.Rule{
		{RuleID: "r1", TagKey: "environment", AllowedValues: []string{"prod"}, Enabled: true},
	}
	tags := []types.Tag{
		{Key: "environment", Value: "dev"},
		{Key: "environment", Value: "prod"},
	}

	result := Evaluate(tags, rules, "")
	assert.True(t, result.Compliant)
}

func TestEvaluateResourceTypeFiltering(t *testing.T) {
	rules := []types.Rule{
		{RuleID: "r1", TagKey: "environment", Enabled: true},
		{RuleID: "r2", TagKey: "backup", Enabled: true, ResourceTypes: []string{"rds:db"}},
	}
	tags := []types.Tag{{Key: "environment", Value: "dev"}}

	// EC2 instance: the rds-scoped rule is out of scope
	result := Evaluate(tags, rules, "ec2:instance")
	assert.True(t, result.Compliant)
	assert.Equal(t, 1, result.TotalRules)

	// RDS instance: both rules apply, backup tag is missing
	result = Evaluate(tags, rules, "rds:db")
	assert.False(t, result.Compliant)
	assert.Equal(t, 2, result.TotalRules)
	assert.Equal(t, []string{"backup"}, result.MissingTags)

	// Empty resource type evaluates the full supplied list
	result = Evaluate(tags, rules, "")
	assert.Equal(t, 2, result.TotalRules)
}

func TestEvaluateDuplicateRulesEvaluatedIndependently(t *testing.T) {
	rules := []types.Rule{
		{RuleID: "r1", TagKey: "environment", AllowedValues: []string{"dev"}, Enabled: true},
		{RuleID: "r2", TagKey: "environment", AllowedValues: []string{"prod"}, Enabled: true},
	}
	tags := []types.Tag{{Key: "environment", Value: "dev"}}

	result := Evaluate(tags, rules, "")

	assert.False(t, result.Compliant)
	assert.Equal(t, 2, result.TotalRules)
	assert.Equal(t, 1, result.PassedCount())
	assert.Equal(t, 1, result.FailedCount())
	assert.Equal(t, "r1", result.PassedRules[0].RuleID)
	assert.Equal(t, "r2", result.FailedRules[0].RuleID)
}

func TestEvaluateSkipsDisabledAndMalformedRules(t *testing.T) {
	rules := []types.Rule{
		{RuleID: "r1", TagKey: "environment", Enabled: false},
		{RuleID: "r2", TagKey: "", Enabled: true}, // no tag key, cannot match deterministically
		{RuleID: "r3", TagKey: "owner", Enabled: true},
	}
	tags := []types.Tag{{Key: "owner", Value: "platform"}}

	result := Evaluate(tags, rules, "")

	assert.True(t, result.Compliant)
	assert.Equal(t, 1, result.TotalRules)
	assert.Equal(t, "r3", result.PassedRules[0].RuleID)
}

func TestEvaluateCountInvariant(t *testing.T) {
	tests := []struct {
		name string
		tags []types.Tag
	}{
		{"no tags", nil},
		{"partial tags", []types.Tag{{Key: "site", Value: "us"}}},
		{"all tags", []types.Tag{
			{Key: "site", Value: "us"},
			{Key: "environment", Value: "prod"},
			{Key: "cost-center", Value: "x"},
		}},
		{"extra tags", []types.Tag{
			{Key: "site", Value: "zz"},
			{Key: "unrelated", Value: "1"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(tt.tags, sampleRules(), "")
			assert.Equal(t, result.TotalRules, result.PassedCount()+result.FailedCount())
			assert.Equal(t, result.Compliant, result.FailedCount() == 0)
		})
	}
}
