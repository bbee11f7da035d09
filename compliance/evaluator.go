// Package compliance evaluates a resource's tags against tagging rules.
// Evaluation is pure and total: every input produces a result, never an
// error, so the orchestrator can compose it freely with I/O steps.
package compliance

import (
	"fmt"

	"github.com/platformsec/tagsentry/types"
)

// Evaluate checks tags against rules and produces a compliance verdict.
//
// When resourceType is non-empty, rules are first filtered to those in scope
// for it; pass an empty resourceType to evaluate a pre-filtered list as-is.
// If a tag key repeats, the later occurrence wins. Key and value comparisons
// are exact and case-sensitive. Disabled rules and rules without a tag key
// are skipped and do not count toward totals.
func Evaluate(tags []types.Tag, rules []types.Rule, resourceType string) types.ComplianceResult {
	lookup := buildTagLookup(tags)

	result := types.ComplianceResult{
		PassedRules:   []types.PassedRule{},
		FailedRules:   []types.FailedRule{},
		MissingTags:   []string{},
		InvalidValues: []types.InvalidValue{},
	}

	for _, rule := range rules {
		if !rule.Enabled || rule.TagKey == "" {
			continue
		}
		if resourceType != "" && !rule.AppliesTo(resourceType) {
			continue
		}
		evaluateRule(rule, lookup, &result)
	}

	result.TotalRules = len(result.PassedRules) + len(result.FailedRules)
	result.Compliant = len(result.FailedRules) == 0
	return result
}

// buildTagLookup maps tag key to value, last-write-wins on duplicates.
func buildTagLookup(tags []types.Tag) map[string]string {
	lookup := make(map[string]string, len(tags))
	for _, tag := range tags {
		lookup[tag.Key] = tag.Value
	}
	return lookup
}

func evaluateRule(rule types.Rule, lookup map[string]string, result *types.ComplianceResult) {
	value, present := lookup[rule.TagKey]
	if !present {
		result.MissingTags = append(result.MissingTags, rule.TagKey)
		result.FailedRules = append(result.FailedRules, types.FailedRule{
			RuleID:  rule.RuleID,
			TagKey:  rule.TagKey,
			Reason:  types.ReasonMissing,
			Message: fmt.Sprintf("required tag %q is missing", rule.TagKey),
		})
		return
	}

	// An empty allowed set accepts any present value, including "".
	if len(rule.AllowedValues) > 0 && !containsValue(rule.AllowedValues, value) {
		result.InvalidValues = append(result.InvalidValues, types.InvalidValue{
			TagKey:        rule.TagKey,
			CurrentValue:  value,
			AllowedValues: rule.AllowedValues,
		})
		result.FailedRules = append(result.FailedRules, types.FailedRule{
			RuleID:  rule.RuleID,
			TagKey:  rule.TagKey,
			Reason:  types.ReasonInvalidValue,
			Message: fmt.Sprintf("tag %q has invalid value %q, allowed: %v", rule.TagKey, value, rule.AllowedValues),
		})
		return
	}

	result.PassedRules = append(result.PassedRules, types.PassedRule{
		RuleID: rule.RuleID,
		TagKey: rule.TagKey,
		Value:  value,
	})
}

func containsValue(allowed []string, value string) bool {
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}
