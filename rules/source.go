// Package rules provides sources of tag compliance rules.
package rules

import (
	"context"

	"github.com/platformsec/tagsentry/types"
)

// Source fetches the enabled rules applicable to a resource type. An empty
// resourceType fetches all enabled rules.
type Source interface {
	Fetch(ctx context.Context, resourceType string) ([]types.Rule, error)
}

// filterByResourceType keeps rules in scope for the given type. Rules with
// no resource types apply to everything.
func filterByResourceType(rules []types.Rule, resourceType string) []types.Rule {
	if resourceType == "" {
		return rules
	}
	filtered := make([]types.Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.AppliesTo(resourceType) {
			filtered = append(filtered, rule)
		}
	}
	return filtered
}
