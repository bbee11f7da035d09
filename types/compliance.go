package types

// FailReason explains why a rule failed.
type FailReason string

const (
	ReasonMissing      FailReason = "missing"
	ReasonInvalidValue FailReason = "invalid_value"
)

// PassedRule records a rule satisfied by the resource's tags.
type PassedRule struct {
	RuleID string `json:"ruleId"`
	TagKey string `json:"tagKey"`
	Value  string `json:"value"`
}

// FailedRule records a rule the resource's tags did not satisfy.
type FailedRule struct {
	RuleID  string     `json:"ruleId"`
	TagKey  string     `json:"tagKey"`
	Reason  FailReason `json:"reason"`
	Message string     `json:"message"`
}

// InvalidValue records a present tag whose value is outside the allowed set.
type InvalidValue struct {
	TagKey        string   `json:"tagKey"`
	CurrentValue  string   `json:"currentValue"`
	AllowedValues []string `json:"allowedValues"`
}

// ComplianceResult is the outcome of evaluating a tag set against rules.
// Invariants: Compliant == (len(FailedRules) == 0) and
// TotalRules == len(PassedRules) + len(FailedRules).
type ComplianceResult struct {
	Compliant     bool           `json:"compliant"`
	TotalRules    int            `json:"total_rules"`
	PassedRules   []PassedRule   `json:"passed_rules"`
	FailedRules   []FailedRule   `json:"failed_rules"`
	MissingTags   []string       `json:"missing_tags"`
	InvalidValues []InvalidValue `json:"invalid_values"`
}

// PassedCount returns the number of satisfied rules.
func (r ComplianceResult) PassedCount() int { return len(r.PassedRules) }

// FailedCount returns the number of violated rules.
func (r ComplianceResult) FailedCount() int { return len(r.FailedRules) }
