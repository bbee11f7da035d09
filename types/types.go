package types

// Tag is a single key/value metadata pair attached to a cloud resource.
// Keys are not required to be unique within a raw tag set; normalization
// preserves every entry in encounter order.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ChangeEvent is the envelope of a CloudTrail API call notification as
// delivered by EventBridge. Request and response payloads are schema-less
// because their shape varies per provider action.
type ChangeEvent struct {
	Source            string         `json:"eventSource"`
	Action            string         `json:"eventName"`
	Region            string         `json:"awsRegion"`
	AccountID         string         `json:"recipientAccountId"`
	EventTime         string         `json:"eventTime"`
	Creator           string         `json:"creator"`
	RequestParameters map[string]any `json:"requestParameters"`
	ResponseElements  map[string]any `json:"responseElements"`
}

// ResourceDescriptor is the canonical summary of what a change event
// created or mutated. A descriptor is only produced when both ResourceType
// and ResourceIDs are known; otherwise the classifier reports no match.
type ResourceDescriptor struct {
	ResourceType string   `json:"resource_type"`
	ResourceIDs  []string `json:"resource_ids"`
	ResourceARN  string   `json:"resource_arn,omitempty"`
	Tags         []Tag    `json:"tags"`
	SkipCheck    bool     `json:"skip_check,omitempty"`
	Region       string   `json:"region"`
	AccountID    string   `json:"account_id"`
	EventName    string   `json:"event_name"`
	EventSource  string   `json:"event_source"`
	EventTime    string   `json:"event_time"`
	Creator      string   `json:"creator"`
}

// Rule requires a tag key to be present, optionally restricted to a set of
// allowed values and optionally scoped to specific resource types.
type Rule struct {
	RuleID        string   `json:"ruleId" yaml:"ruleId" dynamodbav:"ruleId"`
	TagKey        string   `json:"tagKey" yaml:"tagKey" dynamodbav:"tagKey"`
	AllowedValues []string `json:"allowedValues" yaml:"allowedValues" dynamodbav:"allowedValues"`
	Enabled       bool     `json:"enabled" yaml:"enabled" dynamodbav:"enabled"`
	ResourceTypes []string `json:"resourceTypes,omitempty" yaml:"resourceTypes,omitempty" dynamodbav:"resourceTypes,omitempty"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty" dynamodbav:"description,omitempty"`
}

// AppliesTo reports whether the rule is in scope for a resource type.
// A rule with no resource types applies to everything.
func (r Rule) AppliesTo(resourceType string) bool {
	if len(r.ResourceTypes) == 0 {
		return true
	}
	for _, rt := range r.ResourceTypes {
		if rt == resourceType {
			return true
		}
	}
	return false
}
