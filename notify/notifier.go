// Package notify delivers tag compliance violation alerts.
package notify

import (
	"context"

	"github.com/platformsec/tagsentry/types"
)

// Violation carries everything a channel needs to describe a non-compliant
// resource to a human.
type Violation struct {
	ResourceType  string               `json:"resource_type"`
	ResourceIDs   []string             `json:"resource_ids"`
	Region        string               `json:"region"`
	AccountID     string               `json:"account_id"`
	Creator       string               `json:"creator"`
	EventTime     string               `json:"event_time"`
	MissingTags   []string             `json:"missing_tags"`
	InvalidValues []types.InvalidValue `json:"invalid_values"`
}

// Notifier delivers a violation to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, violation Violation) error
}

// NewViolation builds a violation from a descriptor and its verdict.
func NewViolation(desc types.ResourceDescriptor, result types.ComplianceResult) Violation {
	creator := desc.Creator
	if creator == "" {
		creator = "Unknown"
	}
	eventTime := desc.EventTime
	if eventTime == "" {
		eventTime = "Unknown"
	}
	return Violation{
		ResourceType:  desc.ResourceType,
		ResourceIDs:   desc.ResourceIDs,
		Region:        desc.Region,
		AccountID:     desc.AccountID,
		Creator:       creator,
		EventTime:     eventTime,
		MissingTags:   result.MissingTags,
		InvalidValues: result.InvalidValues,
	}
}
