package notify

import (
	"fmt"
	"strings"
)

const divider = "----------------------------------------"

// buildLongMessage renders the detailed plain-text notification used for
// email and other long-form protocols.
func buildLongMessage(v Violation) string {
	var b strings.Builder

	header := strings.Repeat("=", 60)
	b.WriteString(header + "\n")
	b.WriteString("TAG COMPLIANCE VIOLATION DETECTED\n")
	b.WriteString(header + "\n\n")

	b.WriteString("RESOURCE DETAILS\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "Resource Type: %s\n", v.ResourceType)
	fmt.Fprintf(&b, "Resource IDs: %s\n", strings.Join(v.ResourceIDs, ", "))
	fmt.Fprintf(&b, "Region: %s\n", v.Region)
	fmt.Fprintf(&b, "Account ID: %s\n", v.AccountID)
	fmt.Fprintf(&b, "Created By: %s\n", v.Creator)
	fmt.Fprintf(&b, "Event Time: %s\n\n", v.EventTime)

	if len(v.MissingTags) > 0 {
		b.WriteString("MISSING REQUIRED TAGS\n")
		b.WriteString(divider + "\n")
		for _, tag := range v.MissingTags {
			fmt.Fprintf(&b, "  - %s\n", tag)
		}
		b.WriteString("\n")
	}

	if len(v.InvalidValues) > 0 {
		b.WriteString("INVALID TAG VALUES\n")
		b.WriteString(divider + "\n")
		for _, item := range v.InvalidValues {
			fmt.Fprintf(&b, "  - %s\n", item.TagKey)
			fmt.Fprintf(&b, "    Current value: %s\n", item.CurrentValue)
			fmt.Fprintf(&b, "    Allowed values: %s\n", strings.Join(item.AllowedValues, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("REMEDIATION\n")
	b.WriteString(divider + "\n")
	b.WriteString("Please add the missing tags and correct any invalid values\n")
	b.WriteString("to comply with organizational tagging policies.\n\n")
	fmt.Fprintf(&b, "AWS Console: https://%s.console.aws.amazon.com/resource-groups/home?region=%s\n\n", v.Region, v.Region)
	b.WriteString(header)

	return b.String()
}

// buildShortMessage renders the SMS form, truncated to 160 characters.
func buildShortMessage(v Violation) string {
	resourceID := "unknown"
	if len(v.ResourceIDs) > 0 {
		resourceID = v.ResourceIDs[0]
	}
	if len(resourceID) > 20 {
		resourceID = resourceID[:20]
	}

	var issues []string
	if len(v.MissingTags) > 0 {
		issues = append(issues, "missing: "+strings.Join(firstN(v.MissingTags, 2), ", "))
	}
	if len(v.InvalidValues) > 0 {
		keys := make([]string, 0, 2)
		for i, item := range v.InvalidValues {
			if i == 2 {
				break
			}
			keys = append(keys, item.TagKey)
		}
		issues = append(issues, "invalid: "+strings.Join(keys, ", "))
	}

	msg := fmt.Sprintf("Tag violation: %s %s - %s", v.ResourceType, resourceID, strings.Join(issues, "; "))
	if len(msg) > 160 {
		msg = msg[:157] + "..."
	}
	return msg
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
