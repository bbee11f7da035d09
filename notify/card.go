package notify

import (
	"fmt"
	"strings"
)

// buildComplianceCard renders the Lark interactive card for a violation.
// The card uses a red header and lark_md blocks so keys and values read
// cleanly in the chat client.
func buildComplianceCard(v Violation) map[string]any {
	elements := []any{
		markdownBlock(resourceSection(v)),
		map[string]any{"tag": "hr"},
	}

	if len(v.MissingTags) > 0 {
		elements = append(elements, markdownBlock(missingSection(v)))
	}
	if len(v.InvalidValues) > 0 {
		elements = append(elements, markdownBlock(invalidSection(v)))
	}

	elements = append(elements,
		map[string]any{"tag": "hr"},
		markdownBlock(remediationSection(v)),
	)

	return map[string]any{
		"config": map[string]any{"wide_screen_mode": true},
		"header": map[string]any{
			"template": "red",
			"title": map[string]any{
				"tag":     "plain_text",
				"content": "Tag Compliance Violation",
			},
		},
		"elements": elements,
	}
}

func markdownBlock(content string) map[string]any {
	return map[string]any{
		"tag": "div",
		"text": map[string]any{
			"tag":     "lark_md",
			"content": content,
		},
	}
}

func resourceSection(v Violation) string {
	var b strings.Builder
	b.WriteString("**Resource Details**\n")
	fmt.Fprintf(&b, "Type: %s\n", v.ResourceType)
	fmt.Fprintf(&b, "IDs: %s\n", strings.Join(v.ResourceIDs, ", "))
	fmt.Fprintf(&b, "Region: %s | Account: %s\n", v.Region, v.AccountID)
	fmt.Fprintf(&b, "Created by: %s at %s", v.Creator, v.EventTime)
	return b.String()
}

func missingSection(v Violation) string {
	var b strings.Builder
	b.WriteString("**Missing Required Tags**\n")
	for _, tag := range v.MissingTags {
		fmt.Fprintf(&b, "- `%s`\n", tag)
	}
	return strings.TrimRight(b.String(), "\n")
}

func invalidSection(v Violation) string {
	var b strings.Builder
	b.WriteString("**Invalid Tag Values**\n")
	for _, item := range v.InvalidValues {
		fmt.Fprintf(&b, "- `%s`: %q (allowed: %s)\n",
			item.TagKey, item.CurrentValue, strings.Join(item.AllowedValues, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func remediationSection(v Violation) string {
	return fmt.Sprintf("**Remediation**\nAdd the missing tags and correct invalid values to comply with tagging policy.\n[Open AWS Console](https://%s.console.aws.amazon.com/resource-groups/home?region=%s)",
		v.Region, v.Region)
}
