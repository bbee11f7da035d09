// Package normalizer converts provider-specific tag representations into
// the canonical []types.Tag form. All functions are pure and total:
// malformed input yields an empty list, never an error.
package normalizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/platformsec/tagsentry/types"
)

// Normalize converts an arbitrary tag payload into canonical tags.
// Supported shapes:
//   - []any of objects carrying key/value fields under any casing
//     (EC2 tagSet items, RDS tagList, ASG request tags)
//   - map[string]any of key -> value (Lambda, EKS style)
//
// List order is preserved, duplicates included. Map entries are emitted
// sorted by key so output is stable across runs.
func Normalize(raw any) []types.Tag {
	switch v := raw.(type) {
	case []any:
		return normalizeList(v)
	case map[string]any:
		return normalizeMap(v)
	default:
		return []types.Tag{}
	}
}

// NormalizeTagSet extracts tags from the EC2-style wrapper
// {"tagSet": {"items": [...]}} found on instances, volumes, VPCs and subnets.
func NormalizeTagSet(container map[string]any) []types.Tag {
	tagSet, ok := container["tagSet"].(map[string]any)
	if !ok {
		return []types.Tag{}
	}
	items, ok := tagSet["items"].([]any)
	if !ok {
		return []types.Tag{}
	}
	return normalizeList(items)
}

func normalizeList(items []any) []types.Tag {
	tags := []types.Tag{}
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		key, keyOK := fieldCaseInsensitive(entry, "key")
		value, _ := fieldCaseInsensitive(entry, "value")
		if !keyOK {
			continue
		}
		tags = append(tags, types.Tag{Key: key, Value: value})
	}
	return tags
}

func normalizeMap(m map[string]any) []types.Tag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, types.Tag{Key: k, Value: stringify(m[k])})
	}
	return tags
}

// fieldCaseInsensitive finds a field regardless of casing ("key", "Key",
// "KEY"). CloudTrail payloads are not consistent about this across services.
func fieldCaseInsensitive(entry map[string]any, name string) (string, bool) {
	if v, ok := entry[name]; ok {
		return stringify(v), true
	}
	for k, v := range entry {
		if strings.EqualFold(k, name) {
			return stringify(v), true
		}
	}
	return "", false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
