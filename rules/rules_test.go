package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformsec/tagsentry/types"
)

type fakeScanClient struct {
	pages []*dynamodb.ScanOutput
	err   error
	calls int
}

func (f *fakeScanClient) Scan(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.pages[f.calls]
	f.calls++
	return out, nil
}

func ruleItem(ruleID, tagKey string, allowed []string, resourceTypes []string) map[string]ddbtypes.AttributeValue {
	item := map[string]ddbtypes.AttributeValue{
		"ruleId":  &ddbtypes.AttributeValueMemberS{Value: ruleID},
		"tagKey":  &ddbtypes.AttributeValueMemberS{Value: tagKey},
		"enabled": &ddbtypes.AttributeValueMemberBOOL{Value: true},
	}
	values := make([]ddbtypes.AttributeValue, 0, len(allowed))
	for _, v := range allowed {
		values = append(values, &ddbtypes.AttributeValueMemberS{Value: v})
	}
	item["allowedValues"] = &ddbtypes.AttributeValueMemberL{Value: values}
	if len(resourceTypes) > 0 {
		rts := make([]ddbtypes.AttributeValue, 0, len(resourceTypes))
		for _, rt := range resourceTypes {
			rts = append(rts, &ddbtypes.AttributeValueMemberS{Value: rt})
		}
		item["resourceTypes"] = &ddbtypes.AttributeValueMemberL{Value: rts}
	}
	return item
}

func TestDynamoDBStoreFetch(t *testing.T) {
	client := &fakeScanClient{pages: []*dynamodb.ScanOutput{
		{Items: []map[string]ddbtypes.AttributeValue{
			ruleItem("rule-001", "site", []string{"us", "en"}, nil),
			ruleItem("rule-002", "environment", []string{"dev", "staging", "prod"}, nil),
		}},
	}}

	store := NewDynamoDBStore(client, "TagComplianceRules")
	fetched, err := store.Fetch(context.Background(), "")

	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, "rule-001", fetched[0].RuleID)
	assert.Equal(t, []string{"us", "en"}, fetched[0].AllowedValues)
	assert.True(t, fetched[0].Enabled)
}

func TestDynamoDBStoreFetchPaginates(t *testing.T) {
	client := &fakeScanClient{pages: []*dynamodb.ScanOutput{
		{
			Items: []map[string]ddbtypes.AttributeValue{
				ruleItem("rule-001", "site", nil, nil),
			},
			LastEvaluatedKey: map[string]ddbtypes.AttributeValue{
				"ruleId": &ddbtypes.AttributeValueMemberS{Value: "rule-001"},
			},
		},
		{
			Items: []map[string]ddbtypes.AttributeValue{
				ruleItem("rule-002", "environment", nil, nil),
			},
		},
	}}

	store := NewDynamoDBStore(client, "TagComplianceRules")
	fetched, err := store.Fetch(context.Background(), "")

	require.NoError(t, err)
	assert.Len(t, fetched, 2)
	assert.Equal(t, 2, client.calls)
}

func TestDynamoDBStoreFetchFiltersByResourceType(t *testing.T) {
	client := &fakeScanClient{pages: []*dynamodb.ScanOutput{
		{Items: []map[string]ddbtypes.AttributeValue{
			ruleItem("rule-001", "environment", nil, nil),
			ruleItem("rule-002", "backup", nil, []string{"rds:db"}),
		}},
	}}

	store := NewDynamoDBStore(client, "TagComplianceRules")
	fetched, err := store.Fetch(context.Background(), "ec2:instance")

	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, "rule-001", fetched[0].RuleID)
}

func TestDynamoDBStoreFetchError(t *testing.T) {
	client := &fakeScanClient{err: errors.New("throttled")}
	store := NewDynamoDBStore(client, "TagComplianceRules")

	_, err := store.Fetch(context.Background(), "")
	assert.ErrorContains(t, err, "failed to scan rules table")
}

func TestStaticSourceSkipsDisabled(t *testing.T) {
	source := NewStaticSource([]types.Rule{
		{RuleID: "r1", TagKey: "environment", Enabled: true},
		{RuleID: "r2", TagKey: "legacy", Enabled: false},
	})

	fetched, err := source.Fetch(context.Background(), "")

	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, "r1", fetched[0].RuleID)
}

func TestLoadStaticSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - ruleId: rule-001
    tagKey: site
    allowedValues: ["us", "en"]
    enabled: true
  - ruleId: rule-002
    tagKey: cost-center
    allowedValues: []
    enabled: true
    resourceTypes: ["ec2:instance"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	source, err := LoadStaticSource(path)
	require.NoError(t, err)

	all, err := source.Fetch(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := source.Fetch(context.Background(), "s3:bucket")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "rule-001", scoped[0].RuleID)
}

func TestLoadStaticSourceMissingFile(t *testing.T) {
	_, err := LoadStaticSource("/nonexistent/rules.yaml")
	assert.ErrorContains(t, err, "failed to read rules file")
}
