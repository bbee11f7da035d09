package rules

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/platformsec/tagsentry/telemetry"
	"github.com/platformsec/tagsentry/types"
)

// ScanAPI is the subset of the DynamoDB client the store needs.
type ScanAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoDBStore fetches rules from a DynamoDB table. Only enabled rules are
// returned; resource-type filtering happens client-side because the rule
// set is small.
type DynamoDBStore struct {
	client ScanAPI
	table  string
	logger *telemetry.Logger
}

// NewDynamoDBStore creates a rule store backed by the given table.
func NewDynamoDBStore(client ScanAPI, table string) *DynamoDBStore {
	return &DynamoDBStore{
		client: client,
		table:  table,
		logger: telemetry.NewLogger("rule-store"),
	}
}

// Fetch scans for enabled rules, optionally filtered by resource type.
func (s *DynamoDBStore) Fetch(ctx context.Context, resourceType string) ([]types.Rule, error) {
	var rules []types.Rule
	var startKey map[string]ddbtypes.AttributeValue

	for {
		output, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.table),
			FilterExpression: aws.String("enabled = :enabled"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":enabled": &ddbtypes.AttributeValueMemberBOOL{Value: true},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan rules table %s: %w", s.table, err)
		}

		var page []types.Rule
		if err := attributevalue.UnmarshalListOfMaps(output.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
		}
		rules = append(rules, page...)

		if output.LastEvaluatedKey == nil {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	filtered := filterByResourceType(rules, resourceType)

	s.logger.WithContext(ctx).Debug().
		Str("table", s.table).
		Str("resource_type", resourceType).
		Int("rules", len(filtered)).
		Msg("fetched tag rules")

	return filtered, nil
}
