package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"

	"github.com/platformsec/tagsentry/telemetry"
	"github.com/platformsec/tagsentry/types"
)

// LookupEventsAPI is the subset of the CloudTrail client the backfill needs.
type LookupEventsAPI interface {
	LookupEvents(ctx context.Context, params *cloudtrail.LookupEventsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error)
}

// CloudTrailClient replays recent management events so resources created
// before the pipeline was deployed can be checked retroactively.
type CloudTrailClient struct {
	client LookupEventsAPI
	logger *telemetry.Logger
}

// NewCloudTrailClient creates a client over the given API.
func NewCloudTrailClient(client LookupEventsAPI) *CloudTrailClient {
	return &CloudTrailClient{
		client: client,
		logger: telemetry.NewLogger("cloudtrail-client"),
	}
}

// NewCloudTrailClientFromConfig creates a client with the real SDK.
func NewCloudTrailClientFromConfig(cfg aws.Config) *CloudTrailClient {
	return NewCloudTrailClient(cloudtrail.NewFromConfig(cfg))
}

// QueryWindow returns the change events recorded in the given time window,
// oldest first. Events whose raw JSON cannot be parsed are skipped.
func (c *CloudTrailClient) QueryWindow(ctx context.Context, start, end time.Time) ([]types.ChangeEvent, error) {
	var events []types.ChangeEvent
	var nextToken *string

	for {
		output, err := c.client.LookupEvents(ctx, &cloudtrail.LookupEventsInput{
			StartTime:  &start,
			EndTime:    &end,
			MaxResults: aws.Int32(50),
			NextToken:  nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to lookup CloudTrail events: %w", err)
		}

		for _, event := range output.Events {
			parsed, err := ParseCloudTrailRecord([]byte(aws.ToString(event.CloudTrailEvent)))
			if err != nil {
				c.logger.WithContext(ctx).Debug().
					Err(err).
					Str("event_id", aws.ToString(event.EventId)).
					Msg("skipping unparseable CloudTrail record")
				continue
			}
			events = append(events, parsed)
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	c.logger.WithContext(ctx).Info().
		Time("start", start).
		Time("end", end).
		Int("events", len(events)).
		Msg("CloudTrail window queried")

	return events, nil
}

// cloudTrailRecord is the raw JSON shape of one CloudTrail management event.
type cloudTrailRecord struct {
	EventSource        string         `json:"eventSource"`
	EventName          string         `json:"eventName"`
	AWSRegion          string         `json:"awsRegion"`
	RecipientAccountID string         `json:"recipientAccountId"`
	EventTime          string         `json:"eventTime"`
	UserIdentity       userIdentity   `json:"userIdentity"`
	RequestParameters  map[string]any `json:"requestParameters"`
	ResponseElements   map[string]any `json:"responseElements"`
}

type userIdentity struct {
	ARN      string `json:"arn"`
	UserName string `json:"userName"`
}

// ParseCloudTrailRecord decodes a raw CloudTrail event JSON document into a
// change event envelope.
func ParseCloudTrailRecord(raw []byte) (types.ChangeEvent, error) {
	var record cloudTrailRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return types.ChangeEvent{}, fmt.Errorf("failed to parse CloudTrail record: %w", err)
	}
	if record.EventSource == "" || record.EventName == "" {
		return types.ChangeEvent{}, fmt.Errorf("CloudTrail record missing event source or name")
	}

	return types.ChangeEvent{
		Source:            record.EventSource,
		Action:            record.EventName,
		Region:            record.AWSRegion,
		AccountID:         record.RecipientAccountID,
		EventTime:         record.EventTime,
		Creator:           record.UserIdentity.creator(),
		RequestParameters: record.RequestParameters,
		ResponseElements:  record.ResponseElements,
	}, nil
}

// creator prefers the full ARN over the bare user name.
func (u userIdentity) creator() string {
	if u.ARN != "" {
		return u.ARN
	}
	if u.UserName != "" {
		return u.UserName
	}
	return "Unknown"
}
