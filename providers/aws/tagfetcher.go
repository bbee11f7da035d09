// Package aws fetches live resource tags and CloudTrail history from AWS.
package aws

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	autoscalingtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/platformsec/tagsentry/telemetry"
	"github.com/platformsec/tagsentry/types"
)

// Narrow client interfaces so tests can inject fakes.

type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DescribeTags(ctx context.Context, params *ec2.DescribeTagsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeTagsOutput, error)
}

type S3API interface {
	GetBucketTagging(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
}

type RDSAPI interface {
	ListTagsForResource(ctx context.Context, params *rds.ListTagsForResourceInput, optFns ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error)
}

type LambdaAPI interface {
	ListTags(ctx context.Context, params *lambda.ListTagsInput, optFns ...func(*lambda.Options)) (*lambda.ListTagsOutput, error)
}

type ELBAPI interface {
	DescribeTags(ctx context.Context, params *elasticloadbalancingv2.DescribeTagsInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTagsOutput, error)
}

type AutoScalingAPI interface {
	DescribeTags(ctx context.Context, params *autoscaling.DescribeTagsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeTagsOutput, error)
}

// Clients bundles the per-service clients the fetcher needs.
type Clients struct {
	EC2         EC2API
	S3          S3API
	RDS         RDSAPI
	Lambda      LambdaAPI
	ELB         ELBAPI
	AutoScaling AutoScalingAPI
}

// TagFetcher retrieves the current tags of a resource when the change event
// itself carried none.
type TagFetcher struct {
	clients Clients
	logger  *telemetry.Logger
}

// NewTagFetcher creates a fetcher over the given clients.
func NewTagFetcher(clients Clients) *TagFetcher {
	return &TagFetcher{
		clients: clients,
		logger:  telemetry.NewLogger("tag-fetcher"),
	}
}

// NewTagFetcherFromConfig creates a fetcher with real SDK clients.
func NewTagFetcherFromConfig(cfg aws.Config) *TagFetcher {
	return NewTagFetcher(Clients{
		EC2:         ec2.NewFromConfig(cfg),
		S3:          s3.NewFromConfig(cfg),
		RDS:         rds.NewFromConfig(cfg),
		Lambda:      lambda.NewFromConfig(cfg),
		ELB:         elasticloadbalancingv2.NewFromConfig(cfg),
		AutoScaling: autoscaling.NewFromConfig(cfg),
	})
}

// FetchTags returns the current tags for the first resource ID of the
// descriptor. Batch descriptors share one tag specification at creation
// time, so one lookup is representative.
func (f *TagFetcher) FetchTags(ctx context.Context, desc types.ResourceDescriptor) ([]types.Tag, error) {
	if len(desc.ResourceIDs) == 0 {
		return []types.Tag{}, nil
	}
	id := desc.ResourceIDs[0]

	f.logger.WithContext(ctx).Debug().
		Str("resource_type", desc.ResourceType).
		Str("resource_id", id).
		Msg("fetching live tags")

	switch {
	case desc.ResourceType == "ec2:instance":
		return f.fetchInstanceTags(ctx, id)
	case desc.ResourceType == "ec2:volume":
		return f.fetchVolumeTags(ctx, id)
	case strings.HasPrefix(desc.ResourceType, "ec2:"):
		// vpc, subnet, security-group, eip all resolve via DescribeTags
		return f.fetchEC2ResourceTags(ctx, id)
	case desc.ResourceType == "s3:bucket":
		return f.fetchBucketTags(ctx, id)
	case strings.HasPrefix(desc.ResourceType, "rds:"):
		return f.fetchRDSTags(ctx, desc, id)
	case desc.ResourceType == "lambda:function":
		return f.fetchLambdaTags(ctx, desc, id)
	case desc.ResourceType == "elb:loadbalancer":
		return f.fetchELBTags(ctx, desc)
	case desc.ResourceType == "autoscaling:group":
		return f.fetchASGTags(ctx, id)
	default:
		return []types.Tag{}, fmt.Errorf("no tag lookup for resource type %s", desc.ResourceType)
	}
}

func (f *TagFetcher) fetchInstanceTags(ctx context.Context, id string) ([]types.Tag, error) {
	output, err := f.clients.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", id, err)
	}

	tags := []types.Tag{}
	for _, reservation := range output.Reservations {
		for _, instance := range reservation.Instances {
			tags = convertEC2Tags(instance.Tags)
		}
	}
	return tags, nil
}

func (f *TagFetcher) fetchVolumeTags(ctx context.Context, id string) ([]types.Tag, error) {
	output, err := f.clients.EC2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		VolumeIds: []string{id},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe volume %s: %w", id, err)
	}

	tags := []types.Tag{}
	for _, volume := range output.Volumes {
		tags = convertEC2Tags(volume.Tags)
	}
	return tags, nil
}

func (f *TagFetcher) fetchEC2ResourceTags(ctx context.Context, id string) ([]types.Tag, error) {
	output, err := f.clients.EC2.DescribeTags(ctx, &ec2.DescribeTagsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("resource-id"), Values: []string{id}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe tags for %s: %w", id, err)
	}

	tags := make([]types.Tag, 0, len(output.Tags))
	for _, tag := range output.Tags {
		tags = append(tags, types.Tag{Key: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
	}
	return tags, nil
}

func (f *TagFetcher) fetchBucketTags(ctx context.Context, bucket string) ([]types.Tag, error) {
	output, err := f.clients.S3.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		// A bucket with no tags is not an error
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchTagSet" {
			return []types.Tag{}, nil
		}
		return nil, fmt.Errorf("failed to get bucket tagging for %s: %w", bucket, err)
	}

	tags := make([]types.Tag, 0, len(output.TagSet))
	for _, tag := range output.TagSet {
		tags = append(tags, types.Tag{Key: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
	}
	return tags, nil
}

func (f *TagFetcher) fetchRDSTags(ctx context.Context, desc types.ResourceDescriptor, id string) ([]types.Tag, error) {
	arn := desc.ResourceARN
	if arn == "" {
		arn = buildRDSARN(desc, id)
	}

	output, err := f.clients.RDS.ListTagsForResource(ctx, &rds.ListTagsForResourceInput{
		ResourceName: aws.String(arn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tags for %s: %w", arn, err)
	}

	tags := make([]types.Tag, 0, len(output.TagList))
	for _, tag := range output.TagList {
		tags = append(tags, types.Tag{Key: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
	}
	return tags, nil
}

func (f *TagFetcher) fetchLambdaTags(ctx context.Context, desc types.ResourceDescriptor, id string) ([]types.Tag, error) {
	arn := desc.ResourceARN
	if arn == "" {
		arn = id
	}

	output, err := f.clients.Lambda.ListTags(ctx, &lambda.ListTagsInput{
		Resource: aws.String(arn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tags for function %s: %w", arn, err)
	}

	tags := make([]types.Tag, 0, len(output.Tags))
	for _, key := range sortedKeys(output.Tags) {
		tags = append(tags, types.Tag{Key: key, Value: output.Tags[key]})
	}
	return tags, nil
}

func (f *TagFetcher) fetchELBTags(ctx context.Context, desc types.ResourceDescriptor) ([]types.Tag, error) {
	if desc.ResourceARN == "" {
		return []types.Tag{}, fmt.Errorf("load balancer tag lookup requires an ARN")
	}

	output, err := f.clients.ELB.DescribeTags(ctx, &elasticloadbalancingv2.DescribeTagsInput{
		ResourceArns: []string{desc.ResourceARN},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe tags for %s: %w", desc.ResourceARN, err)
	}

	tags := []types.Tag{}
	for _, description := range output.TagDescriptions {
		for _, tag := range description.Tags {
			tags = append(tags, types.Tag{Key: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
		}
	}
	return tags, nil
}

func (f *TagFetcher) fetchASGTags(ctx context.Context, name string) ([]types.Tag, error) {
	output, err := f.clients.AutoScaling.DescribeTags(ctx, &autoscaling.DescribeTagsInput{
		Filters: []autoscalingtypes.Filter{
			{Name: aws.String("auto-scaling-group"), Values: []string{name}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe tags for group %s: %w", name, err)
	}

	tags := make([]types.Tag, 0, len(output.Tags))
	for _, tag := range output.Tags {
		tags = append(tags, types.Tag{Key: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
	}
	return tags, nil
}

// buildRDSARN constructs the resource ARN from the descriptor's envelope
// when the event only carried an identifier.
func buildRDSARN(desc types.ResourceDescriptor, id string) string {
	kind := "db"
	if desc.ResourceType == "rds:cluster" {
		kind = "cluster"
	}
	return fmt.Sprintf("arn:aws:rds:%s:%s:%s:%s", desc.Region, desc.AccountID, kind, id)
}

// sortedKeys keeps map-shaped tag output stable across calls.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func convertEC2Tags(ec2Tags []ec2types.Tag) []types.Tag {
	tags := make([]types.Tag, 0, len(ec2Tags))
	for _, tag := range ec2Tags {
		tags = append(tags, types.Tag{Key: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
	}
	return tags
}
