package notify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	input *sns.PublishInput
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSNSNotify(t *testing.T) {
	client := &fakePublisher{}
	notifier := NewSNSNotifier(client, "arn:aws:sns:us-east-1:123456789012:tag-violations")

	err := notifier.Notify(context.Background(), sampleViolation())

	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, "json", aws.ToString(client.input.MessageStructure))
	assert.Equal(t, "Tag Compliance Violation: ec2:instance", aws.ToString(client.input.Subject))

	var structure map[string]string
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.Message)), &structure))
	assert.Contains(t, structure["email"], "TAG COMPLIANCE VIOLATION DETECTED")
	assert.LessOrEqual(t, len(structure["sms"]), 160)
	assert.Equal(t, structure["default"], structure["email"])
}

func TestSNSNotifySubjectCap(t *testing.T) {
	client := &fakePublisher{}
	notifier := NewSNSNotifier(client, "arn:aws:sns:us-east-1:123456789012:tag-violations")

	v := sampleViolation()
	v.ResourceType = strings.Repeat("x", 120)

	require.NoError(t, notifier.Notify(context.Background(), v))
	assert.Len(t, aws.ToString(client.input.Subject), 100)
}

func TestSNSNotifyMissingTopic(t *testing.T) {
	notifier := NewSNSNotifier(&fakePublisher{}, "")

	err := notifier.Notify(context.Background(), sampleViolation())

	assert.ErrorContains(t, err, "topic ARN not configured")
}
