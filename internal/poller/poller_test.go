package poller

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformsec/tagsentry/orchestrator"
	"github.com/platformsec/tagsentry/types"
)

type fakeSQS struct {
	messages []sqstypes.Message
	received bool
	deleted  []string
	cancel   context.CancelFunc
}

func (f *fakeSQS) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.received {
		// stop the loop after the first batch
		f.cancel()
		return &sqs.ReceiveMessageOutput{}, nil
	}
	f.received = true
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeProcessor struct {
	events  []types.ChangeEvent
	outcome orchestrator.Outcome
}

func (f *fakeProcessor) Process(_ context.Context, event types.ChangeEvent) orchestrator.Outcome {
	f.events = append(f.events, event)
	return f.outcome
}

const envelopeBody = `{
	"detail-type": "AWS API Call via CloudTrail",
	"detail": {
		"eventSource": "ec2.amazonaws.com",
		"eventName": "RunInstances",
		"awsRegion": "us-east-1",
		"userIdentity": {"arn": "arn:aws:iam::123456789012:user/admin"}
	}
}`

func runPoller(t *testing.T, client *fakeSQS, processor Processor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	client.cancel = cancel

	p := New(client, "https://sqs.us-east-1.amazonaws.com/123456789012/tag-events", processor)
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPollerProcessesAndDeletes(t *testing.T) {
	client := &fakeSQS{messages: []sqstypes.Message{
		{Body: aws.String(envelopeBody), ReceiptHandle: aws.String("rh-1")},
	}}
	processor := &fakeProcessor{outcome: orchestrator.Outcome{Status: orchestrator.StatusCompleted}}

	runPoller(t, client, processor)

	require.Len(t, processor.events, 1)
	assert.Equal(t, "ec2.amazonaws.com", processor.events[0].Source)
	assert.Equal(t, "RunInstances", processor.events[0].Action)
	assert.Equal(t, []string{"rh-1"}, client.deleted)
}

func TestPollerAcceptsBareRecord(t *testing.T) {
	client := &fakeSQS{messages: []sqstypes.Message{
		{Body: aws.String(`{"eventSource": "s3.amazonaws.com", "eventName": "CreateBucket"}`), ReceiptHandle: aws.String("rh-1")},
	}}
	processor := &fakeProcessor{outcome: orchestrator.Outcome{Status: orchestrator.StatusNotApplicable}}

	runPoller(t, client, processor)

	require.Len(t, processor.events, 1)
	assert.Equal(t, "CreateBucket", processor.events[0].Action)
}

func TestPollerDropsUnparseableMessages(t *testing.T) {
	client := &fakeSQS{messages: []sqstypes.Message{
		{Body: aws.String("not json"), ReceiptHandle: aws.String("rh-bad")},
	}}
	processor := &fakeProcessor{}

	runPoller(t, client, processor)

	assert.Empty(t, processor.events)
	assert.Equal(t, []string{"rh-bad"}, client.deleted, "poison messages are deleted")
}

func TestPollerKeepsMessageOnProcessingError(t *testing.T) {
	client := &fakeSQS{messages: []sqstypes.Message{
		{Body: aws.String(envelopeBody), ReceiptHandle: aws.String("rh-1")},
	}}
	processor := &fakeProcessor{outcome: orchestrator.Outcome{
		Status: orchestrator.StatusError,
		Err:    errors.New("rules unavailable"),
	}}

	runPoller(t, client, processor)

	require.Len(t, processor.events, 1)
	assert.Empty(t, client.deleted, "failed messages stay queued for redelivery")
}
