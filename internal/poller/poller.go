// Package poller consumes change events from an SQS queue fed by
// EventBridge and hands them to the compliance pipeline.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/platformsec/tagsentry/orchestrator"
	awsprovider "github.com/platformsec/tagsentry/providers/aws"
	"github.com/platformsec/tagsentry/telemetry"
	"github.com/platformsec/tagsentry/types"
)

const (
	maxMessages     = 10
	waitTimeSeconds = 20
)

// SQSAPI is the subset of the SQS client the poller needs.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Processor runs the compliance pipeline for one event.
type Processor interface {
	Process(ctx context.Context, event types.ChangeEvent) orchestrator.Outcome
}

// Poller long-polls a queue and processes each message exactly once per
// receive. Messages that fail to parse are deleted so they do not loop;
// messages whose processing errors stay on the queue for redelivery.
type Poller struct {
	client    SQSAPI
	queueURL  string
	processor Processor
	logger    *telemetry.Logger

	processed atomic.Int64
}

// New creates a poller for queueURL.
func New(client SQSAPI, queueURL string, processor Processor) *Poller {
	return &Poller{
		client:    client,
		queueURL:  queueURL,
		processor: processor,
		logger:    telemetry.NewLogger("poller"),
	}
}

// Run polls until ctx is canceled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.WithContext(ctx).Info().
		Str("queue_url", p.queueURL).
		Msg("poller started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// transient receive failures should not kill the daemon
			p.logger.LogCollaboratorError(ctx, "receive_messages", err)
		}
	}
}

// Processed returns the number of messages handled, used by tests and the
// serve-mode status endpoint.
func (p *Poller) Processed() int64 {
	return p.processed.Load()
}

func (p *Poller) pollOnce(ctx context.Context) error {
	output, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.queueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     waitTimeSeconds,
	})
	if err != nil {
		return err
	}

	for _, message := range output.Messages {
		p.handleMessage(ctx, aws.ToString(message.Body), message.ReceiptHandle)
	}
	return nil
}

func (p *Poller) handleMessage(ctx context.Context, body string, receiptHandle *string) {
	event, err := decodeEnvelope([]byte(body))
	if err != nil {
		p.logger.WithContext(ctx).Warn().
			Err(err).
			Msg("dropping unparseable message")
		p.deleteMessage(ctx, receiptHandle)
		return
	}

	outcome := p.processor.Process(ctx, event)
	if outcome.Status == orchestrator.StatusError {
		// leave the message for redelivery
		return
	}

	p.processed.Add(1)
	p.deleteMessage(ctx, receiptHandle)
}

func (p *Poller) deleteMessage(ctx context.Context, receiptHandle *string) {
	_, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		p.logger.LogCollaboratorError(ctx, "delete_message", err)
	}
}

// decodeEnvelope accepts either an EventBridge envelope with the CloudTrail
// record in detail, or a bare CloudTrail record.
func decodeEnvelope(body []byte) (types.ChangeEvent, error) {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return types.ChangeEvent{}, fmt.Errorf("failed to parse message body: %w", err)
	}

	record := body
	if len(envelope.Detail) > 0 {
		record = envelope.Detail
	}
	return awsprovider.ParseCloudTrailRecord(record)
}
