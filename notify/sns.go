package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/platformsec/tagsentry/telemetry"
)

// PublishAPI is the subset of the SNS client the notifier needs.
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes violations to an SNS topic with per-protocol
// message bodies: a detailed form for email subscribers and a short form
// for SMS.
type SNSNotifier struct {
	client   PublishAPI
	topicARN string
	logger   *telemetry.Logger
}

// NewSNSNotifier creates a notifier publishing to topicARN.
func NewSNSNotifier(client PublishAPI, topicARN string) *SNSNotifier {
	return &SNSNotifier{
		client:   client,
		topicARN: topicARN,
		logger:   telemetry.NewLogger("sns-notifier"),
	}
}

func (n *SNSNotifier) Name() string { return "sns" }

// Notify publishes the violation.
func (n *SNSNotifier) Notify(ctx context.Context, violation Violation) error {
	if n.topicARN == "" {
		return fmt.Errorf("sns topic ARN not configured")
	}

	long := buildLongMessage(violation)
	structure := map[string]string{
		"default": long,
		"email":   long,
		"sms":     buildShortMessage(violation),
	}
	body, err := json.Marshal(structure)
	if err != nil {
		return fmt.Errorf("failed to marshal message structure: %w", err)
	}

	subject := "Tag Compliance Violation: " + violation.ResourceType
	if len(subject) > 100 {
		// SNS rejects subjects over 100 characters
		subject = subject[:100]
	}

	output, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn:         aws.String(n.topicARN),
		Subject:          aws.String(subject),
		Message:          aws.String(string(body)),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.topicARN, err)
	}

	n.logger.WithContext(ctx).Info().
		Str("message_id", aws.ToString(output.MessageId)).
		Str("resource_type", violation.ResourceType).
		Msg("sns notification sent")

	return nil
}
