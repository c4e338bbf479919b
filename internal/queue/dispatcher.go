// Package queue provides the SQS-based event dispatcher that hands
// threshold-crossed and schedule-outcome events to the notification
// workers. Delivery mechanics (push, SMS, in-app) live downstream.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"airvault/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Dispatcher implements types.NotificationDispatcher by publishing events
// to the notification queue.
type Dispatcher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher for the given queue URL.
func NewDispatcher(client SQSSender, queueURL string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{client: client, queueURL: queueURL, logger: logger}
}

// Notify serializes the event and sends it to the notification queue.
// The event type and user id travel as message attributes so workers can
// filter without decoding the body.
func (d *Dispatcher) Notify(ctx context.Context, userID string, event types.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Type)),
			},
			"user_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(userID),
			},
		},
	}

	if _, err := d.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send event %s: %w", event.ID, err)
	}

	d.logger.DebugContext(ctx, "event dispatched",
		"event_id", event.ID,
		"event_type", string(event.Type),
		"user_id", userID,
	)
	return nil
}
