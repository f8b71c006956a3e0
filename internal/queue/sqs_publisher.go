package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"parking_checkout/internal/domain"
	"parking_checkout/internal/metrics"
)

const EventPaymentCompleted = "payment.completed"

type SQSPublisher struct {
	sqsClient SQSAPI
	queueURL  string
}

func NewSQSPublisher(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{sqsClient: client, queueURL: queueURL}
}

// PublishPaymentCompleted sends one payment.completed event. The booking id
// is attached as a message attribute for subscription filtering.
func (p *SQSPublisher) PublishPaymentCompleted(ctx context.Context, event domain.PaymentCompletedEvent) error {
	event.EventType = EventPaymentCompleted
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}

	_, err = p.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(EventPaymentCompleted)},
			"booking_id": {DataType: aws.String("Number"), StringValue: aws.String(strconv.FormatInt(event.BookingID, 10))},
		},
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(EventPaymentCompleted, "error").Inc()
		return fmt.Errorf("SQSPublisher.PublishPaymentCompleted: %w", err)
	}
	metrics.EventsPublished.WithLabelValues(EventPaymentCompleted, "ok").Inc()
	return nil
}
