package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
)

// SQSAPI is the part of the SQS client the consumer and publisher use.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// MessageHandler processes one message body. A nil error deletes the
// message; otherwise it becomes visible again after the visibility timeout.
type MessageHandler interface {
	HandleBookingEvent(ctx context.Context, body string) error
}

type SQSConsumer struct {
	sqsClient  SQSAPI
	queueURL   string
	handler    MessageHandler
	logger     zerolog.Logger
	retryDelay time.Duration
}

func NewSQSConsumer(client SQSAPI, queueURL string, handler MessageHandler, logger zerolog.Logger) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:  client,
		queueURL:   queueURL,
		handler:    handler,
		logger:     logger.With().Str("component", "booking-events").Logger(),
		retryDelay: 5 * time.Second,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	c.logger.Info().Str("queue_url", c.queueURL).Msg("SQS consumer listening")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("SQS consumer stopping")
			return
		default:
		}

		if !c.poll(ctx) {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

// poll receives and handles one batch. It reports false when the receive
// itself failed and the caller should back off.
func (c *SQSConsumer) poll(ctx context.Context) bool {
	result, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   60,
	})
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error().Err(err).Msg("SQS receive failed")
		}
		return false
	}

	for _, message := range result.Messages {
		if message.Body == nil {
			c.logger.Warn().Msg("SQS message with empty body, deleting")
			c.deleteMessage(ctx, message.ReceiptHandle)
			continue
		}

		if err := c.handler.HandleBookingEvent(ctx, *message.Body); err != nil {
			msgID := ""
			if message.MessageId != nil {
				msgID = *message.MessageId
			}
			c.logger.Warn().Err(err).Str("message_id", msgID).Msg("booking event not processed, will be redelivered")
			continue
		}
		c.deleteMessage(ctx, message.ReceiptHandle)
	}
	return true
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		c.logger.Warn().Msg("SQS message without receipt handle, cannot delete")
		return
	}
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("SQS delete failed")
	}
}
