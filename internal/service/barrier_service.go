package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/rs/zerolog"

	"parking_checkout/internal/domain"
	"parking_checkout/internal/metrics"
)

const (
	barrierCommandOpen = "open"
	exitBarrierTopic   = "smart_parking/command/barriers/exit"
)

// IoTPublisher is the part of the IoT data plane client used to reach the
// barrier controllers.
type IoTPublisher interface {
	Publish(ctx context.Context, params *iotdataplane.PublishInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error)
}

// BarrierService opens the lot's exit barrier once a booking is paid.
type BarrierService struct {
	iotDataClient IoTPublisher
	controllerID  string
	logger        zerolog.Logger
}

func NewBarrierService(client IoTPublisher, controllerID string, logger zerolog.Logger) *BarrierService {
	return &BarrierService{
		iotDataClient: client,
		controllerID:  controllerID,
		logger:        logger.With().Str("component", "barrier").Logger(),
	}
}

func (s *BarrierService) OpenExit(ctx context.Context, bookingID int64, requestID string) error {
	payload := domain.BarrierControlCommandPayload{
		Command:      barrierCommandOpen,
		RequestID:    requestID,
		ControllerID: s.controllerID,
		BookingID:    bookingID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal barrier command: %w", err)
	}

	_, err = s.iotDataClient.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(exitBarrierTopic),
		Qos:     1,
		Payload: payloadBytes,
	})
	if err != nil {
		metrics.BarrierCommands.WithLabelValues("error").Inc()
		return fmt.Errorf("publish barrier command: %w", err)
	}

	metrics.BarrierCommands.WithLabelValues("ok").Inc()
	s.logger.Info().
		Str("request_id", requestID).
		Str("controller_id", s.controllerID).
		Int64("booking_id", bookingID).
		Msg("exit barrier open command sent")
	return nil
}
