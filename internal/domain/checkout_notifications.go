// File: internal/domain/checkout_notifications.go
package domain

import "time"

type CheckoutEventType string

const (
	CheckoutEstimateUpdated CheckoutEventType = "estimate_updated"
	CheckoutPaymentUpdated  CheckoutEventType = "payment_updated"
	CheckoutClosed          CheckoutEventType = "checkout_closed"
)

// CheckoutNotification is pushed to the browser over the websocket.
type CheckoutNotification struct {
	CheckoutID string            `json:"checkout_id"`
	BookingID  int64             `json:"booking_id"`
	EventType  CheckoutEventType `json:"event_type"`
	Timestamp  time.Time         `json:"timestamp"`
	Estimate   *LiveEstimate     `json:"estimate,omitempty"`
	Submission *SubmissionState  `json:"submission,omitempty"`
}

// CheckoutView is what the gateway returns for a checkout.
type CheckoutView struct {
	ID         string          `json:"id"`
	Booking    BookingSession  `json:"booking"`
	Estimate   LiveEstimate    `json:"estimate"`
	AmountDue  float64         `json:"amount_due"`
	Submission SubmissionState `json:"submission"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// BookingExitedEvent arrives from the booking side when a vehicle leaves.
type BookingExitedEvent struct {
	EventType string         `json:"event_type"`
	Booking   BookingSession `json:"booking"`
}

// BarrierControlCommandPayload is published to the exit barrier controller.
type BarrierControlCommandPayload struct {
	Command      string `json:"command"`
	RequestID    string `json:"request_id"`
	ControllerID string `json:"controller_id,omitempty"`
	BookingID    int64  `json:"booking_id,omitempty"`
}
