package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"
)

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "CARD"
	PaymentUPI  PaymentMethod = "UPI"
)

var ErrInvalidPaymentMethod = errors.New("payment method must be CARD or UPI")

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case PaymentCard, PaymentUPI:
		return m, nil
	case "":
		return PaymentCard, nil
	}
	return "", ErrInvalidPaymentMethod
}

// PaymentRequest is the body of POST /payments/process.
type PaymentRequest struct {
	BookingID     int64         `json:"bookingId"`
	Amount        float64       `json:"amount"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// PaymentResponse is the backend's answer to a payment request. Success and
// business rejection share this shape; Raw keeps the full payload for callers.
type PaymentResponse struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId,omitempty"`
	Message       string          `json:"message,omitempty"`
	BookingID     null.Int        `json:"bookingId"`
	SlotID        null.Int        `json:"slotId"`
	Amount        null.Float      `json:"amount"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Timestamp     null.String     `json:"timestamp"`
	Raw           json.RawMessage `json:"-"`
}

type SubmissionPhase int32

const (
	PhaseIdle SubmissionPhase = iota
	PhaseSubmitting
	PhaseSucceeded
)

func (p SubmissionPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSucceeded:
		return "succeeded"
	}
	return "unknown"
}

func (p SubmissionPhase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// SubmissionState is a point-in-time view of a payment guard. Idle with a
// non-empty Error is the retryable failure state.
type SubmissionState struct {
	Phase         SubmissionPhase  `json:"phase"`
	Error         string           `json:"error,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
	AmountCharged float64          `json:"amountCharged,omitempty"`
	Method        PaymentMethod    `json:"paymentMethod,omitempty"`
	Response      *PaymentResponse `json:"response,omitempty"`
}

func (s SubmissionState) Settled() bool {
	return s.Phase == PhaseSucceeded
}

type PaymentOutcome string

const (
	OutcomeSucceeded PaymentOutcome = "succeeded"
	OutcomeRejected  PaymentOutcome = "rejected"
	OutcomeFailed    PaymentOutcome = "failed"
	OutcomeTimeout   PaymentOutcome = "timeout"
)

// PaymentAttempt is one ledger row per submission that reached the backend.
type PaymentAttempt struct {
	ID            int64          `json:"id"`
	CheckoutID    string         `json:"checkout_id"`
	BookingID     int64          `json:"booking_id"`
	Amount        float64        `json:"amount"`
	Method        PaymentMethod  `json:"payment_method"`
	Outcome       PaymentOutcome `json:"outcome"`
	TransactionID null.String    `json:"transaction_id"`
	Message       string         `json:"message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type PaymentHistory struct {
	Payments   []BookingSession `json:"payments"`
	TotalCount int              `json:"totalCount"`
}

type BookingPayment struct {
	BookingID     int64       `json:"bookingId"`
	Amount        null.Float  `json:"amount"`
	PaymentStatus string      `json:"paymentStatus"`
	TransactionID null.String `json:"transactionId"`
	PaymentTime   null.String `json:"paymentTime"`
}

type PayCheckoutDTO struct {
	PaymentMethod string `json:"paymentMethod"`
}

// PaymentCompletedEvent is published once a checkout settles.
type PaymentCompletedEvent struct {
	EventType     string        `json:"event_type"`
	CheckoutID    string        `json:"checkout_id"`
	BookingID     int64         `json:"booking_id"`
	SlotID        null.Int      `json:"slot_id"`
	TransactionID string        `json:"transaction_id"`
	Amount        float64       `json:"amount"`
	Method        PaymentMethod `json:"payment_method"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
