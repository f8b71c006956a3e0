package repository

import (
	"context"
	"errors"
	"time"

	"parking_checkout/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")
var ErrLockHeld = errors.New("a payment for this booking is already being processed")

// PaymentAttemptRepository is the append-only ledger of payment attempts.
type PaymentAttemptRepository interface {
	Create(ctx context.Context, attempt *domain.PaymentAttempt) (*domain.PaymentAttempt, error)
	FindByCheckoutID(ctx context.Context, checkoutID string) ([]domain.PaymentAttempt, error)
	FindByBookingID(ctx context.Context, bookingID int64) ([]domain.PaymentAttempt, error)
	FindSucceededByBookingID(ctx context.Context, bookingID int64) (*domain.PaymentAttempt, error)
}

// SubmissionLock serializes payment submissions for a booking across
// gateway instances.
type SubmissionLock interface {
	Acquire(ctx context.Context, bookingID int64, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, bookingID int64, token string) error
}
