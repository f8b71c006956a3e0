package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"parking_checkout/internal/domain"
)

// Checkout is one open payment view for a booking: a live estimator plus a
// submission guard. The guard outlives estimator remounts.
type Checkout struct {
	ID       string
	OpenedAt time.Time

	guard  *Guard
	logger zerolog.Logger
	newEst func(domain.BookingSession) *Estimator

	mu        sync.Mutex
	estimator *Estimator
	closed    bool
}

func (c *Checkout) currentEstimator() *Estimator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.estimator
}

func (c *Checkout) Session() domain.BookingSession {
	return c.currentEstimator().Session()
}

func (c *Checkout) Estimate() domain.LiveEstimate {
	return c.currentEstimator().Estimate()
}

func (c *Checkout) Submission() domain.SubmissionState {
	return c.guard.State()
}

// AmountDue is the amount a payment would be submitted for: the live
// estimate, or the recorded fee when the estimate is zero.
func (c *Checkout) AmountDue() float64 {
	est := c.currentEstimator()
	amount := est.Estimate().AmountDue
	if amount == 0 {
		amount = est.Session().ParkingFee.ValueOrZero()
	}
	return amount
}

func (c *Checkout) View() domain.CheckoutView {
	est := c.currentEstimator()
	return domain.CheckoutView{
		ID:         c.ID,
		Booking:    est.Session(),
		Estimate:   est.Estimate(),
		AmountDue:  c.AmountDue(),
		Submission: c.guard.State(),
		OpenedAt:   c.OpenedAt,
	}
}

// Pay snapshots the amount due and submits it through the guard.
func (c *Checkout) Pay(ctx context.Context, method domain.PaymentMethod) (domain.SubmissionState, error) {
	session := c.Session()
	amount := c.AmountDue()
	c.logger.Debug().
		Int64("booking_id", session.ID.ValueOrZero()).
		Float64("amount", amount).
		Str("method", string(method)).
		Msg("submitting payment")
	return c.guard.Submit(ctx, session, amount, method)
}

func (c *Checkout) SetVehicleType(ctx context.Context, vt domain.VehicleType) bool {
	return c.currentEstimator().SetVehicleType(ctx, vt)
}

// remount tears down the running estimator before starting one for session.
func (c *Checkout) remount(ctx context.Context, session domain.BookingSession) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	old := c.estimator
	c.mu.Unlock()

	old.Stop()

	next := c.newEst(session)
	next.Initialize(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.estimator = next
	next.Start()
	c.mu.Unlock()
}

func (c *Checkout) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	est := c.estimator
	c.mu.Unlock()

	est.Stop()
}
