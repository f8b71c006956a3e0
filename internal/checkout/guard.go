package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"parking_checkout/internal/domain"
	"parking_checkout/internal/metrics"
)

const DefaultPaymentTimeout = 15 * time.Second

const (
	MsgMissingIdentifier = "Booking ID is required. Please try again or contact support."
	MsgPaymentRejected   = "Payment failed. Please try again."
	MsgPaymentFailed     = "Failed to process payment. Please try again."
	MsgPaymentTimeout    = "Payment request timed out. Please try again."
	MsgInvalidMethod     = "Please choose CARD or UPI."
)

var (
	ErrMissingIdentifier = errors.New("booking identifier is missing")
	ErrAlreadySettled    = errors.New("payment already completed for this checkout")
	ErrTimeout           = errors.New("payment request timed out")
)

// Payer submits one payment to the backend.
type Payer interface {
	ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error)
}

// userMessager is implemented by errors that carry a message fit for the
// payer, such as backend error bodies.
type userMessager interface {
	UserMessage(fallback string) string
}

// Guard allows at most one payment attempt in flight and turns each attempt
// into exactly one outcome. Success is terminal.
type Guard struct {
	payer     Payer
	timeout   time.Duration
	logger    zerolog.Logger
	onSuccess func(domain.PaymentResponse)
	onAttempt func(domain.PaymentAttempt)

	phase atomic.Int32

	mu    sync.Mutex
	state domain.SubmissionState
}

type GuardOption func(*Guard)

func WithPaymentTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithSuccessHook registers fn to receive the full backend response once a
// payment succeeds.
func WithSuccessHook(fn func(domain.PaymentResponse)) GuardOption {
	return func(g *Guard) { g.onSuccess = fn }
}

// WithAttemptHook registers fn to receive every attempt that reached the
// payer, whatever its outcome.
func WithAttemptHook(fn func(domain.PaymentAttempt)) GuardOption {
	return func(g *Guard) { g.onAttempt = fn }
}

func NewGuard(payer Payer, logger zerolog.Logger, opts ...GuardOption) *Guard {
	g := &Guard{
		payer:   payer,
		timeout: DefaultPaymentTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns a snapshot of the submission state.
func (g *Guard) State() domain.SubmissionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.state
	s.Phase = domain.SubmissionPhase(g.phase.Load())
	return s
}

// Submit issues one payment for session. A call while another submission is
// in flight returns the current state and a nil error without contacting the
// backend. Rejections and transport failures leave the guard idle with an
// error message and a nil error; only ErrTimeout is returned for a failed
// attempt so callers can tell it apart.
func (g *Guard) Submit(ctx context.Context, session domain.BookingSession, amount float64, method domain.PaymentMethod) (domain.SubmissionState, error) {
	if !g.phase.CompareAndSwap(int32(domain.PhaseIdle), int32(domain.PhaseSubmitting)) {
		if domain.SubmissionPhase(g.phase.Load()) == domain.PhaseSucceeded {
			metrics.PaymentsIgnored.WithLabelValues("settled").Inc()
			return g.State(), ErrAlreadySettled
		}
		metrics.PaymentsIgnored.WithLabelValues("in_flight").Inc()
		return g.State(), nil
	}

	if !session.HasID() {
		metrics.PaymentsIgnored.WithLabelValues("missing_identifier").Inc()
		return g.fail(MsgMissingIdentifier), ErrMissingIdentifier
	}
	if method != domain.PaymentCard && method != domain.PaymentUPI {
		metrics.PaymentsIgnored.WithLabelValues("invalid_method").Inc()
		return g.fail(MsgInvalidMethod), domain.ErrInvalidPaymentMethod
	}

	g.mu.Lock()
	g.state.Error = ""
	g.state.Method = method
	g.mu.Unlock()

	req := domain.PaymentRequest{
		BookingID:     session.ID.Int64,
		Amount:        amount,
		PaymentMethod: method,
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.payer.ProcessPayment(callCtx, req)
	took := time.Since(start)

	switch {
	case err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		g.logger.Warn().Int64("booking_id", req.BookingID).Dur("timeout", g.timeout).Msg("payment request timed out")
		state := g.fail(MsgPaymentTimeout)
		g.record(req, domain.OutcomeTimeout, "", MsgPaymentTimeout, took)
		return state, ErrTimeout

	case err != nil:
		msg := MsgPaymentFailed
		var um userMessager
		if errors.As(err, &um) {
			msg = um.UserMessage(MsgPaymentFailed)
		}
		g.logger.Warn().Err(err).Int64("booking_id", req.BookingID).Msg("payment request failed")
		state := g.fail(msg)
		g.record(req, domain.OutcomeFailed, "", msg, took)
		return state, nil

	case resp == nil:
		state := g.fail(MsgPaymentFailed)
		g.record(req, domain.OutcomeFailed, "", MsgPaymentFailed, took)
		return state, nil

	case !resp.Success:
		msg := resp.Message
		if msg == "" {
			msg = MsgPaymentRejected
		}
		g.logger.Info().Int64("booking_id", req.BookingID).Str("message", msg).Msg("payment rejected")
		state := g.fail(msg)
		g.record(req, domain.OutcomeRejected, resp.TransactionID, msg, took)
		return state, nil
	}

	g.mu.Lock()
	g.state = domain.SubmissionState{
		TransactionID: resp.TransactionID,
		AmountCharged: amount,
		Method:        method,
		Response:      resp,
	}
	g.phase.Store(int32(domain.PhaseSucceeded))
	g.mu.Unlock()

	g.logger.Info().
		Int64("booking_id", req.BookingID).
		Str("transaction_id", resp.TransactionID).
		Float64("amount", amount).
		Msg("payment succeeded")
	g.record(req, domain.OutcomeSucceeded, resp.TransactionID, resp.Message, took)

	if g.onSuccess != nil {
		g.onSuccess(*resp)
	}
	return g.State(), nil
}

// fail returns the guard to idle with msg attached.
func (g *Guard) fail(msg string) domain.SubmissionState {
	g.mu.Lock()
	g.state.Error = msg
	g.state.TransactionID = ""
	g.state.Response = nil
	g.phase.Store(int32(domain.PhaseIdle))
	s := g.state
	g.mu.Unlock()
	s.Phase = domain.PhaseIdle
	return s
}

func (g *Guard) record(req domain.PaymentRequest, outcome domain.PaymentOutcome, txnID, msg string, took time.Duration) {
	metrics.PaymentSubmissions.WithLabelValues(string(req.PaymentMethod), string(outcome)).Inc()
	metrics.PaymentDuration.WithLabelValues(string(outcome)).Observe(took.Seconds())

	if g.onAttempt == nil {
		return
	}
	attempt := domain.PaymentAttempt{
		BookingID: req.BookingID,
		Amount:    req.Amount,
		Method:    req.PaymentMethod,
		Outcome:   outcome,
		Message:   msg,
		CreatedAt: time.Now(),
	}
	if txnID != "" {
		attempt.TransactionID.SetValid(txnID)
	}
	g.onAttempt(attempt)
}
