package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking_checkout/internal/checkout"
	"parking_checkout/internal/domain"
	"parking_checkout/internal/metrics"
	"parking_checkout/internal/repository"
)

var (
	ErrBookingRequired = errors.New("a booking or booking id is required")
	ErrLedgerDisabled  = errors.New("payment ledger is not configured")
)

const (
	sideEffectTimeout = 10 * time.Second
	defaultLockTTL    = 30 * time.Second
)

// BookingSource loads booking sessions from the backend.
type BookingSource interface {
	Booking(ctx context.Context, bookingID int64) (*domain.BookingSession, error)
}

// EventPublisher announces settled payments.
type EventPublisher interface {
	PublishPaymentCompleted(ctx context.Context, event domain.PaymentCompletedEvent) error
}

// ExitBarrier opens the exit barrier for a paid booking.
type ExitBarrier interface {
	OpenExit(ctx context.Context, bookingID int64, requestID string) error
}

type CheckoutDeps struct {
	Bookings  BookingSource
	Rates     checkout.RateSource
	Payer     checkout.Payer
	Notifier  checkout.Notifier
	Ledger    repository.PaymentAttemptRepository
	Lock      repository.SubmissionLock
	LockTTL   time.Duration
	Publisher EventPublisher
	Barrier   ExitBarrier
}

// CheckoutService runs checkouts and the work that follows a payment.
type CheckoutService struct {
	manager   *checkout.Manager
	bookings  BookingSource
	ledger    repository.PaymentAttemptRepository
	publisher EventPublisher
	barrier   ExitBarrier
	logger    zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewCheckoutService(deps CheckoutDeps, settings checkout.Settings, logger zerolog.Logger) *CheckoutService {
	s := &CheckoutService{
		bookings:  deps.Bookings,
		ledger:    deps.Ledger,
		publisher: deps.Publisher,
		barrier:   deps.Barrier,
		logger:    logger.With().Str("component", "checkout-service").Logger(),
	}

	payer := deps.Payer
	if deps.Lock != nil {
		// The lock must outlive the payment call it guards.
		ttl := deps.LockTTL
		if ttl <= 0 {
			ttl = defaultLockTTL
		}
		if ttl < settings.PaymentTimeout {
			ttl = settings.PaymentTimeout
		}
		payer = &lockedPayer{next: payer, lock: deps.Lock, ttl: ttl, logger: s.logger}
	}

	opts := []checkout.ManagerOption{
		checkout.WithPaymentHook(s.onPaid),
		checkout.WithAttemptRecorder(s.recordAttempt),
	}
	if deps.Notifier != nil {
		opts = append(opts, checkout.WithNotifier(deps.Notifier))
	}
	s.manager = checkout.NewManager(deps.Rates, payer, settings, logger, opts...)
	return s
}

// Open mounts a checkout from a full booking in the request, or loads the
// booking by id.
func (s *CheckoutService) Open(ctx context.Context, dto domain.OpenCheckoutDTO) (domain.CheckoutView, error) {
	var session domain.BookingSession
	switch {
	case dto.Booking != nil:
		session = *dto.Booking
		if !session.HasID() && dto.BookingID > 0 {
			session.ID.SetValid(dto.BookingID)
		}
	case dto.BookingID > 0:
		loaded, err := s.bookings.Booking(ctx, dto.BookingID)
		if err != nil {
			return domain.CheckoutView{}, fmt.Errorf("load booking %d: %w", dto.BookingID, err)
		}
		session = *loaded
		if !session.HasID() {
			session.ID.SetValid(dto.BookingID)
		}
	default:
		return domain.CheckoutView{}, ErrBookingRequired
	}
	if session.VehicleType == "" {
		session.VehicleType = domain.VehicleCar
	}

	co, err := s.manager.Open(ctx, session)
	if err != nil {
		return domain.CheckoutView{}, err
	}
	return co.View(), nil
}

func (s *CheckoutService) Get(id string) (domain.CheckoutView, error) {
	co, err := s.manager.Get(id)
	if err != nil {
		return domain.CheckoutView{}, err
	}
	return co.View(), nil
}

func (s *CheckoutService) Close(id string) error {
	return s.manager.Close(id)
}

// Pay submits the checkout's current amount. The returned state is valid
// alongside every error except ErrCheckoutNotFound.
func (s *CheckoutService) Pay(ctx context.Context, id string, dto domain.PayCheckoutDTO) (domain.SubmissionState, error) {
	co, err := s.manager.Get(id)
	if err != nil {
		return domain.SubmissionState{}, err
	}
	method, err := domain.ParsePaymentMethod(dto.PaymentMethod)
	if err != nil {
		return co.Submission(), err
	}
	return co.Pay(ctx, method)
}

func (s *CheckoutService) SetVehicleType(ctx context.Context, id string, dto domain.UpdateVehicleTypeDTO) (domain.CheckoutView, error) {
	co, err := s.manager.Get(id)
	if err != nil {
		return domain.CheckoutView{}, err
	}
	vt, err := domain.ParseVehicleType(dto.VehicleType)
	if err != nil {
		return domain.CheckoutView{}, err
	}
	co.SetVehicleType(ctx, vt)
	return co.View(), nil
}

func (s *CheckoutService) Attempts(ctx context.Context, id string) ([]domain.PaymentAttempt, error) {
	if s.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	if _, err := s.manager.Get(id); err != nil {
		return nil, err
	}
	return s.ledger.FindByCheckoutID(ctx, id)
}

func (s *CheckoutService) ActiveCount() int {
	return s.manager.Count()
}

// HandleBookingEvent consumes booking updates from the queue and remounts
// the matching checkout with the new session.
func (s *CheckoutService) HandleBookingEvent(ctx context.Context, body string) error {
	var event domain.BookingExitedEvent
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		metrics.BookingEventsConsumed.WithLabelValues("unknown", "invalid").Inc()
		s.logger.Warn().Err(err).Msg("dropping malformed booking event")
		return nil
	}
	eventType := strings.ToLower(event.EventType)
	if !event.Booking.HasID() {
		metrics.BookingEventsConsumed.WithLabelValues(eventType, "invalid").Inc()
		s.logger.Warn().Str("event_type", eventType).Msg("dropping booking event without booking id")
		return nil
	}

	if s.Remount(ctx, event.Booking) {
		metrics.BookingEventsConsumed.WithLabelValues(eventType, "remounted").Inc()
	} else {
		metrics.BookingEventsConsumed.WithLabelValues(eventType, "ignored").Inc()
	}
	return nil
}

// Remount swaps in a newer session for the booking's open checkout, if any.
func (s *CheckoutService) Remount(ctx context.Context, session domain.BookingSession) bool {
	return s.manager.Remount(ctx, session)
}

// Shutdown closes every checkout and waits for post-payment work.
func (s *CheckoutService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.manager.CloseAll()
	s.wg.Wait()
}

func (s *CheckoutService) recordAttempt(attempt domain.PaymentAttempt) {
	if s.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if _, err := s.ledger.Create(ctx, &attempt); err != nil {
		s.logger.Error().Err(err).
			Str("checkout_id", attempt.CheckoutID).
			Int64("booking_id", attempt.BookingID).
			Msg("failed to record payment attempt")
	}
}

// onPaid publishes the completion event and opens the exit barrier off the
// request path.
func (s *CheckoutService) onPaid(co *checkout.Checkout, resp domain.PaymentResponse) {
	session := co.Session()
	event := domain.PaymentCompletedEvent{
		CheckoutID:    co.ID,
		BookingID:     session.ID.Int64,
		SlotID:        session.SlotID,
		TransactionID: resp.TransactionID,
		Amount:        co.Submission().AmountCharged,
		Method:        co.Submission().Method,
		OccurredAt:    time.Now().UTC(),
	}

	// Once shutdown has begun the work runs on the paying goroutine instead
	// of joining the wait group.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn().Int64("booking_id", event.BookingID).Msg("payment settled during shutdown, finishing inline")
		s.afterPayment(event)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.afterPayment(event)
	}()
}

func (s *CheckoutService) afterPayment(event domain.PaymentCompletedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if s.publisher != nil {
		if err := s.publisher.PublishPaymentCompleted(ctx, event); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", event.BookingID).Msg("failed to publish payment event")
		}
	}
	if s.barrier != nil {
		if err := s.barrier.OpenExit(ctx, event.BookingID, uuid.NewString()); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", event.BookingID).Msg("failed to open exit barrier")
		}
	}
}

// lockedPayer holds a per-booking lock around each payment call so that two
// gateway instances cannot submit the same booking at once.
type lockedPayer struct {
	next   checkout.Payer
	lock   repository.SubmissionLock
	ttl    time.Duration
	logger zerolog.Logger
}

type submissionBusyError struct{}

func (submissionBusyError) Error() string { return repository.ErrLockHeld.Error() }

func (submissionBusyError) Unwrap() error { return repository.ErrLockHeld }

func (submissionBusyError) UserMessage(string) string {
	return "A payment for this booking is already being processed. Please wait."
}

func (p *lockedPayer) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error) {
	token, err := p.lock.Acquire(ctx, req.BookingID, p.ttl)
	switch {
	case errors.Is(err, repository.ErrLockHeld):
		return nil, submissionBusyError{}
	case err != nil:
		p.logger.Warn().Err(err).Int64("booking_id", req.BookingID).Msg("submission lock unavailable, continuing without it")
		return p.next.ProcessPayment(ctx, req)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.lock.Release(releaseCtx, req.BookingID, token); err != nil {
			p.logger.Warn().Err(err).Int64("booking_id", req.BookingID).Msg("failed to release submission lock")
		}
	}()
	return p.next.ProcessPayment(ctx, req)
}
