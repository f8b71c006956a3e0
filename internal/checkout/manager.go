package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking_checkout/internal/domain"
	"parking_checkout/internal/metrics"
)

var ErrCheckoutNotFound = errors.New("checkout not found")

// Notifier receives checkout updates for live push.
type Notifier interface {
	NotifyCheckout(n domain.CheckoutNotification)
}

type Settings struct {
	TickInterval   time.Duration
	PaymentTimeout time.Duration
	Clock          Clock
}

// Manager owns every open checkout. A booking has at most one open checkout;
// opening another closes the previous one first.
type Manager struct {
	rates    RateSource
	payer    Payer
	settings Settings
	logger   zerolog.Logger

	notifier  Notifier
	onPaid    func(co *Checkout, resp domain.PaymentResponse)
	onAttempt func(attempt domain.PaymentAttempt)

	mu        sync.Mutex
	checkouts map[string]*Checkout
	byBooking map[int64]string
}

type ManagerOption func(*Manager)

func WithNotifier(n Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

// WithPaymentHook runs fn after a checkout's payment succeeds.
func WithPaymentHook(fn func(co *Checkout, resp domain.PaymentResponse)) ManagerOption {
	return func(m *Manager) { m.onPaid = fn }
}

// WithAttemptRecorder runs fn for every attempt that reached the backend.
func WithAttemptRecorder(fn func(attempt domain.PaymentAttempt)) ManagerOption {
	return func(m *Manager) { m.onAttempt = fn }
}

func NewManager(rates RateSource, payer Payer, settings Settings, logger zerolog.Logger, opts ...ManagerOption) *Manager {
	if settings.Clock == nil {
		settings.Clock = RealClock{}
	}
	m := &Manager{
		rates:     rates,
		payer:     payer,
		settings:  settings,
		logger:    logger.With().Str("component", "checkout").Logger(),
		checkouts: make(map[string]*Checkout),
		byBooking: make(map[int64]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open mounts a checkout for session: the rate is fetched, the first
// estimate computed and the periodic tick armed.
func (m *Manager) Open(ctx context.Context, session domain.BookingSession) (*Checkout, error) {
	if session.HasID() {
		m.mu.Lock()
		prevID, ok := m.byBooking[session.ID.Int64]
		m.mu.Unlock()
		if ok {
			m.logger.Debug().Str("checkout_id", prevID).Int64("booking_id", session.ID.Int64).Msg("replacing open checkout for booking")
			_ = m.Close(prevID)
		}
	}

	co := &Checkout{
		ID:       uuid.NewString(),
		OpenedAt: m.settings.Clock.Now(),
	}
	co.logger = m.logger.With().Str("checkout_id", co.ID).Logger()
	co.newEst = func(s domain.BookingSession) *Estimator {
		return NewEstimator(s, m.rates, co.logger,
			WithClock(m.settings.Clock),
			WithTickInterval(m.settings.TickInterval),
			WithUpdateHook(func(est domain.LiveEstimate) {
				m.notifyEstimate(co.ID, s, est)
			}),
		)
	}
	co.guard = NewGuard(m.payer, co.logger,
		WithPaymentTimeout(m.settings.PaymentTimeout),
		WithSuccessHook(func(resp domain.PaymentResponse) {
			if m.onPaid != nil {
				m.onPaid(co, resp)
			}
		}),
		WithAttemptHook(func(attempt domain.PaymentAttempt) {
			attempt.CheckoutID = co.ID
			if m.onAttempt != nil {
				m.onAttempt(attempt)
			}
			m.notifySubmission(co)
		}),
	)

	est := co.newEst(session)
	est.Initialize(ctx)
	co.estimator = est
	est.Start()

	// Initialize went to the network; a concurrent Open for the same booking
	// may have registered in the meantime.
	var stale string
	m.mu.Lock()
	m.checkouts[co.ID] = co
	if session.HasID() {
		stale = m.byBooking[session.ID.Int64]
		m.byBooking[session.ID.Int64] = co.ID
	}
	m.mu.Unlock()
	if stale != "" {
		m.logger.Debug().Str("checkout_id", stale).Int64("booking_id", session.ID.Int64).Msg("replacing concurrently opened checkout")
		_ = m.Close(stale)
	}

	metrics.CheckoutsOpened.Inc()
	metrics.CheckoutsActive.Inc()
	co.logger.Info().
		Int64("booking_id", session.ID.ValueOrZero()).
		Str("vehicle_type", string(session.VehicleType)).
		Bool("closed_session", session.IsClosed()).
		Msg("checkout opened")
	return co, nil
}

func (m *Manager) Get(id string) (*Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	co, ok := m.checkouts[id]
	if !ok {
		return nil, ErrCheckoutNotFound
	}
	return co, nil
}

// ForBooking returns the open checkout of a booking.
func (m *Manager) ForBooking(bookingID int64) (*Checkout, error) {
	m.mu.Lock()
	id, ok := m.byBooking[bookingID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrCheckoutNotFound
	}
	return m.Get(id)
}

// Close unmounts a checkout and stops its tick.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	co, ok := m.checkouts[id]
	if !ok {
		m.mu.Unlock()
		return ErrCheckoutNotFound
	}
	delete(m.checkouts, id)
	session := co.Session()
	if session.HasID() && m.byBooking[session.ID.Int64] == id {
		delete(m.byBooking, session.ID.Int64)
	}
	m.mu.Unlock()

	co.close()
	metrics.CheckoutsActive.Dec()
	co.logger.Info().Msg("checkout closed")

	if m.notifier != nil {
		m.notifier.NotifyCheckout(domain.CheckoutNotification{
			CheckoutID: id,
			BookingID:  session.ID.ValueOrZero(),
			EventType:  domain.CheckoutClosed,
			Timestamp:  m.settings.Clock.Now(),
		})
	}
	return nil
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.checkouts))
	for id := range m.checkouts {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Close(id)
	}
}

// Remount replaces the session of the booking's open checkout, for example
// once the backend reports the vehicle exited. It reports whether a
// checkout was found.
func (m *Manager) Remount(ctx context.Context, session domain.BookingSession) bool {
	if !session.HasID() {
		return false
	}
	co, err := m.ForBooking(session.ID.Int64)
	if err != nil {
		return false
	}
	co.remount(ctx, session)
	co.logger.Info().
		Int64("booking_id", session.ID.Int64).
		Bool("closed_session", session.IsClosed()).
		Msg("checkout remounted")
	return true
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checkouts)
}

func (m *Manager) notifyEstimate(checkoutID string, session domain.BookingSession, est domain.LiveEstimate) {
	if m.notifier == nil {
		return
	}
	m.notifier.NotifyCheckout(domain.CheckoutNotification{
		CheckoutID: checkoutID,
		BookingID:  session.ID.ValueOrZero(),
		EventType:  domain.CheckoutEstimateUpdated,
		Timestamp:  est.ComputedAt,
		Estimate:   &est,
	})
}

func (m *Manager) notifySubmission(co *Checkout) {
	if m.notifier == nil {
		return
	}
	state := co.Submission()
	m.notifier.NotifyCheckout(domain.CheckoutNotification{
		CheckoutID: co.ID,
		BookingID:  co.Session().ID.ValueOrZero(),
		EventType:  domain.CheckoutPaymentUpdated,
		Timestamp:  m.settings.Clock.Now(),
		Submission: &state,
	})
}
