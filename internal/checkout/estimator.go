package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/guregu/null.v4"

	"parking_checkout/internal/domain"
	"parking_checkout/internal/metrics"
)

const DefaultTickInterval = 30 * time.Second

// RateSource looks up the hourly rate for a vehicle type.
type RateSource interface {
	HourlyRate(ctx context.Context, vt domain.VehicleType) (domain.RateQuote, error)
}

// Estimator keeps the live duration and amount for one booking session.
// Open sessions are recomputed on every tick; closed sessions are frozen to
// the figures the backend recorded.
type Estimator struct {
	rates    RateSource
	clock    Clock
	interval time.Duration
	logger   zerolog.Logger
	onUpdate func(domain.LiveEstimate)

	mu       sync.Mutex
	session  domain.BookingSession
	rate     float64
	estimate domain.LiveEstimate

	stop chan struct{}
	done chan struct{}
}

type EstimatorOption func(*Estimator)

func WithClock(c Clock) EstimatorOption {
	return func(e *Estimator) { e.clock = c }
}

func WithTickInterval(d time.Duration) EstimatorOption {
	return func(e *Estimator) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithUpdateHook registers fn to receive every recomputed estimate. fn runs
// outside the estimator lock.
func WithUpdateHook(fn func(domain.LiveEstimate)) EstimatorOption {
	return func(e *Estimator) { e.onUpdate = fn }
}

func NewEstimator(session domain.BookingSession, rates RateSource, logger zerolog.Logger, opts ...EstimatorOption) *Estimator {
	e := &Estimator{
		rates:    rates,
		clock:    RealClock{},
		interval: DefaultTickInterval,
		logger:   logger,
		session:  session,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize fetches the rate and computes the first estimate. A failed rate
// lookup is logged and treated as a zero rate.
func (e *Estimator) Initialize(ctx context.Context) domain.LiveEstimate {
	e.mu.Lock()
	vt := e.session.VehicleType
	e.mu.Unlock()

	rate := e.fetchRate(ctx, vt)

	e.mu.Lock()
	e.rate = rate
	est := e.recomputeLocked()
	e.mu.Unlock()

	e.notify(est)
	return est
}

// Tick recomputes the estimate from the clock and the current rate. It does
// nothing for a closed session.
func (e *Estimator) Tick() domain.LiveEstimate {
	e.mu.Lock()
	if e.estimate.Frozen {
		est := e.estimate
		e.mu.Unlock()
		return est
	}
	est := e.recomputeLocked()
	e.mu.Unlock()

	metrics.EstimateTicks.Inc()
	e.notify(est)
	return est
}

// SetVehicleType switches the vehicle type and refetches the rate. It
// reports whether the type actually changed.
func (e *Estimator) SetVehicleType(ctx context.Context, vt domain.VehicleType) bool {
	e.mu.Lock()
	if e.session.VehicleType == vt {
		e.mu.Unlock()
		return false
	}
	e.mu.Unlock()

	rate := e.fetchRate(ctx, vt)

	e.mu.Lock()
	e.session.VehicleType = vt
	e.rate = rate
	est := e.recomputeLocked()
	e.mu.Unlock()

	e.notify(est)
	return true
}

func (e *Estimator) Estimate() domain.LiveEstimate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.estimate
}

func (e *Estimator) Session() domain.BookingSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

func (e *Estimator) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// Start arms the periodic tick. Closed sessions never tick, and calling
// Start on a running estimator has no effect.
func (e *Estimator) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil || e.estimate.Frozen {
		return
	}
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.run(e.stop, e.done)
}

// Stop cancels the periodic tick and waits for it to exit. Safe to call
// more than once.
func (e *Estimator) Stop() {
	e.mu.Lock()
	stop, done := e.stop, e.done
	e.stop, e.done = nil, nil
	e.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (e *Estimator) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

func (e *Estimator) fetchRate(ctx context.Context, vt domain.VehicleType) float64 {
	if e.rates == nil {
		return 0
	}
	quote, err := e.rates.HourlyRate(ctx, vt)
	if err != nil {
		metrics.RateFetchErrors.WithLabelValues(string(vt)).Inc()
		e.logger.Warn().Err(err).Str("vehicle_type", string(vt)).Msg("rate lookup failed, estimating at zero rate")
		return 0
	}
	return quote.Normalize()
}

func (e *Estimator) recomputeLocked() domain.LiveEstimate {
	now := e.clock.Now()

	if e.session.IsClosed() {
		e.estimate = domain.LiveEstimate{
			ElapsedMinutes: e.session.DurationMinutes.ValueOrZero(),
			AmountDue:      e.session.ParkingFee.ValueOrZero(),
			HourlyRate:     e.rate,
			Frozen:         true,
			ComputedAt:     now,
		}
		return e.estimate
	}

	minutes := ElapsedMinutes(e.session.EntryTime, now)
	if minutes < e.estimate.ElapsedMinutes {
		minutes = e.estimate.ElapsedMinutes
	}
	e.estimate = domain.LiveEstimate{
		ElapsedMinutes: minutes,
		AmountDue:      AmountDue(e.rate, minutes),
		HourlyRate:     e.rate,
		ComputedAt:     now,
	}
	return e.estimate
}

func (e *Estimator) notify(est domain.LiveEstimate) {
	if e.onUpdate != nil {
		e.onUpdate(est)
	}
}

// ElapsedMinutes returns whole minutes since entry, clamped at zero. A
// missing entry time counts as zero.
func ElapsedMinutes(entry null.Time, now time.Time) int64 {
	if !entry.Valid || entry.Time.IsZero() {
		return 0
	}
	d := now.Sub(entry.Time)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Minute)
}

func AmountDue(rate float64, minutes int64) float64 {
	if rate <= 0 || minutes <= 0 {
		return 0
	}
	return rate * float64(minutes) / 60
}
