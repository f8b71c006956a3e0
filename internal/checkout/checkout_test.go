package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"parking_checkout/internal/domain"
)

type fakeRates struct {
	mu    sync.Mutex
	rates map[domain.VehicleType]domain.RateQuote
	err   error
	calls int
}

func (f *fakeRates) HourlyRate(ctx context.Context, vt domain.VehicleType) (domain.RateQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.RateQuote{}, f.err
	}
	return f.rates[vt], nil
}

func (f *fakeRates) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePayer struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	resp    *domain.PaymentResponse
	err     error
	lastReq atomic.Value
}

func (f *fakePayer) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error) {
	f.calls.Add(1)
	f.lastReq.Store(req)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

type userErr struct{ message, errText string }

func (e *userErr) Error() string { return "backend error" }

func (e *userErr) UserMessage(fallback string) string {
	if e.message != "" {
		return e.message
	}
	if e.errText != "" {
		return e.errText
	}
	return fallback
}

func carRates(rate float64) *fakeRates {
	return &fakeRates{rates: map[domain.VehicleType]domain.RateQuote{
		domain.VehicleCar: {HourlyRate: null.FloatFrom(rate)},
	}}
}

func openSession(id int64, entry time.Time) domain.BookingSession {
	return domain.BookingSession{
		ID:          null.IntFrom(id),
		VehicleType: domain.VehicleCar,
		EntryTime:   null.TimeFrom(entry),
	}
}

func TestEstimator_InitialEstimate(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	session := openSession(42, clock.Now().Add(-90*time.Minute))

	est := NewEstimator(session, carRates(20), zerolog.Nop(), WithClock(clock))
	got := est.Initialize(context.Background())

	assert.Equal(t, int64(90), got.ElapsedMinutes)
	assert.InDelta(t, 30.0, got.AmountDue, 1e-9)
	assert.Equal(t, 20.0, got.HourlyRate)
	assert.False(t, got.Frozen)
}

func TestEstimator_RatePayloadAliases(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	session := openSession(1, clock.Now().Add(-60*time.Minute))

	tests := []struct {
		name  string
		quote domain.RateQuote
		want  float64
	}{
		{name: "hourlyRate", quote: domain.RateQuote{HourlyRate: null.FloatFrom(12)}, want: 12},
		{name: "ratePerHour", quote: domain.RateQuote{RatePerHour: null.FloatFrom(8)}, want: 8},
		{name: "neither", quote: domain.RateQuote{}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rates := &fakeRates{rates: map[domain.VehicleType]domain.RateQuote{domain.VehicleCar: tt.quote}}
			est := NewEstimator(session, rates, zerolog.Nop(), WithClock(clock))
			got := est.Initialize(context.Background())
			assert.Equal(t, tt.want, got.AmountDue)
		})
	}
}

func TestEstimator_RateFailureFallsBackToZero(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	session := openSession(42, clock.Now().Add(-45*time.Minute))
	rates := &fakeRates{err: errors.New("connection refused")}

	est := NewEstimator(session, rates, zerolog.Nop(), WithClock(clock))
	got := est.Initialize(context.Background())

	assert.Equal(t, int64(45), got.ElapsedMinutes)
	assert.Equal(t, 0.0, got.AmountDue)

	clock.Advance(5 * time.Minute)
	got = est.Tick()
	assert.Equal(t, int64(50), got.ElapsedMinutes)
	assert.Equal(t, 0.0, got.AmountDue)
}

func TestEstimator_FutureAndMissingEntryClampToZero(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	future := openSession(1, clock.Now().Add(2*time.Hour))
	got := NewEstimator(future, carRates(20), zerolog.Nop(), WithClock(clock)).Initialize(context.Background())
	assert.Equal(t, int64(0), got.ElapsedMinutes)
	assert.Equal(t, 0.0, got.AmountDue)

	missing := domain.BookingSession{ID: null.IntFrom(2), VehicleType: domain.VehicleCar}
	got = NewEstimator(missing, carRates(20), zerolog.Nop(), WithClock(clock)).Initialize(context.Background())
	assert.Equal(t, int64(0), got.ElapsedMinutes)
}

func TestEstimator_TicksAreMonotonicAndConsistent(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	session := openSession(7, clock.Now().Add(-10*time.Minute))
	est := NewEstimator(session, carRates(18), zerolog.Nop(), WithClock(clock))
	prev := est.Initialize(context.Background())

	for i := 0; i < 10; i++ {
		clock.Advance(30 * time.Second)
		got := est.Tick()
		assert.GreaterOrEqual(t, got.ElapsedMinutes, prev.ElapsedMinutes)
		assert.InDelta(t, 18*float64(got.ElapsedMinutes)/60, got.AmountDue, 1e-9)
		prev = got
	}
	assert.Equal(t, int64(15), prev.ElapsedMinutes)

	// A clock step backwards never shrinks the duration.
	clock.Advance(-10 * time.Minute)
	assert.Equal(t, int64(15), est.Tick().ElapsedMinutes)
}

func TestEstimator_ClosedSessionIsFrozen(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	session := openSession(9, clock.Now().Add(-3*time.Hour))
	session.ExitTime = null.TimeFrom(clock.Now().Add(-time.Hour))
	session.DurationMinutes = null.IntFrom(120)
	session.ParkingFee = null.FloatFrom(40)

	est := NewEstimator(session, carRates(20), zerolog.Nop(), WithClock(clock))
	first := est.Initialize(context.Background())
	assert.True(t, first.Frozen)
	assert.Equal(t, int64(120), first.ElapsedMinutes)
	assert.Equal(t, 40.0, first.AmountDue)

	for i := 0; i < 5; i++ {
		clock.Advance(time.Hour)
		got := est.Tick()
		assert.Equal(t, first.ElapsedMinutes, got.ElapsedMinutes)
		assert.Equal(t, first.AmountDue, got.AmountDue)
	}

	est.Start()
	est.Stop()
}

func TestEstimator_ClosedSessionWithoutFigures(t *testing.T) {
	session := openSession(9, time.Now().Add(-time.Hour))
	session.ExitTime = null.TimeFrom(time.Now())

	got := NewEstimator(session, carRates(20), zerolog.Nop()).Initialize(context.Background())
	assert.True(t, got.Frozen)
	assert.Equal(t, int64(0), got.ElapsedMinutes)
	assert.Equal(t, 0.0, got.AmountDue)
}

func TestEstimator_SetVehicleTypeRefetchesOnlyOnChange(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rates := &fakeRates{rates: map[domain.VehicleType]domain.RateQuote{
		domain.VehicleCar:  {HourlyRate: null.FloatFrom(20)},
		domain.VehicleBike: {RatePerHour: null.FloatFrom(10)},
	}}
	est := NewEstimator(openSession(3, clock.Now().Add(-60*time.Minute)), rates, zerolog.Nop(), WithClock(clock))
	est.Initialize(context.Background())
	require.Equal(t, 1, rates.Calls())

	assert.False(t, est.SetVehicleType(context.Background(), domain.VehicleCar))
	assert.Equal(t, 1, rates.Calls())

	assert.True(t, est.SetVehicleType(context.Background(), domain.VehicleBike))
	assert.Equal(t, 2, rates.Calls())
	assert.Equal(t, 10.0, est.Estimate().AmountDue)
	assert.Equal(t, domain.VehicleBike, est.Session().VehicleType)
}

func TestEstimator_StartStop(t *testing.T) {
	var updates atomic.Int32
	session := openSession(5, time.Now().Add(-5*time.Minute))
	est := NewEstimator(session, carRates(20), zerolog.Nop(),
		WithTickInterval(5*time.Millisecond),
		WithUpdateHook(func(domain.LiveEstimate) { updates.Add(1) }),
	)
	est.Initialize(context.Background())
	est.Start()
	est.Start()

	assert.Eventually(t, func() bool { return updates.Load() >= 3 }, time.Second, 5*time.Millisecond)

	est.Stop()
	est.Stop()
	after := updates.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, updates.Load())
}

func TestGuard_Success(t *testing.T) {
	var gotResp domain.PaymentResponse
	payer := &fakePayer{resp: &domain.PaymentResponse{Success: true, TransactionID: "TXN123"}}
	g := NewGuard(payer, zerolog.Nop(), WithSuccessHook(func(resp domain.PaymentResponse) { gotResp = resp }))

	state, err := g.Submit(context.Background(), openSession(42, time.Now()), 30.0, domain.PaymentUPI)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSucceeded, state.Phase)
	assert.Equal(t, "TXN123", state.TransactionID)
	assert.Equal(t, 30.0, state.AmountCharged)
	assert.Equal(t, "TXN123", gotResp.TransactionID)

	req := payer.lastReq.Load().(domain.PaymentRequest)
	assert.Equal(t, domain.PaymentRequest{BookingID: 42, Amount: 30.0, PaymentMethod: domain.PaymentUPI}, req)

	state, err = g.Submit(context.Background(), openSession(42, time.Now()), 30.0, domain.PaymentUPI)
	assert.ErrorIs(t, err, ErrAlreadySettled)
	assert.Equal(t, domain.PhaseSucceeded, state.Phase)
	assert.Equal(t, int32(1), payer.calls.Load())
}

func TestGuard_MissingIdentifier(t *testing.T) {
	payer := &fakePayer{resp: &domain.PaymentResponse{Success: true}}
	g := NewGuard(payer, zerolog.Nop())

	session := domain.BookingSession{VehicleType: domain.VehicleCar}
	state, err := g.Submit(context.Background(), session, 10, domain.PaymentCard)

	assert.ErrorIs(t, err, ErrMissingIdentifier)
	assert.Equal(t, domain.PhaseIdle, state.Phase)
	assert.Equal(t, MsgMissingIdentifier, state.Error)
	assert.Equal(t, int32(0), payer.calls.Load())
}

func TestGuard_InvalidMethod(t *testing.T) {
	payer := &fakePayer{}
	g := NewGuard(payer, zerolog.Nop())

	_, err := g.Submit(context.Background(), openSession(1, time.Now()), 10, domain.PaymentMethod("CASH"))
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)
	assert.Equal(t, int32(0), payer.calls.Load())
}

func TestGuard_FailuresAreRetryable(t *testing.T) {
	tests := []struct {
		name    string
		resp    *domain.PaymentResponse
		err     error
		wantMsg string
	}{
		{name: "rejection with message", resp: &domain.PaymentResponse{Success: false, Message: "Booking already paid"}, wantMsg: "Booking already paid"},
		{name: "rejection without message", resp: &domain.PaymentResponse{Success: false}, wantMsg: MsgPaymentRejected},
		{name: "error body with error field", err: &userErr{errText: "card declined"}, wantMsg: "card declined"},
		{name: "error body message first", err: &userErr{message: "insufficient funds", errText: "declined"}, wantMsg: "insufficient funds"},
		{name: "network error", err: errors.New("connection reset"), wantMsg: MsgPaymentFailed},
		{name: "empty response", wantMsg: MsgPaymentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payer := &fakePayer{resp: tt.resp, err: tt.err}
			g := NewGuard(payer, zerolog.Nop())

			state, err := g.Submit(context.Background(), openSession(42, time.Now()), 30, domain.PaymentCard)
			require.NoError(t, err)
			assert.Equal(t, domain.PhaseIdle, state.Phase)
			assert.Equal(t, tt.wantMsg, state.Error)

			// Retry succeeds and clears the message.
			payer.resp, payer.err = &domain.PaymentResponse{Success: true, TransactionID: "TXN9"}, nil
			state, err = g.Submit(context.Background(), openSession(42, time.Now()), 30, domain.PaymentCard)
			require.NoError(t, err)
			assert.Equal(t, domain.PhaseSucceeded, state.Phase)
			assert.Empty(t, state.Error)
			assert.Equal(t, int32(2), payer.calls.Load())
		})
	}
}

func TestGuard_InFlightSubmitIsNoOp(t *testing.T) {
	payer := &fakePayer{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		resp:    &domain.PaymentResponse{Success: true, TransactionID: "TXN1"},
	}
	g := NewGuard(payer, zerolog.Nop())
	session := openSession(42, time.Now())

	done := make(chan domain.SubmissionState, 1)
	go func() {
		state, _ := g.Submit(context.Background(), session, 30, domain.PaymentCard)
		done <- state
	}()
	<-payer.entered

	state, err := g.Submit(context.Background(), session, 30, domain.PaymentCard)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitting, state.Phase)

	close(payer.release)
	final := <-done
	assert.Equal(t, domain.PhaseSucceeded, final.Phase)
	assert.Equal(t, int32(1), payer.calls.Load())
}

func TestGuard_ConcurrentSubmitsMakeOneCall(t *testing.T) {
	payer := &fakePayer{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
		resp:    &domain.PaymentResponse{Success: true, TransactionID: "TXN1"},
	}
	g := NewGuard(payer, zerolog.Nop())
	session := openSession(42, time.Now())

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _ = g.Submit(context.Background(), session, 30, domain.PaymentCard)
		}()
	}
	close(start)
	<-payer.entered
	close(payer.release)
	wg.Wait()

	assert.Equal(t, int32(1), payer.calls.Load())
	assert.Equal(t, domain.PhaseSucceeded, g.State().Phase)
}

func TestGuard_Timeout(t *testing.T) {
	payer := &fakePayer{release: make(chan struct{})}
	g := NewGuard(payer, zerolog.Nop(), WithPaymentTimeout(20*time.Millisecond))

	state, err := g.Submit(context.Background(), openSession(42, time.Now()), 30, domain.PaymentCard)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, domain.PhaseIdle, state.Phase)
	assert.Equal(t, MsgPaymentTimeout, state.Error)
}

func TestGuard_AttemptHook(t *testing.T) {
	var attempts []domain.PaymentAttempt
	payer := &fakePayer{resp: &domain.PaymentResponse{Success: false, Message: "nope"}}
	g := NewGuard(payer, zerolog.Nop(), WithAttemptHook(func(a domain.PaymentAttempt) { attempts = append(attempts, a) }))

	_, _ = g.Submit(context.Background(), domain.BookingSession{}, 1, domain.PaymentCard)
	_, _ = g.Submit(context.Background(), openSession(5, time.Now()), 12.5, domain.PaymentCard)

	require.Len(t, attempts, 1)
	assert.Equal(t, int64(5), attempts[0].BookingID)
	assert.Equal(t, domain.OutcomeRejected, attempts[0].Outcome)
	assert.Equal(t, "nope", attempts[0].Message)
	assert.False(t, attempts[0].TransactionID.Valid)
}
