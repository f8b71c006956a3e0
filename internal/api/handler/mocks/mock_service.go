package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"parking_checkout/internal/backend"
	"parking_checkout/internal/domain"
)

// MockCheckoutService is a mock implementation of handler.CheckoutService
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Open(ctx context.Context, dto domain.OpenCheckoutDTO) (domain.CheckoutView, error) {
	args := m.Called(ctx, dto)
	return args.Get(0).(domain.CheckoutView), args.Error(1)
}

func (m *MockCheckoutService) Get(id string) (domain.CheckoutView, error) {
	args := m.Called(id)
	return args.Get(0).(domain.CheckoutView), args.Error(1)
}

func (m *MockCheckoutService) Close(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockCheckoutService) Pay(ctx context.Context, id string, dto domain.PayCheckoutDTO) (domain.SubmissionState, error) {
	args := m.Called(ctx, id, dto)
	return args.Get(0).(domain.SubmissionState), args.Error(1)
}

func (m *MockCheckoutService) SetVehicleType(ctx context.Context, id string, dto domain.UpdateVehicleTypeDTO) (domain.CheckoutView, error) {
	args := m.Called(ctx, id, dto)
	return args.Get(0).(domain.CheckoutView), args.Error(1)
}

func (m *MockCheckoutService) Attempts(ctx context.Context, id string) ([]domain.PaymentAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PaymentAttempt), args.Error(1)
}

func (m *MockCheckoutService) Remount(ctx context.Context, session domain.BookingSession) bool {
	return m.Called(ctx, session).Bool(0)
}

// MockBackend is a mock implementation of handler.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Locations(ctx context.Context) ([]domain.Location, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Location), args.Error(1)
}

func (m *MockBackend) NearbyLocations(ctx context.Context, lat, lon, radius float64) (*domain.NearbyLocations, error) {
	args := m.Called(ctx, lat, lon, radius)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NearbyLocations), args.Error(1)
}

func (m *MockBackend) Location(ctx context.Context, id int64) (*domain.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Location), args.Error(1)
}

func (m *MockBackend) SlotLayout(ctx context.Context, locationID int64) (*domain.SlotLayout, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SlotLayout), args.Error(1)
}

func (m *MockBackend) SearchLocations(ctx context.Context, query string) ([]domain.Location, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Location), args.Error(1)
}

func (m *MockBackend) SlotsByLocation(ctx context.Context, locationID int64) ([]domain.Slot, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Slot), args.Error(1)
}

func (m *MockBackend) DefaultPricing(ctx context.Context) (*domain.DefaultPricing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DefaultPricing), args.Error(1)
}

func (m *MockBackend) LocationRate(ctx context.Context, locationID int64, vt domain.VehicleType) (domain.RateQuote, error) {
	args := m.Called(ctx, locationID, vt)
	return args.Get(0).(domain.RateQuote), args.Error(1)
}

func (m *MockBackend) ActivePromotions(ctx context.Context) ([]domain.Promotion, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Promotion), args.Error(1)
}

func (m *MockBackend) PromotionByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Promotion), args.Error(1)
}

func (m *MockBackend) PaymentHistory(ctx context.Context) (*domain.PaymentHistory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentHistory), args.Error(1)
}

func (m *MockBackend) PaymentForBooking(ctx context.Context, bookingID int64) (*domain.BookingPayment, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingPayment), args.Error(1)
}

func (m *MockBackend) Booking(ctx context.Context, bookingID int64) (*domain.BookingSession, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingSession), args.Error(1)
}

func (m *MockBackend) LiveBookingStatus(ctx context.Context, bookingID int64) (*domain.BookingSession, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingSession), args.Error(1)
}

func (m *MockBackend) MyBookings(ctx context.Context) ([]domain.BookingSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BookingSession), args.Error(1)
}

func (m *MockBackend) BookingHistory(ctx context.Context, scope backend.HistoryScope, page, size int) (*domain.BookingPage, error) {
	args := m.Called(ctx, scope, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingPage), args.Error(1)
}

func (m *MockBackend) Checkout(ctx context.Context, bookingID int64) (*domain.BookingSession, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingSession), args.Error(1)
}
