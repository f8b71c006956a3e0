package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking_checkout/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/api", ServiceToken: "svc-token", Timeout: 2 * time.Second}, zerolog.Nop())
}

func TestProcessPayment_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/payments/process", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		var req domain.PaymentRequest
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, int64(42), req.BookingID)
		assert.Equal(t, 30.0, req.Amount)
		assert.Equal(t, domain.PaymentCard, req.PaymentMethod)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"transactionId":"TXN123","message":"Payment processed","bookingId":42,"amount":30.0,"paymentMethod":"CARD"}`))
	})

	ctx := WithToken(context.Background(), "user-token")
	resp, err := client.ProcessPayment(ctx, domain.PaymentRequest{BookingID: 42, Amount: 30, PaymentMethod: domain.PaymentCard})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "TXN123", resp.TransactionID)
	assert.Equal(t, int64(42), resp.BookingID.Int64)
	assert.NotEmpty(t, resp.Raw)
}

func TestProcessPayment_ServiceTokenFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":false,"message":"Booking already paid"}`))
	})

	resp, err := client.ProcessPayment(context.Background(), domain.PaymentRequest{BookingID: 1, Amount: 5, PaymentMethod: domain.PaymentUPI})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Booking already paid", resp.Message)
}

func TestProcessPayment_ErrorBodies(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{name: "message field", status: http.StatusBadRequest, body: `{"success":false,"message":"Booking not found"}`, wantMessage: "Booking not found"},
		{name: "error field", status: http.StatusPaymentRequired, body: `{"error":"card declined"}`, wantMessage: "card declined"},
		{name: "message wins over error", status: http.StatusBadRequest, body: `{"message":"first","error":"second"}`, wantMessage: "first"},
		{name: "plain text", status: http.StatusInternalServerError, body: `upstream exploded`, wantMessage: "fallback"},
		{name: "empty body", status: http.StatusBadGateway, body: ``, wantMessage: "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.ProcessPayment(context.Background(), domain.PaymentRequest{BookingID: 7, Amount: 1, PaymentMethod: domain.PaymentCard})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, ErrorMessage(err, "fallback"))
		})
	}
}

func TestErrorMessage_TransportError(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1/api", Timeout: time.Second}, zerolog.Nop())

	_, err := client.ProcessPayment(context.Background(), domain.PaymentRequest{BookingID: 7})
	require.Error(t, err)
	assert.Equal(t, "Failed to process payment. Please try again.", ErrorMessage(err, "Failed to process payment. Please try again."))
}

func TestBooking_DecodesAliasesAndLocalTime(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bookings/42", r.URL.Path)
		_, _ = w.Write([]byte(`{"bookingId":42,"slotId":3,"slotNumber":"Slot-3","vehicleType":"suv","entryTime":"2024-05-01T10:15:30","exitTime":null,"status":"ACTIVE"}`))
	})

	booking, err := client.Booking(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), booking.ID.Int64)
	assert.Equal(t, domain.VehicleSUV, booking.VehicleType)
	require.True(t, booking.EntryTime.Valid)
	assert.Equal(t, 10, booking.EntryTime.Time.Hour())
	assert.False(t, booking.IsClosed())
}

func TestBooking_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Booking not found"}`))
	})

	_, err := client.Booking(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestBookingHistory_Query(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bookings/history/past", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("pageNumber"))
		assert.Equal(t, "20", r.URL.Query().Get("pageSize"))
		_, _ = w.Write([]byte(`{"content":[{"id":1,"vehicleType":"CAR"}],"totalElements":1,"totalPages":1,"number":2,"size":20}`))
	})

	page, err := client.BookingHistory(context.Background(), HistoryPast, 2, 0)
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, int64(1), page.TotalElements)
}

func TestNearbyLocations_Query(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/map/locations/nearby", r.URL.Path)
		assert.Equal(t, "12.97", r.URL.Query().Get("lat"))
		assert.Equal(t, "77.59", r.URL.Query().Get("lon"))
		assert.Equal(t, "10", r.URL.Query().Get("radius"))
		_, _ = w.Write([]byte(`{"userLocation":{"latitude":12.97,"longitude":77.59},"searchRadius":10,"count":1,"locations":[{"id":5,"name":"MG Road","totalSlots":40,"availableSlots":12,"isActive":true}]}`))
	})

	nearby, err := client.NearbyLocations(context.Background(), 12.97, 77.59, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, nearby.Count)
	assert.Equal(t, "MG Road", nearby.Locations[0].Name)
}

func TestPromotionByCode_Escapes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/promotions/code/SAVE 10", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":1,"code":"SAVE 10","discountPercentage":10,"status":"ACTIVE"}`))
	})

	promo, err := client.PromotionByCode(context.Background(), "SAVE 10")
	require.NoError(t, err)
	assert.Equal(t, 10.0, promo.DiscountPercentage.Float64)
}

func TestPricingCache_CachesDefaultTable(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/pricing/default", r.URL.Path)
		_, _ = w.Write([]byte(`{"pricing":[{"vehicleType":"CAR","pricePerHour":20},{"vehicleType":"BIKE","pricePerHour":10}]}`))
	})
	cache := NewPricingCache(client, 4, time.Minute)

	quote, err := cache.HourlyRate(context.Background(), domain.VehicleCar)
	require.NoError(t, err)
	assert.Equal(t, 20.0, quote.Normalize())

	quote, err = cache.HourlyRate(context.Background(), domain.VehicleBike)
	require.NoError(t, err)
	assert.Equal(t, 10.0, quote.Normalize())
	assert.Equal(t, int32(1), calls.Load())

	_, err = cache.HourlyRate(context.Background(), domain.VehicleTruck)
	assert.ErrorIs(t, err, ErrRateNotListed)

	cache.Invalidate()
	_, err = cache.HourlyRate(context.Background(), domain.VehicleCar)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPricingCache_BackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	cache := NewPricingCache(client, 4, time.Minute)

	_, err := cache.HourlyRate(context.Background(), domain.VehicleCar)
	require.Error(t, err)
}
