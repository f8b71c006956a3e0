package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"parking_checkout/internal/domain"
)

// ProcessPayment submits one payment. A 2xx body with success=false is
// returned as a response, not an error.
func (c *Client) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResponse, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/payments/process", req, &raw); err != nil {
		return nil, err
	}
	var resp domain.PaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	resp.Raw = raw
	return &resp, nil
}

func (c *Client) PaymentHistory(ctx context.Context) (*domain.PaymentHistory, error) {
	var history domain.PaymentHistory
	if err := c.do(ctx, http.MethodGet, "/payments/history", nil, &history); err != nil {
		return nil, err
	}
	if history.Payments == nil {
		history.Payments = []domain.BookingSession{}
	}
	return &history, nil
}

func (c *Client) PaymentForBooking(ctx context.Context, bookingID int64) (*domain.BookingPayment, error) {
	var payment domain.BookingPayment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/payments/booking/%d", bookingID), nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}
