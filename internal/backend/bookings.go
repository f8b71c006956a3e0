package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"parking_checkout/internal/domain"
)

func (c *Client) Booking(ctx context.Context, bookingID int64) (*domain.BookingSession, error) {
	var booking domain.BookingSession
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/bookings/%d", bookingID), nil, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// LiveBookingStatus returns the booking as the backend currently sees it,
// including a server-side duration for open sessions.
func (c *Client) LiveBookingStatus(ctx context.Context, bookingID int64) (*domain.BookingSession, error) {
	var booking domain.BookingSession
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/bookings/status/%d/live", bookingID), nil, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *Client) MyBookings(ctx context.Context) ([]domain.BookingSession, error) {
	var bookings []domain.BookingSession
	if err := c.do(ctx, http.MethodGet, "/bookings/my", nil, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

type HistoryScope string

const (
	HistoryCurrent HistoryScope = "current"
	HistoryPast    HistoryScope = "past"
)

func (c *Client) BookingHistory(ctx context.Context, scope HistoryScope, page, size int) (*domain.BookingPage, error) {
	if size <= 0 {
		size = 20
	}
	q := url.Values{}
	q.Set("pageNumber", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(size))

	var result domain.BookingPage
	path := fmt.Sprintf("/bookings/history/%s?%s", scope, q.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Checkout asks the backend to close the session. The returned booking
// carries the authoritative exit time, duration and fee.
func (c *Client) Checkout(ctx context.Context, bookingID int64) (*domain.BookingSession, error) {
	var booking domain.BookingSession
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/bookings/%d/checkout", bookingID), nil, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}
