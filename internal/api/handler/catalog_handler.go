package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"parking_checkout/internal/backend"
	"parking_checkout/internal/domain"
)

// Backend is the part of the parking backend the driver-facing read
// endpoints pass through to.
type Backend interface {
	Locations(ctx context.Context) ([]domain.Location, error)
	NearbyLocations(ctx context.Context, lat, lon, radius float64) (*domain.NearbyLocations, error)
	Location(ctx context.Context, id int64) (*domain.Location, error)
	SlotLayout(ctx context.Context, locationID int64) (*domain.SlotLayout, error)
	SearchLocations(ctx context.Context, query string) ([]domain.Location, error)
	SlotsByLocation(ctx context.Context, locationID int64) ([]domain.Slot, error)
	DefaultPricing(ctx context.Context) (*domain.DefaultPricing, error)
	LocationRate(ctx context.Context, locationID int64, vt domain.VehicleType) (domain.RateQuote, error)
	ActivePromotions(ctx context.Context) ([]domain.Promotion, error)
	PromotionByCode(ctx context.Context, code string) (*domain.Promotion, error)
	PaymentHistory(ctx context.Context) (*domain.PaymentHistory, error)
	PaymentForBooking(ctx context.Context, bookingID int64) (*domain.BookingPayment, error)
	Booking(ctx context.Context, bookingID int64) (*domain.BookingSession, error)
	LiveBookingStatus(ctx context.Context, bookingID int64) (*domain.BookingSession, error)
	MyBookings(ctx context.Context) ([]domain.BookingSession, error)
	BookingHistory(ctx context.Context, scope backend.HistoryScope, page, size int) (*domain.BookingPage, error)
	Checkout(ctx context.Context, bookingID int64) (*domain.BookingSession, error)
}

// Remounter refreshes an open checkout after the booking changed.
type Remounter interface {
	Remount(ctx context.Context, session domain.BookingSession) bool
}

type CatalogHandler struct {
	backend   Backend
	remounter Remounter
}

func NewCatalogHandler(b Backend, r Remounter) *CatalogHandler {
	return &CatalogHandler{backend: b, remounter: r}
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func (h *CatalogHandler) respond(c *gin.Context, v any, err error) {
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": backend.ErrorMessage(err, "Parking backend unavailable")})
		return
	}
	c.JSON(http.StatusOK, v)
}

// GET /locations
func (h *CatalogHandler) GetLocations(c *gin.Context) {
	locations, err := h.backend.Locations(c.Request.Context())
	h.respond(c, locations, err)
}

// GET /locations/nearby?lat=&lon=&radius=
func (h *CatalogHandler) GetNearbyLocations(c *gin.Context) {
	var dto domain.LocationSearchDTO
	if err := c.ShouldBindQuery(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	nearby, err := h.backend.NearbyLocations(c.Request.Context(), dto.Lat, dto.Lon, dto.Radius)
	h.respond(c, nearby, err)
}

// GET /locations/search?q=
func (h *CatalogHandler) SearchLocations(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	locations, err := h.backend.SearchLocations(c.Request.Context(), query)
	h.respond(c, locations, err)
}

// GET /locations/:id
func (h *CatalogHandler) GetLocation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	location, err := h.backend.Location(c.Request.Context(), id)
	h.respond(c, location, err)
}

// GET /locations/:id/layout
func (h *CatalogHandler) GetSlotLayout(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	layout, err := h.backend.SlotLayout(c.Request.Context(), id)
	h.respond(c, layout, err)
}

// GET /locations/:id/slots
func (h *CatalogHandler) GetSlots(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	slots, err := h.backend.SlotsByLocation(c.Request.Context(), id)
	h.respond(c, slots, err)
}

// GET /pricing/default
func (h *CatalogHandler) GetDefaultPricing(c *gin.Context) {
	pricing, err := h.backend.DefaultPricing(c.Request.Context())
	h.respond(c, pricing, err)
}

// GET /pricing/:id/:vehicleType
func (h *CatalogHandler) GetLocationRate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	vt, err := domain.ParseVehicleType(c.Param("vehicleType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quote, err := h.backend.LocationRate(c.Request.Context(), id, vt)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locationId": id, "vehicleType": vt, "hourlyRate": quote.Normalize()})
}

// GET /promotions/active
func (h *CatalogHandler) GetActivePromotions(c *gin.Context) {
	promos, err := h.backend.ActivePromotions(c.Request.Context())
	h.respond(c, promos, err)
}

// GET /promotions/code/:code
func (h *CatalogHandler) GetPromotionByCode(c *gin.Context) {
	promo, err := h.backend.PromotionByCode(c.Request.Context(), c.Param("code"))
	h.respond(c, promo, err)
}

// GET /payments/history
func (h *CatalogHandler) GetPaymentHistory(c *gin.Context) {
	history, err := h.backend.PaymentHistory(c.Request.Context())
	h.respond(c, history, err)
}

// GET /payments/booking/:id
func (h *CatalogHandler) GetBookingPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	payment, err := h.backend.PaymentForBooking(c.Request.Context(), id)
	h.respond(c, payment, err)
}

// GET /bookings/my
func (h *CatalogHandler) GetMyBookings(c *gin.Context) {
	bookings, err := h.backend.MyBookings(c.Request.Context())
	h.respond(c, bookings, err)
}

// GET /bookings/history/:scope?page=&size=
func (h *CatalogHandler) GetBookingHistory(c *gin.Context) {
	scope := backend.HistoryScope(strings.ToLower(c.Param("scope")))
	if scope != backend.HistoryCurrent && scope != backend.HistoryPast {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be current or past"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 0 {
		page = 0
	}
	history, err := h.backend.BookingHistory(c.Request.Context(), scope, page, size)
	h.respond(c, history, err)
}

// GET /bookings/:id
func (h *CatalogHandler) GetBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	booking, err := h.backend.Booking(c.Request.Context(), id)
	h.respond(c, booking, err)
}

// GET /bookings/:id/live
func (h *CatalogHandler) GetLiveStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	booking, err := h.backend.LiveBookingStatus(c.Request.Context(), id)
	h.respond(c, booking, err)
}

// POST /bookings/:id/checkout
//
// Ends the parking session on the backend and freezes the open checkout at
// the backend's final duration and fee.
func (h *CatalogHandler) EndParking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	booking, err := h.backend.Checkout(c.Request.Context(), id)
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	if !booking.HasID() {
		booking.ID.SetValid(id)
	}
	remounted := false
	if h.remounter != nil {
		remounted = h.remounter.Remount(c.Request.Context(), *booking)
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking, "checkout_updated": remounted})
}
