package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"parking_checkout/internal/backend"
	"parking_checkout/internal/checkout"
	"parking_checkout/internal/domain"
	"parking_checkout/internal/service"
)

// CheckoutService is what the checkout endpoints need from the service layer.
type CheckoutService interface {
	Open(ctx context.Context, dto domain.OpenCheckoutDTO) (domain.CheckoutView, error)
	Get(id string) (domain.CheckoutView, error)
	Close(id string) error
	Pay(ctx context.Context, id string, dto domain.PayCheckoutDTO) (domain.SubmissionState, error)
	SetVehicleType(ctx context.Context, id string, dto domain.UpdateVehicleTypeDTO) (domain.CheckoutView, error)
	Attempts(ctx context.Context, id string) ([]domain.PaymentAttempt, error)
}

type CheckoutHandler struct {
	checkoutService CheckoutService
}

func NewCheckoutHandler(cs CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: cs}
}

// POST /checkouts
func (h *CheckoutHandler) OpenCheckout(c *gin.Context) {
	var dto domain.OpenCheckoutDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.checkoutService.Open(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err, "Unable to open checkout")
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /checkouts/:id
func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	view, err := h.checkoutService.Get(c.Param("id"))
	if err != nil {
		respondError(c, err, "Unable to load checkout")
		return
	}
	c.JSON(http.StatusOK, view)
}

// DELETE /checkouts/:id
func (h *CheckoutHandler) CloseCheckout(c *gin.Context) {
	if err := h.checkoutService.Close(c.Param("id")); err != nil {
		respondError(c, err, "Unable to close checkout")
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /checkouts/:id/pay
//
// A rejected or failed payment is still a 200: the submission state carries
// the message to show and the checkout can be paid again.
func (h *CheckoutHandler) PayCheckout(c *gin.Context) {
	var dto domain.PayCheckoutDTO
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&dto); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	state, err := h.checkoutService.Pay(c.Request.Context(), c.Param("id"), dto)
	if err != nil {
		if errors.Is(err, checkout.ErrCheckoutNotFound) {
			respondError(c, err, "")
			return
		}
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "submission": state})
		return
	}
	c.JSON(http.StatusOK, state)
}

// PUT /checkouts/:id/vehicle-type
func (h *CheckoutHandler) UpdateVehicleType(c *gin.Context) {
	var dto domain.UpdateVehicleTypeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.checkoutService.SetVehicleType(c.Request.Context(), c.Param("id"), dto)
	if err != nil {
		respondError(c, err, "Unable to update vehicle type")
		return
	}
	c.JSON(http.StatusOK, view)
}

// GET /checkouts/:id/attempts
func (h *CheckoutHandler) GetAttempts(c *gin.Context) {
	attempts, err := h.checkoutService.Attempts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Unable to load payment attempts")
		return
	}
	if attempts == nil {
		attempts = []domain.PaymentAttempt{}
	}
	c.JSON(http.StatusOK, attempts)
}

func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, checkout.ErrCheckoutNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrMissingIdentifier),
		errors.Is(err, domain.ErrInvalidPaymentMethod),
		errors.Is(err, domain.ErrInvalidVehicleType),
		errors.Is(err, service.ErrBookingRequired):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrAlreadySettled):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrLedgerDisabled):
		return http.StatusNotImplemented
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 600 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Server-side failures carry
// summary as the error and the cause under "details".
func respondError(c *gin.Context, err error, summary string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && summary != "" && status != http.StatusGatewayTimeout {
		c.JSON(status, gin.H{"error": summary, "details": backend.ErrorMessage(err, err.Error())})
		return
	}
	c.JSON(status, gin.H{"error": backend.ErrorMessage(err, err.Error())})
}
