package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"parking_checkout/internal/api/handler"
	"parking_checkout/internal/api/middleware"
)

func SetupRouter(cs handler.CheckoutService, be handler.Backend, remounter handler.Remounter,
	authMw *middleware.AuthMiddleware, wsManager *handler.WebSocketManager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", "Cache-Control", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Live push does not carry a bearer header; browsers cannot set one on
	// the upgrade request.
	wsHandler := handler.NewWebSocketHandler(wsManager)
	r.GET("/ws", wsHandler.HandleWebSocket)

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		checkoutH := handler.NewCheckoutHandler(cs)
		checkoutRoutes := v1.Group("/checkouts")
		{
			checkoutRoutes.POST("", checkoutH.OpenCheckout)
			checkoutRoutes.GET("/:id", checkoutH.GetCheckout)
			checkoutRoutes.DELETE("/:id", checkoutH.CloseCheckout)
			checkoutRoutes.POST("/:id/pay", checkoutH.PayCheckout)
			checkoutRoutes.PUT("/:id/vehicle-type", checkoutH.UpdateVehicleType)
			checkoutRoutes.GET("/:id/attempts", checkoutH.GetAttempts)
		}

		catalogH := handler.NewCatalogHandler(be, remounter)
		locationRoutes := v1.Group("/locations")
		{
			locationRoutes.GET("", catalogH.GetLocations)
			locationRoutes.GET("/nearby", catalogH.GetNearbyLocations)
			locationRoutes.GET("/search", catalogH.SearchLocations)
			locationRoutes.GET("/:id", catalogH.GetLocation)
			locationRoutes.GET("/:id/layout", catalogH.GetSlotLayout)
			locationRoutes.GET("/:id/slots", catalogH.GetSlots)
		}

		v1.GET("/pricing/default", catalogH.GetDefaultPricing)
		v1.GET("/pricing/:id/:vehicleType", catalogH.GetLocationRate)

		promoRoutes := v1.Group("/promotions")
		{
			promoRoutes.GET("/active", catalogH.GetActivePromotions)
			promoRoutes.GET("/code/:code", catalogH.GetPromotionByCode)
		}

		paymentRoutes := v1.Group("/payments")
		{
			paymentRoutes.GET("/history", catalogH.GetPaymentHistory)
			paymentRoutes.GET("/booking/:id", catalogH.GetBookingPayment)
		}

		bookingRoutes := v1.Group("/bookings")
		{
			bookingRoutes.GET("/my", catalogH.GetMyBookings)
			bookingRoutes.GET("/history/:scope", catalogH.GetBookingHistory)
			bookingRoutes.GET("/:id", catalogH.GetBooking)
			bookingRoutes.GET("/:id/live", catalogH.GetLiveStatus)
			bookingRoutes.POST("/:id/checkout", catalogH.EndParking)
		}
	}
	return r
}
