package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/handler"
	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
)

// RegisterCustomer mounts the order endpoints. Every route requires a
// CUSTOMER access token; limiter runs after authentication so buckets can
// be keyed by customer.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/orders",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer),
	)
	if limiter != nil {
		g.Use(limiter)
	}

	g.POST("", b.CreateOrder)                // reserve seats and open a PENDING order
	g.GET("", b.ListOrders)                  // order history, newest first
	g.GET("/:id", b.GetOrder)                // one order
	g.GET("/:id/ticket", b.Ticket)           // admission QR code of a paid order
	g.POST("/:id/payment", b.CapturePayment) // pay and confirm
	g.POST("/:id/abandon", b.AbandonOrder)   // give up a PENDING order
	g.DELETE("/:id", b.CancelOrder)          // cancel a CONFIRMED order within the window
}
