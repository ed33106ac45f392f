package router // package router wires handlers and middleware onto echo

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/handler"
)

// RegisterRoutes registers routes that need no authentication: the health
// check used by load balancers.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterPublic registers the browse endpoints guests can call before
// signing in: the seat table, live occupancy, seat recommendations and
// promo code checks.
func RegisterPublic(e *echo.Echo, b *handler.BookingHandler) {
	g := e.Group("/v1")
	g.GET("/seats", b.ListSeats)
	g.GET("/sessions/occupancy", b.Occupancy)
	g.GET("/sessions/recommendation", b.Recommend)
	g.POST("/promo-codes/validate", b.ValidatePromo)
}
