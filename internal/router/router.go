package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/rental-booking/internal/handler"
	"github.com/iliyamo/rental-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication: the
// health check, Prometheus metrics and listing availability.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, b *handler.BookingHandler) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/v1/listings/:id/availability", b.Availability)
}

// RegisterBookings registers the booking lifecycle under /v1/bookings.
// Every route requires a valid access token; whether the caller is the
// tenant or the landlord is decided per booking by the service.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/bookings", middleware.JWTAuth(jwtSecret))
	g.POST("", b.Create)
	// Static segments win over :id in echo's router.
	g.GET("/my", b.ListMine)
	g.GET("/owner", b.ListOwned)
	g.GET("/:id", b.Get)
	g.POST("/:id/confirm", b.Confirm)
	g.PATCH("/:id/decline", b.Decline)
	g.PATCH("/:id/cancel", b.Cancel)
}
