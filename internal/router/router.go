// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/otworld/assembly-bookings/internal/config"
	"github.com/otworld/assembly-bookings/internal/handler"
	"github.com/otworld/assembly-bookings/internal/middleware"
	"github.com/otworld/assembly-bookings/internal/model"
)

// Register mounts every route on the provided Echo instance.  The public
// booking flow sits behind the Redis rate limiter; the read-only item
// catalog additionally gets the response cache; the staff API requires
// the static bearer token.  Webhooks are mounted bare: gateways sign their
// deliveries, and a rate limiter in front of them would only turn a
// retry storm into lost events.
func Register(e *echo.Echo, b *handler.BookingHandler, a *handler.AttendeeHandler, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	pub := e.Group("/v1/bookings", limiter)
	pub.GET("/form", b.Form)
	pub.GET("/items", b.Catalog, cache)
	pub.GET("/qr", b.QR)
	pub.POST("/save", b.Save)
	pub.GET("/confirmation", b.Confirmation)
	pub.POST("/stripe/capture-order", b.Capture(model.MethodStripe))
	pub.POST("/paypal/capture-order", b.Capture(model.MethodPayPal))

	e.POST("/v1/bookings/stripe/webhook", b.Webhook(model.MethodStripe))
	e.POST("/v1/bookings/paypal/webhook", b.Webhook(model.MethodPayPal))

	staff := e.Group("/v1/api", middleware.StaticBearer(cfg.APIBearerToken))
	staff.GET("/attendee", a.Ping)
	staff.POST("/attendee", a.Action)
	staff.POST("/booking-links", a.BookingLink)
}
