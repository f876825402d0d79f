package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/venue-table-reservation/internal/handler"    // handlers for the reservation operations
	"github.com/iliyamo/venue-table-reservation/internal/middleware" // authentication, role and rate limit middleware
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only the health check used by
// load balancers and monitoring systems.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterReservation mounts the reservation operations under /v1.  Every
// route runs JWTAuth first, so the role check and the rate limiter can key
// on the caller; limiter may be nil to disable rate limiting.
func RegisterReservation(e *echo.Echo, h *handler.ReservationHandler, auth middleware.Authenticator, roles []string, limiter echo.MiddlewareFunc) {
	mws := []echo.MiddlewareFunc{
		middleware.JWTAuth(auth),
		middleware.RequireRole(roles...),
	}
	if limiter != nil {
		mws = append(mws, limiter)
	}
	g := e.Group("/v1", mws...)
	h.RegisterRoutes(g)
}
