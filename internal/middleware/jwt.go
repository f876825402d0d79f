package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"strings" // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/venue-table-reservation/internal/handler"
	"github.com/iliyamo/venue-table-reservation/internal/service"
)

// Authenticator turns a raw bearer token into the calling actor.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (service.Actor, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the resolved actor in the request context.  Handlers read it under
// handler.ActorKey; the caller id and role claim are also exposed as
// "user_id" and "role" for the rate limiter and RequireRole.
func JWTAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return service.Unauthorized("missing bearer token")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			// Verification and the display-name lookup happen in the provider.
			actor, err := auth.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return err
			}

			c.Set(handler.ActorKey, actor)
			c.Set("user_id", actor.ID)
			c.Set("role", actor.Role)
			return next(c)
		}
	}
}
