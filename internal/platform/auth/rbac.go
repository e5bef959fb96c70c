package auth

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole rejects unauthenticated requests with 401 and callers whose
// role is not listed with 403.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, r := range roles {
				if actor.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("required role: %v", roles))
		}
	}
}

// RequireActor only checks that some actor is authenticated.
func RequireActor() echo.MiddlewareFunc {
	return RequireRole(RolePatient, RoleDoctor)
}
