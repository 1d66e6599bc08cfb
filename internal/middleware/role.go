package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole rejects requests whose role, as stored by JWTAuth, is not
// one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[CurrentRole(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "role not allowed"})
			}
			return next(c)
		}
	}
}
