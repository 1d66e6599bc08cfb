// Package middleware contains the echo middleware shared by the API:
// bearer token authentication, role guards, a Redis token bucket and a
// Redis response cache.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cscfi/exam-reservation/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// JWTAuth validates a Bearer access token and stores the caller's user ID
// (uint64) and role (string) in the context.  Handlers read them back with
// CurrentUserID and CurrentRole.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}
