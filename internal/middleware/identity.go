package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// CurrentUserID returns the authenticated user's ID set by JWTAuth.
func CurrentUserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// CurrentRole returns the authenticated user's role set by JWTAuth.
func CurrentRole(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

// userKey identifies the caller in rate limit keys; "anon" when the
// request is not authenticated.
func userKey(c echo.Context) string {
	if id, ok := CurrentUserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
