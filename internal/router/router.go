// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/cscfi/exam-reservation/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the login endpoint.  Tokens are only issued
// here; there is no registration or refresh flow, accounts are created
// with the CLI.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
}
