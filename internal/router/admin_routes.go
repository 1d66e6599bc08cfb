package router

import (
	"github.com/labstack/echo/v4"

	"github.com/cscfi/exam-reservation/internal/handler"
	"github.com/cscfi/exam-reservation/internal/middleware"
	"github.com/cscfi/exam-reservation/internal/model"
)

// RegisterAdmin registers administrator endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.PUT("/reservations/:id/machine", h.Relocate)
	g.GET("/maintenance-periods", h.ListMaintenance)
	g.POST("/maintenance-periods", h.CreateMaintenance)
	g.DELETE("/maintenance-periods/:id", h.DeleteMaintenance)
}
