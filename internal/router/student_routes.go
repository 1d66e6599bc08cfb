package router

import (
	"github.com/labstack/echo/v4"

	"github.com/cscfi/exam-reservation/internal/handler"
	"github.com/cscfi/exam-reservation/internal/middleware"
	"github.com/cscfi/exam-reservation/internal/model"
)

// RegisterStudent registers the enrolment, slot and reservation
// endpoints under /v1.  Every route requires a valid JWT; administrators
// may call them too, always acting as themselves.  Slot listings go
// through the response cache; everything goes through the rate limiter.
func RegisterStudent(e *echo.Echo, s *handler.SlotHandler, r *handler.ReservationHandler, jwtSecret string, limit, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent, model.RoleAdmin),
		limit,
	)

	g.GET("/rooms/:id/slots", s.RoomSlots, cache)
	g.GET("/external/slots", s.ExternalSlots, cache)

	g.POST("/enrolments", r.CreateEnrolment)
	g.GET("/enrolments/state", r.EnrolmentState)
	g.POST("/enrolments/:exam_id/event", r.BookEvent)
	g.DELETE("/enrolments/:exam_id/event", r.CancelEvent)

	g.POST("/reservations", r.Book)
	g.POST("/external-reservations", r.BookExternal)
	g.DELETE("/reservations/:id", r.Cancel)
	g.GET("/my-reservations", r.MyReservations)
}
