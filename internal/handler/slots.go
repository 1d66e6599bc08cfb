package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cscfi/exam-reservation/internal/service"
)

// SlotHandler serves slot listings.
type SlotHandler struct {
	Slots *service.SlotService
}

func NewSlotHandler(s *service.SlotService) *SlotHandler { return &SlotHandler{Slots: s} }

// RoomSlots handles GET /v1/rooms/:id/slots?exam_id=&date=.
func (h *SlotHandler) RoomSlots(c echo.Context) error {
	roomID, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	examID, ok := uintQuery(c, "exam_id")
	if !ok {
		return badRequest(c, "exam_id required")
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	slots, err := h.Slots.OpenSlots(c.Request().Context(), roomID, examID, date)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}

// ExternalSlots handles GET /v1/external/slots?org=&room=&exam_id=&date=.
func (h *SlotHandler) ExternalSlots(c echo.Context) error {
	examID, ok := uintQuery(c, "exam_id")
	if !ok {
		return badRequest(c, "exam_id required")
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	org := strings.TrimSpace(c.QueryParam("org"))
	room := strings.TrimSpace(c.QueryParam("room"))
	slots, err := h.Slots.ExternalSlots(c.Request().Context(), org, room, examID, date)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}
