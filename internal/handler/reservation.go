package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cscfi/exam-reservation/internal/service"
)

// ReservationHandler serves the student-facing enrolment, reservation and
// examination event endpoints.  The caller is always the authenticated
// user; IDs in bodies never select another user.
type ReservationHandler struct {
	Svc *service.ReservationService
}

func NewReservationHandler(s *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{Svc: s}
}

// CreateEnrolment handles POST /v1/enrolments.
func (h *ReservationHandler) CreateEnrolment(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req enrolReq
	if err := c.Bind(&req); err != nil || req.ExamID == 0 {
		return badRequest(c, "exam_id required")
	}
	e, err := h.Svc.CreateEnrolment(c.Request().Context(), uid, req.ExamID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toEnrolment(e))
}

// EnrolmentState handles GET /v1/enrolments/state?exam_id=.
func (h *ReservationHandler) EnrolmentState(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return unauthorized(c)
	}
	examID, ok := uintQuery(c, "exam_id")
	if !ok {
		return badRequest(c, "exam_id required")
	}
	st, err := h.Svc.EnrolmentState(c.Request().Context(), uid, examID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"exam_id": examID, "state": st})
}

// Book handles POST /v1/reservations.
func (h *ReservationHandler) Book(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.ExamID == 0 || req.RoomID == 0 || req.Start.IsZero() || req.End.IsZero() {
		return badRequest(c, "exam_id, room_id, start and end required")
	}
	r, err := h.Svc.BookReservation(c.Request().Context(), service.BookRequest{
		UserID: uid,
		ExamID: req.ExamID,
		RoomID: req.RoomID,
		Start:  req.Start,
		End:    req.End,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservation(r))
}

// BookExternal handles POST /v1/external-reservations.
func (h *ReservationHandler) BookExternal(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req externalBookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.ExamID == 0 || req.Start.IsZero() || req.End.IsZero() {
		return badRequest(c, "exam_id, org_ref, room_ref, start and end required")
	}
	r, err := h.Svc.BookExternalReservation(c.Request().Context(), service.ExternalBookRequest{
		UserID:  uid,
		ExamID:  req.ExamID,
		OrgRef:  req.OrgRef,
		RoomRef: req.RoomRef,
		Start:   req.Start,
		End:     req.End,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservation(r))
}

// Cancel handles DELETE /v1/reservations/:id?remove_enrolment=true.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	remove := false
	if v := c.QueryParam("remove_enrolment"); v != "" {
		if remove, err = strconv.ParseBool(v); err != nil {
			return badRequest(c, "remove_enrolment must be a boolean")
		}
	}
	if err := h.Svc.CancelReservation(c.Request().Context(), uid, id, remove); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MyReservations handles GET /v1/my-reservations.
func (h *ReservationHandler) MyReservations(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return unauthorized(c)
	}
	list, err := h.Svc.ListReservations(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]reservationResp, 0, len(list))
	for _, r := range list {
		out = append(out, toReservation(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// BookEvent handles POST /v1/enrolments/:exam_id/event.
func (h *ReservationHandler) BookEvent(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return unauthorized(c)
	}
	examID, ok := idParam(c, "exam_id")
	if !ok {
		return badRequest(c, "invalid exam id")
	}
	var req eventReq
	if err := c.Bind(&req); err != nil || req.ConfigurationID == 0 {
		return badRequest(c, "configuration_id required")
	}
	e, err := h.Svc.BookExaminationEvent(c.Request().Context(), uid, examID, req.ConfigurationID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toEnrolment(e))
}

// CancelEvent handles DELETE /v1/enrolments/:exam_id/event.
func (h *ReservationHandler) CancelEvent(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return unauthorized(c)
	}
	examID, ok := idParam(c, "exam_id")
	if !ok {
		return badRequest(c, "invalid exam id")
	}
	if err := h.Svc.CancelExaminationEvent(c.Request().Context(), uid, examID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
