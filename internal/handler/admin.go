package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cscfi/exam-reservation/internal/service"
)

// AdminHandler serves the administrator endpoints.
type AdminHandler struct {
	Reservations *service.ReservationService
	Maintenance  *service.MaintenanceService
	Now          func() time.Time
}

func NewAdminHandler(r *service.ReservationService, m *service.MaintenanceService) *AdminHandler {
	return &AdminHandler{Reservations: r, Maintenance: m, Now: time.Now}
}

// Relocate handles PUT /v1/admin/reservations/:id/machine.
func (h *AdminHandler) Relocate(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var req relocateReq
	if err := c.Bind(&req); err != nil || req.MachineID == 0 {
		return badRequest(c, "machine_id required")
	}
	r, err := h.Reservations.RelocateReservation(c.Request().Context(), id, req.MachineID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservation(r))
}

// ListMaintenance handles GET /v1/admin/maintenance-periods?from=&to=.
// Without a range the next 90 days are listed.
func (h *AdminHandler) ListMaintenance(c echo.Context) error {
	from := h.Now().UTC()
	to := from.AddDate(0, 0, 90)
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest(c, "from must be RFC3339")
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest(c, "to must be RFC3339")
		}
		to = t
	}
	list, err := h.Maintenance.List(c.Request().Context(), from, to)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]maintenanceResp, 0, len(list))
	for _, m := range list {
		out = append(out, toMaintenance(m))
	}
	return c.JSON(http.StatusOK, echo.Map{"maintenance_periods": out})
}

// CreateMaintenance handles POST /v1/admin/maintenance-periods.
func (h *AdminHandler) CreateMaintenance(c echo.Context) error {
	var req maintenanceReq
	if err := c.Bind(&req); err != nil || req.Start.IsZero() || req.End.IsZero() {
		return badRequest(c, "start and end required")
	}
	m, err := h.Maintenance.Create(c.Request().Context(), req.Start, req.End, req.Description)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toMaintenance(m))
}

// DeleteMaintenance handles DELETE /v1/admin/maintenance-periods/:id.
func (h *AdminHandler) DeleteMaintenance(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.Maintenance.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
