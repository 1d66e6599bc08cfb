package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cscfi/exam-reservation/internal/config"
	"github.com/cscfi/exam-reservation/internal/handler"
	"github.com/cscfi/exam-reservation/internal/middleware"
	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/repository/memstore"
	"github.com/cscfi/exam-reservation/internal/service"
	"github.com/cscfi/exam-reservation/internal/utils"
)

const secret = "test-secret"

type api struct {
	e    *echo.Echo
	exam model.Exam
	room model.Room
}

func newAPI(t *testing.T) *api {
	t.Helper()

	st := memstore.New()
	hash, err := utils.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)
	st.AddUser(model.User{ID: 1, Email: "student@example.org", PasswordHash: hash, Role: model.RoleStudent, IsActive: true})
	st.AddUser(model.User{ID: 2, Email: "admin@example.org", PasswordHash: hash, Role: model.RoleAdmin, IsActive: true})

	var hours []model.WorkingHours
	for d := time.Monday; d <= time.Friday; d++ {
		hours = append(hours, model.WorkingHours{Weekday: d, OpenMinute: 9 * 60, CloseMinute: 17 * 60})
	}
	room := st.AddRoom(model.Room{Name: "Aquarium", Timezone: "UTC", DefaultHours: hours, Active: true})
	st.AddMachine(model.Machine{RoomID: room.ID, Name: "ws-1"})
	exam := st.AddExam(model.Exam{
		Name:            "Algebra",
		DurationMinutes: 60,
		PeriodStart:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	})

	cfg := config.DefaultScheduler()
	cfg.DefaultTimezone = "UTC"
	now := func() time.Time { return time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC) }
	logger := zap.NewNop()
	reservations := service.NewReservationService(st, nil, nil, cfg, now, logger)
	slots := service.NewSlotService(st, nil, cfg, now, logger)
	maintenance := service.NewMaintenanceService(st, logger)
	admin := handler.NewAdminHandler(reservations, maintenance)
	admin.Now = now

	e := echo.New()
	e.Use(middleware.ContextLogger(logger))
	limit := middleware.NewTokenBucket(config.RateLimitConfig{}, nil, logger)
	cache := middleware.NewRedisCache(config.CacheConfig{}, nil)
	RegisterRoutes(e)
	RegisterAuth(e, handler.NewAuthHandler(st, secret, 5))
	RegisterStudent(e, handler.NewSlotHandler(slots), handler.NewReservationHandler(reservations), secret, limit, cache)
	RegisterAdmin(e, admin, secret)
	return &api{e: e, exam: exam, room: room}
}

func (a *api) call(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr *strings.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = strings.NewReader(string(bs))
	} else {
		rdr = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (a *api) login(t *testing.T, email string) string {
	t.Helper()
	rec, out := a.call(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	access, ok := out["access"].(map[string]any)
	require.True(t, ok)
	return access["token"].(string)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec, _ := newAPI(t).call(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	t.Parallel()

	a := newAPI(t)
	rec, _ := a.call(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "student@example.org", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = a.call(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ghost@example.org", "password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStudentBookingFlow(t *testing.T) {
	t.Parallel()

	a := newAPI(t)
	token := a.login(t, "student@example.org")

	rec, out := a.call(t, http.MethodGet, fmt.Sprintf("/v1/rooms/%d/slots?exam_id=%d&date=2024-03-14", a.room.ID, a.exam.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, out["slots"], 8)

	rec, _ = a.call(t, http.MethodPost, "/v1/reservations", token, map[string]any{
		"exam_id": a.exam.ID, "room_id": a.room.ID,
		"start": "2024-03-14T10:00:00Z", "end": "2024-03-14T11:00:00Z",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code, "booking requires an enrolment")

	rec, _ = a.call(t, http.MethodPost, "/v1/enrolments", token, map[string]any{"exam_id": a.exam.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, out = a.call(t, http.MethodPost, "/v1/reservations", token, map[string]any{
		"exam_id": a.exam.ID, "room_id": a.room.ID,
		"start": "2024-03-14T10:00:00Z", "end": "2024-03-14T11:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := uint64(out["id"].(float64))

	rec, out = a.call(t, http.MethodGet, fmt.Sprintf("/v1/enrolments/state?exam_id=%d", a.exam.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.StateReserved), out["state"])

	rec, out = a.call(t, http.MethodGet, "/v1/my-reservations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["reservations"], 1)

	rec, _ = a.call(t, http.MethodDelete, fmt.Sprintf("/v1/reservations/%d?remove_enrolment=maybe", id), token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.call(t, http.MethodDelete, fmt.Sprintf("/v1/reservations/%d", id), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, out = a.call(t, http.MethodDelete, fmt.Sprintf("/v1/reservations/%d", id), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.CodeNotFound, out["error"])

	rec, out = a.call(t, http.MethodGet, fmt.Sprintf("/v1/enrolments/state?exam_id=%d", a.exam.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.StateEnrolledNoReservation), out["state"])
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	a := newAPI(t)
	token := a.login(t, "student@example.org")

	rec, out := a.call(t, http.MethodGet, fmt.Sprintf("/v1/rooms/%d/slots?exam_id=%d&date=14.3.2024", a.room.ID, a.exam.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.CodeInvalidInput, out["error"])

	rec, _ = a.call(t, http.MethodGet, "/v1/rooms/abc/slots?exam_id=1&date=2024-03-14", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = a.call(t, http.MethodGet, fmt.Sprintf("/v1/rooms/999/slots?exam_id=%d&date=2024-03-14", a.exam.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.CodeNotFound, out["error"])

	rec, _ = a.call(t, http.MethodPost, "/v1/reservations", "", map[string]any{"exam_id": 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminEndpoints(t *testing.T) {
	t.Parallel()

	a := newAPI(t)
	student := a.login(t, "student@example.org")
	admin := a.login(t, "admin@example.org")

	body := map[string]any{"start": "2024-03-14T12:00:00Z", "end": "2024-03-14T13:00:00Z", "description": "patching"}
	rec, _ := a.call(t, http.MethodPost, "/v1/admin/maintenance-periods", student, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, out := a.call(t, http.MethodPost, "/v1/admin/maintenance-periods", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := uint64(out["id"].(float64))

	rec, out = a.call(t, http.MethodGet, "/v1/admin/maintenance-periods", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["maintenance_periods"], 1)

	rec, out = a.call(t, http.MethodGet, fmt.Sprintf("/v1/rooms/%d/slots?exam_id=%d&date=2024-03-14", a.room.ID, a.exam.ID), student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["slots"], 7)

	rec, _ = a.call(t, http.MethodDelete, fmt.Sprintf("/v1/admin/maintenance-periods/%d", id), admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = a.call(t, http.MethodDelete, fmt.Sprintf("/v1/admin/maintenance-periods/%d", id), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = a.call(t, http.MethodPut, "/v1/admin/reservations/999/machine", admin, map[string]any{"machine_id": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
