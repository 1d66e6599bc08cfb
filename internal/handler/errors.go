package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/middleware"
	"github.com/cscfi/exam-reservation/internal/service"
)

// statusByCode maps the stable service error codes to HTTP statuses.
var statusByCode = map[string]int{
	service.CodeNotFound:           http.StatusNotFound,
	service.CodeConflict:           http.StatusConflict,
	service.CodeForbidden:          http.StatusForbidden,
	service.CodeRemoteFailure:      http.StatusBadGateway,
	service.CodeInvariantViolation: http.StatusInternalServerError,
	service.CodeInvalidInput:       http.StatusBadRequest,
	service.CodeInternal:           http.StatusInternalServerError,
}

// writeError renders a service error as {"error": code, "message": text}.
// Internal errors do not leak their message.
func writeError(c echo.Context, err error) error {
	code := service.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError && code != service.CodeRemoteFailure {
		middleware.Logger(c).Error("request failed", zap.String("error_kind", code), zap.Error(err))
	}
	if code == service.CodeInternal {
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": service.CodeInvalidInput, "message": msg})
}

var errUnauthenticated = errors.New("unauthenticated")

// callerID returns the authenticated user's ID.
func callerID(c echo.Context) (uint64, error) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		return 0, errUnauthenticated
	}
	return id, nil
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "authentication required"})
}

// idParam parses a positive numeric path parameter.
func idParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// uintQuery parses a positive numeric query parameter.
func uintQuery(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.QueryParam(name)), 10, 64)
	return id, err == nil && id > 0
}

// dateQuery parses a YYYY-MM-DD query parameter.
func dateQuery(c echo.Context, name string) (time.Time, bool) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(c.QueryParam(name)))
	return d, err == nil
}
