package middleware

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const ctxLogger = "logger"

// ContextLogger stores a request-scoped zap logger carrying the method
// and route, for handlers to report failures with.
func ContextLogger(logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ctxLogger, logger.With(
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
			))
			return next(c)
		}
	}
}

// Logger returns the request logger set by ContextLogger, or a no-op
// logger when none is set.
func Logger(c echo.Context) *zap.Logger {
	if l, ok := c.Get(ctxLogger).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
