package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type LoggingMiddleware struct {
	logger *logrus.Logger
}

func NewLoggingMiddleware(logger *logrus.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// RequestLogging logs every request once it has been served. Server errors log at
// warn level, everything else at debug.
func (m *LoggingMiddleware) RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m.logger == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			entry := m.logger.WithFields(logrus.Fields{
				"method":     c.Request().Method,
				"path":       c.Path(),
				"uri":        c.Request().RequestURI,
				"status":     status,
				"latency":    time.Since(start),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			})
			if status >= 500 {
				entry.WithError(err).Warn("request failed")
			} else {
				entry.Debug("request served")
			}
			return nil
		}
	}
}
