package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "FlashScan/pkg/logger"
)

// RequestLogging logs every request at debug level and 4xx/5xx responses at warn/error.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	if l == nil {
		l = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", res.Status),
				applogger.Duration("latency", time.Since(start)),
			}
			if id := res.Header().Get(echo.HeaderXRequestID); id != "" {
				fields = append(fields, applogger.String("request_id", id))
			}
			switch {
			case res.Status >= 500:
				l.Error("http request", fields...)
			case res.Status >= 400:
				l.Warn("http request", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
