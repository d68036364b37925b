package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserIDFunc extracts the authenticated user id from a request, or 0.
type UserIDFunc func(c *fiber.Ctx) int64

// StatusFunc maps a handler error to the status that will be written.
type StatusFunc func(err error) int

// RequestLogger logs one line per request and records request metrics.
// Routes are keyed by their registered pattern so ids do not explode the
// counter space.
func RequestLogger(logger *zap.Logger, metrics *Metrics, userID UserIDFunc, statusOf StatusFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil && statusOf != nil {
			status = statusOf(err)
		}
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		metrics.RecordRequest(route, c.Method(), status, duration)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()),
		}
		if userID != nil {
			if id := userID(c); id != 0 {
				fields = append(fields, zap.Int64("user_id", id))
			}
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return err
	}
}
