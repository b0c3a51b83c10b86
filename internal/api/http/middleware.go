package httpapi

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/weather-diary/internal/observability"
)

const requestIDKey = "requestid"

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// accessLog logs one line per request and records the HTTP metrics. Errors
// from the chain are rendered here so the logged status is the final one.
func accessLog(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path

		observability.HTTPRequestsTotal.WithLabelValues(c.Method(), route, statusClass(status)).Inc()
		observability.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(elapsed.Seconds())

		logger.Info("request",
			zap.String("request_id", requestID(c)),
			zap.String("method", c.Method()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", elapsed))
		return nil
	}
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
