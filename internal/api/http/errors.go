package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/weather-diary/internal/diary"
	"github.com/i474232898/weather-diary/internal/weather"
)

// ErrorHandler renders every error as {"error":true,"message":...,"requestId":...}.
// Malformed input and domain failures map to 400, everything else to 500.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, msg := classify(err)
		fields := []zap.Field{
			zap.String("request_id", requestID(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		}
		switch {
		case code >= fiber.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case isWeatherError(err):
			logger.Warn("weather lookup failed", fields...)
		}
		return c.Status(code).JSON(fiber.Map{
			"error":     true,
			"message":   msg,
			"requestId": requestID(c),
		})
	}
}

func isWeatherError(err error) bool {
	return errors.Is(err, weather.ErrTransport) || errors.Is(err, weather.ErrParse)
}

func classify(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	if verrs, ok := isValidationError(err); ok {
		return fiber.StatusBadRequest, validationMessage(verrs)
	}

	// Provider errors are not echoed; their causes can carry upstream detail.
	switch {
	case errors.Is(err, weather.ErrTransport):
		return fiber.StatusBadRequest, "failed to get weather"
	case errors.Is(err, weather.ErrParse):
		return fiber.StatusBadRequest, "failed to parse weather"
	case errors.Is(err, diary.ErrNotFound):
		return fiber.StatusBadRequest, diary.ErrNotFound.Error()
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}
