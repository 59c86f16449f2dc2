package middleware

import (
	"strconv"
	"time"

	"go-kpi/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger records every request in Prometheus and logs failures
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		metrics.ObserveHTTPRequest(c.Method(), route, strconv.Itoa(status), time.Since(start))

		if status >= fiber.StatusInternalServerError {
			fields := []zap.Field{
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
				zap.Int("status", status),
			}
			if claims := Claims(c); claims != nil {
				fields = append(fields, zap.String("user_id", claims.UserID))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			log.Error("request failed", fields...)
		}
		return err
	}
}
