package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MrEthical07/bakeryauth"
)

// RequestContext copies the client ip and user agent into the user context.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := bakeryauth.WithClientIP(c.UserContext(), clientIP(c))
		ctx = bakeryauth.WithUserAgent(ctx, c.Get(fiber.HeaderUserAgent))
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// RequestLogger logs method, path, status, latency and ip for each request.
func RequestLogger(log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", clientIP(c)),
		}
		switch {
		case status >= 500:
			log.Error("request", append(fields, zap.Error(err))...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
		return err
	}
}
