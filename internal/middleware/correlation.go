package middleware

import (
	"context"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educlass-api/internal/utils"
)

type correlationIDKey struct{}

var correlationKey = correlationIDKey{}

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// CorrelationID ensures every request carries a correlation identifier.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := strings.TrimSpace(c.Get("X-Correlation-ID"))
		if incoming == "" {
			incoming = strings.TrimSpace(c.Get("X-Request-ID"))
		}
		if incoming == "" {
			incoming = uuid.NewString()
		}

		c.Locals("correlation_id", incoming)
		c.Set("X-Correlation-ID", incoming)
		c.SetUserContext(ContextWithCorrelation(c.UserContext(), incoming))

		return c.Next()
	}
}

// DeviceScope validates the :device route parameter and binds it to the request.
func DeviceScope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		deviceID := c.Params("device")
		if !deviceIDPattern.MatchString(deviceID) {
			return utils.Fail(c, fiber.StatusBadRequest, "invalid device id", nil)
		}
		c.Locals("device_id", deviceID)
		return c.Next()
	}
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals("correlation_id").(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// GetDeviceID returns the device bound by DeviceScope.
func GetDeviceID(c *fiber.Ctx) string {
	if id, ok := c.Locals("device_id").(string); ok {
		return id
	}
	return ""
}

// ContextWithCorrelation attaches the correlation identifier to the provided context.
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(correlationID) == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey, strings.TrimSpace(correlationID))
}

// RequestLogger scopes base with the request's correlation and device ids.
func RequestLogger(c *fiber.Ctx, base zerolog.Logger) zerolog.Logger {
	builder := base.With().Str("correlation_id", GetCorrelationID(c))
	if deviceID := GetDeviceID(c); deviceID != "" {
		builder = builder.Str("device_id", deviceID)
	}
	return builder.Logger()
}
