package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/utils"
)

// IdentityResolver returns the identity currently held by a device.
type IdentityResolver interface {
	Identity(deviceID string) (models.Identity, error)
}

// DeviceIdentity binds a bearer token to the device it was issued on. The
// token subject must be the identity the device navigator holds right now, so
// a token stops working once the device is reset. Run after JWTProtected and
// DeviceScope.
func DeviceIdentity(resolver IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject, _ := c.Locals("user_id").(string)
		if subject == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		identity, err := resolver.Identity(GetDeviceID(c))
		if err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "device is not authenticated", nil)
		}
		if identity.ID != subject {
			return utils.Fail(c, fiber.StatusForbidden, "token does not belong to this device", nil)
		}

		c.Locals("identity", identity)
		return c.Next()
	}
}

// CurrentIdentity returns the identity bound by DeviceIdentity.
func CurrentIdentity(c *fiber.Ctx) (models.Identity, bool) {
	identity, ok := c.Locals("identity").(models.Identity)
	return identity, ok
}
