package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mindhaven/mindhaven/internal/auth"
	"github.com/mindhaven/mindhaven/internal/config"
)

// JWTAuth validates bearer tokens issued by the identity provider and installs
// the authenticated account id and role into the request locals. The engine
// trusts these claims without re-verifying the identity.
func JWTAuth(cfg config.Config) fiber.Handler {
	secret := []byte(cfg.JWTSecret)
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := auth.Verify(tokenStr, secret)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals("account_id", claims.Subject)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}

// AdminOnly rejects requests whose token does not carry the admin role.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		if role != auth.RoleAdmin {
			return fiber.NewError(http.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}
