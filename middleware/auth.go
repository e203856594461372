package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/MrEthical07/bakeryauth"
)

const claimsLocal = "bakeryauth.claims"

// AccessValidator verifies access tokens. *bakeryauth.Engine implements it.
type AccessValidator interface {
	ValidateAccess(token string) (bakeryauth.AccessClaims, error)
}

// ClaimsFrom returns the identity stored by RequireAuth.
func ClaimsFrom(c *fiber.Ctx) (bakeryauth.AccessClaims, bool) {
	claims, ok := c.Locals(claimsLocal).(bakeryauth.AccessClaims)
	return claims, ok
}

// RequireAuth rejects requests without a valid bearer access token.
func RequireAuth(v AccessValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if v == nil {
			return WriteError(c, bakeryauth.ErrUnauthorized)
		}
		token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return WriteError(c, bakeryauth.ErrUnauthorized)
		}
		claims, err := v.ValidateAccess(token)
		if err != nil {
			return WriteError(c, bakeryauth.ErrUnauthorized)
		}
		c.Locals(claimsLocal, claims)
		return c.Next()
	}
}

// RequireRoles must run after RequireAuth.
func RequireRoles(roles ...bakeryauth.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return WriteError(c, bakeryauth.ErrUnauthorized)
		}
		for _, r := range roles {
			if claims.Role == r {
				return c.Next()
			}
		}
		return WriteError(c, bakeryauth.ErrAccessDenied)
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
