package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

const refreshCookie = "refreshToken"

func (s *Server) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.engine.RefreshTTL() / time.Second),
		Secure:   true,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

// clearRefreshCookie expires the cookie with the attributes it was set with.
func (s *Server) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(1, 0),
		Secure:   true,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

// refreshTokenFrom prefers the cookie and falls back to the JSON body.
func refreshTokenFrom(c *fiber.Ctx) string {
	if token := c.Cookies(refreshCookie); token != "" {
		return token
	}
	if len(c.Body()) == 0 {
		return ""
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.BodyParser(&body); err != nil {
		return ""
	}
	return body.RefreshToken
}
