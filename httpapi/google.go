package httpapi

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MrEthical07/bakeryauth"
	"github.com/MrEthical07/bakeryauth/internal"
	"github.com/MrEthical07/bakeryauth/middleware"
)

func (s *Server) googleRedirect(c *fiber.Ctx) error {
	if s.google == nil {
		return fiber.ErrNotFound
	}
	state, err := internal.NewStateToken()
	if err != nil {
		return s.fail(c, err)
	}
	if err := s.states.Save(c.UserContext(), state); err != nil {
		return s.fail(c, err)
	}
	return c.Redirect(s.google.AuthCodeURL(state), fiber.StatusFound)
}

func (s *Server) googleCallback(c *fiber.Ctx) error {
	if s.google == nil {
		return fiber.ErrNotFound
	}
	ctx := c.UserContext()

	if err := s.states.Consume(ctx, c.Query("state")); err != nil {
		s.log.Warn("oauth state rejected", zap.Error(err))
		return s.fail(c, bakeryauth.ErrInvalidOAuthState)
	}
	if reason := c.Query("error"); reason != "" {
		s.log.Info("google sign-in declined", zap.String("reason", reason))
		return s.fail(c, bakeryauth.ErrInvalidCredentials)
	}

	profile, err := s.google.Exchange(ctx, c.Query("code"))
	if err != nil {
		s.log.Warn("google exchange failed", zap.Error(err))
		return s.fail(c, bakeryauth.ErrInvalidCredentials)
	}

	user, err := s.engine.ProvisionFederated(ctx, bakeryauth.FederatedProfile{
		Email:         profile.Email,
		Name:          profile.Name,
		Picture:       profile.Picture,
		EmailVerified: profile.EmailVerified,
	})
	if err != nil {
		return s.fail(c, err)
	}
	res, err := s.engine.CompleteLogin(ctx, user)
	if err != nil {
		return s.fail(c, err)
	}

	s.setRefreshCookie(c, res.RefreshToken)
	if s.successRedirect == "" {
		return middleware.WriteData(c, fiber.StatusOK, "User logged in successfully", res)
	}
	return c.Redirect(s.successRedirect+"#"+url.Values{"accessToken": {res.AccessToken}}.Encode(), fiber.StatusFound)
}
