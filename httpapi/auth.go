package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/MrEthical07/bakeryauth"
	"github.com/MrEthical07/bakeryauth/middleware"
)

type registerBody struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Usertype bakeryauth.Role `json:"usertype"`
	Role     bakeryauth.Role `json:"role"`
}

type emailBody struct {
	Email string `json:"email"`
}

type otpBody struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return bakeryauth.ErrInvalidBody
	}
	return nil
}

func (s *Server) register(c *fiber.Ctx) error {
	var body registerBody
	if err := parse(c, &body); err != nil {
		return s.fail(c, err)
	}
	role := body.Usertype
	if role == "" {
		role = body.Role
	}
	user, err := s.engine.Register(c.UserContext(), bakeryauth.RegisterRequest{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		Role:     role,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return middleware.WriteData(c, fiber.StatusCreated, "User registered successfully", user)
}

func (s *Server) verifyOTP(c *fiber.Ctx) error {
	var body otpBody
	if err := parse(c, &body); err != nil {
		return s.fail(c, err)
	}
	user, err := s.engine.VerifyOTP(c.UserContext(), body.Email, body.OTP)
	if err != nil {
		return s.fail(c, err)
	}
	return middleware.WriteData(c, fiber.StatusOK, "OTP verified successfully", user)
}

func (s *Server) resendOTP(c *fiber.Ctx) error {
	var body emailBody
	if err := parse(c, &body); err != nil {
		return s.fail(c, err)
	}
	if err := s.engine.ResendOTP(c.UserContext(), body.Email); err != nil {
		return s.fail(c, err)
	}
	return middleware.WriteData(c, fiber.StatusOK, "OTP sent successfully", nil)
}

func (s *Server) forgotPassword(c *fiber.Ctx) error {
	var body emailBody
	if err := parse(c, &body); err != nil {
		return s.fail(c, err)
	}
	if err := s.engine.ForgotPassword(c.UserContext(), body.Email); err != nil {
		return s.fail(c, err)
	}
	return middleware.WriteData(c, fiber.StatusOK, "OTP sent successfully", nil)
}

func (s *Server) resetPassword(c *fiber.Ctx) error {
	var body otpBody
	if err := parse(c, &body); err != nil {
		return s.fail(c, err)
	}
	if err := s.engine.ResetPassword(c.UserContext(), body.Email, body.OTP, body.Password); err != nil {
		return s.fail(c, err)
	}
	return middleware.WriteData(c, fiber.StatusOK, "Password reset successfully", nil)
}

func (s *Server) login(c *fiber.Ctx) error {
	var body loginBody
	if err := parse(c, &body); err != nil {
		return s.fail(c, err)
	}
	res, err := s.engine.Login(c.UserContext(), body.Email, body.Password)
	if err != nil {
		return s.fail(c, err)
	}
	s.setRefreshCookie(c, res.RefreshToken)
	return middleware.WriteData(c, fiber.StatusOK, "User logged in successfully", res)
}

// refresh clears the cookie before anything is checked, so any failure
// forces the client back to login.
func (s *Server) refresh(c *fiber.Ctx) error {
	refreshToken := refreshTokenFrom(c)
	accessToken, _ := middleware.BearerToken(c.Get(fiber.HeaderAuthorization))
	s.clearRefreshCookie(c)

	pair, err := s.engine.Refresh(c.UserContext(), refreshToken, accessToken)
	if err != nil {
		return s.fail(c, err)
	}
	s.setRefreshCookie(c, pair.RefreshToken)
	return middleware.WriteData(c, fiber.StatusOK, "Tokens refreshed", pair)
}

func (s *Server) logout(c *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return s.fail(c, bakeryauth.ErrUnauthorized)
	}
	if err := s.engine.Logout(c.UserContext(), claims.UserID, refreshTokenFrom(c)); err != nil {
		return s.fail(c, err)
	}
	s.clearRefreshCookie(c)
	return middleware.WriteData(c, fiber.StatusOK, "Logged out successfully", nil)
}

func (s *Server) me(c *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return s.fail(c, bakeryauth.ErrUnauthorized)
	}
	user, err := s.engine.Me(c.UserContext(), claims.UserID)
	if err != nil {
		return s.fail(c, err)
	}
	return middleware.WriteData(c, fiber.StatusOK, "User found", user)
}
