package httpapi

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/MrEthical07/bakeryauth"
	"github.com/MrEthical07/bakeryauth/middleware"
	"github.com/MrEthical07/bakeryauth/upload"
)

func (s *Server) updateAvatar(c *fiber.Ctx) error {
	if s.avatars == nil {
		return fiber.ErrNotFound
	}
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return s.fail(c, bakeryauth.ErrUnauthorized)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return s.fail(c, bakeryauth.ErrImageRequired)
	}
	if fh.Size > upload.MaxAvatarBytes {
		return s.fail(c, bakeryauth.ErrImageTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return s.fail(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, upload.MaxAvatarBytes+1))
	if err != nil {
		return s.fail(c, err)
	}

	url, err := s.avatars.Process(c.UserContext(), fh.Header.Get(fiber.HeaderContentType), data)
	switch {
	case errors.Is(err, upload.ErrUnsupportedImage), errors.Is(err, upload.ErrCorruptImage):
		return s.fail(c, bakeryauth.ErrUnsupportedImage)
	case errors.Is(err, upload.ErrImageTooLarge):
		return s.fail(c, bakeryauth.ErrImageTooLarge)
	case err != nil:
		return s.fail(c, err)
	}

	user, err := s.engine.SetProfilePicture(c.UserContext(), claims.UserID, url)
	if err != nil {
		return s.fail(c, err)
	}
	return middleware.WriteData(c, fiber.StatusOK, "Profile picture updated", user)
}
