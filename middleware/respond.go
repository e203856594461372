package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/MrEthical07/bakeryauth"
)

// Envelope is the body of every response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteError renders err as a failed envelope. Internal causes are never
// exposed.
func WriteError(c *fiber.Ctx, err error) error {
	var e *bakeryauth.Error
	if !errors.As(err, &e) {
		e = bakeryauth.ErrInternal
	}
	return c.Status(e.Kind.HTTPStatus()).JSON(Envelope{Success: false, Error: e.Message})
}

// WriteData renders a successful envelope.
func WriteData(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Message: message, Data: data})
}
