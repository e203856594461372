// Package httpapi serves the auth routes over fiber.
//
// Every response uses the middleware.Envelope shape. The refresh token
// travels in the refreshToken cookie (HttpOnly, Secure, SameSite=None) and
// is also echoed in response bodies. Google sign-in, avatar uploads and the
// metrics endpoint are optional collaborators; routes for missing ones
// answer 404.
package httpapi
