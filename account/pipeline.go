package account

import (
	"context"
	"errors"
	"fmt"
	"html"
)

// PasswordHasher is the subset of password.Argon2 the write path needs.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Mailer delivers HTML mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

var (
	// ErrPasswordRequired is returned for local accounts without a password.
	ErrPasswordRequired = errors.New("local account requires a password")
	// ErrPasswordNotAllowed is returned for federated accounts carrying a password.
	ErrPasswordNotAllowed = errors.New("federated account must not carry a password")
	// ErrDispatch wraps mail failures raised while persisting an OTP record.
	ErrDispatch = errors.New("otp dispatch failed")
)

// PreparePassword hashes a pending plaintext password into PasswordHash and
// enforces that a hash is present iff the account is local.
func PreparePassword(h PasswordHasher, u *User) error {
	if u.Password != "" {
		if u.AuthMethod != AuthLocal {
			return ErrPasswordNotAllowed
		}
		hash, err := h.Hash(u.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
		u.Password = ""
	}

	switch {
	case u.AuthMethod == AuthLocal && u.PasswordHash == "":
		return ErrPasswordRequired
	case u.AuthMethod != AuthLocal && u.PasswordHash != "":
		return ErrPasswordNotAllowed
	}
	return nil
}

// OTPMailSubject is the subject line of every OTP mail.
const OTPMailSubject = "Email Verification"

// OTPMailBody renders the OTP mail HTML.
func OTPMailBody(code string) string {
	return "<h3>Your OTP is : " + html.EscapeString(code) + "</h3>"
}

// DispatchOTP mails the record's code. Stores call it before persisting so a
// failed send leaves nothing written.
func DispatchOTP(ctx context.Context, m Mailer, rec *OTPRecord) error {
	if m == nil {
		return fmt.Errorf("%w: no mailer configured", ErrDispatch)
	}
	if err := m.Send(ctx, rec.Email, OTPMailSubject, OTPMailBody(rec.Code)); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	return nil
}
