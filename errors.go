package bakeryauth

import (
	"errors"
	"net/http"
)

// Kind classifies an [Error] for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindInvalidOTP
	KindLimitExceeded
	KindUnauthorized
	KindForbidden
	KindRateLimited
)

var kindNames = [...]string{
	KindInternal:      "internal",
	KindValidation:    "validation",
	KindConflict:      "conflict",
	KindNotFound:      "not_found",
	KindInvalidOTP:    "invalid_otp",
	KindLimitExceeded: "limit_exceeded",
	KindUnauthorized:  "unauthorized",
	KindForbidden:     "forbidden",
	KindRateLimited:   "rate_limited",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// HTTPStatus returns the response status for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindConflict, KindInvalidOTP, KindLimitExceeded:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by every Engine operation. Message is safe to show to
// clients; Err carries the cause and is never rendered for KindInternal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels of the same kind and message, so errors.Is(err,
// ErrInvalidOTP) holds for any wrapped instance.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf reports the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrAllFieldsRequired = &Error{Kind: KindValidation, Message: "All fields are required"}
	ErrInvalidEmail      = &Error{Kind: KindValidation, Message: "Invalid email"}
	ErrInvalidRole       = &Error{Kind: KindValidation, Message: "Invalid role"}
	ErrEmailRequired     = &Error{Kind: KindValidation, Message: "Email is required"}
	ErrInvalidBody       = &Error{Kind: KindValidation, Message: "Invalid request body"}
	ErrImageRequired     = &Error{Kind: KindValidation, Message: "Image is required"}
	ErrUnsupportedImage  = &Error{Kind: KindValidation, Message: "Only jpeg, jpg and png images are allowed"}
	ErrImageTooLarge     = &Error{Kind: KindValidation, Message: "Image must be at most 3MB"}
	ErrNotLocalAccount   = &Error{Kind: KindValidation, Message: "Password reset is not available for Google accounts"}

	ErrUserExists = &Error{Kind: KindConflict, Message: "User already exists"}

	ErrUserNotFound = &Error{Kind: KindNotFound, Message: "User not found"}

	ErrInvalidOTP       = &Error{Kind: KindInvalidOTP, Message: "Invalid OTP"}
	ErrOTPLimitExceeded = &Error{Kind: KindLimitExceeded, Message: "OTP verification limit exceeded try again in 10 minutes"}

	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Message: "Invalid credentials"}
	ErrBothTokensRequired = &Error{Kind: KindUnauthorized, Message: "Both tokens required"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "Unauthorized"}
	ErrInvalidOAuthState  = &Error{Kind: KindUnauthorized, Message: "Invalid OAuth state"}

	ErrInvalidRefreshToken = &Error{Kind: KindForbidden, Message: "Invalid refresh token"}
	ErrTokenMismatch       = &Error{Kind: KindForbidden, Message: "Token mismatch"}
	ErrInvalidToken        = &Error{Kind: KindForbidden, Message: "Invalid token"}
	ErrAccessDenied        = &Error{Kind: KindForbidden, Message: "Access denied"}

	ErrLoginRateLimited   = &Error{Kind: KindRateLimited, Message: "Too many login attempts"}
	ErrRefreshRateLimited = &Error{Kind: KindRateLimited, Message: "Too many refresh attempts"}
	ErrOTPRateLimited     = &Error{Kind: KindRateLimited, Message: "Too many OTP requests"}
	ErrRefreshBusy        = &Error{Kind: KindRateLimited, Message: "Refresh already in progress"}
	ErrTooManyRequests    = &Error{Kind: KindRateLimited, Message: "Too many requests, please try again later"}

	ErrInternal    = &Error{Kind: KindInternal, Message: "Internal server error"}
	ErrMailFailed  = &Error{Kind: KindInternal, Message: "Failed to send OTP"}
	ErrUnavailable = &Error{Kind: KindInternal, Message: "Backend unavailable"}
)

// wrap returns a copy of sentinel carrying cause.
func wrap(sentinel *Error, cause error) *Error {
	return newError(sentinel.Kind, sentinel.Message, cause)
}
