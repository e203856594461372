package account

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("duplicate record")
	// ErrCountExceeded is returned when saving an OTP record above MaxOTPCount.
	ErrCountExceeded = errors.New("otp count above maximum")
)

// CredentialStore persists users.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string, withHidden bool) (*User, error)
	FindByID(ctx context.Context, id string, withHidden bool) (*User, error)
	// Create assigns ID and timestamps, runs PreparePassword and inserts.
	Create(ctx context.Context, u *User) error
	// Save upserts the loaded object, running PreparePassword first.
	Save(ctx context.Context, u *User) error
	UpdateByID(ctx context.Context, id string, patch UserPatch) (*User, error)
}

// OTPStore persists one OTP record per email with a store-enforced TTL.
type OTPStore interface {
	// FindOne matches by email, and by code too when code is non-empty.
	FindOne(ctx context.Context, email, code string) (*OTPRecord, error)
	// Create runs DispatchOTP then inserts a fresh record.
	Create(ctx context.Context, rec *OTPRecord) error
	// Save runs DispatchOTP then overwrites the existing record.
	Save(ctx context.Context, rec *OTPRecord) error
	// DeleteOne removes by email, and by code too when code is non-empty.
	// Deleting an absent record is not an error.
	DeleteOne(ctx context.Context, email, code string) error
}
