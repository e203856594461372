package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/bakeryauth/account"
)

// RegisterFailureKind classifies registration failures.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureValidation
	RegisterFailureDuplicate
	RegisterFailureStore
	RegisterFailureOTP
)

// RegisterRequest is the input of RunRegister.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Role     account.Role
}

// RegisterResult carries the created user or failure metadata. When Failure
// is RegisterFailureOTP the user has already been persisted.
type RegisterResult struct {
	Failure    RegisterFailureKind
	Err        error
	Reason     string
	User       *account.User
	OTPFailure OTPFailureKind
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Users account.CredentialStore
	OTP   OTPDeps
}

// RunRegister validates input, creates a pending local user and issues a
// 4-digit OTP. No session is created.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) RegisterResult {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = account.NormalizeEmail(req.Email)

	if reason := validateRegister(req); reason != "" {
		return RegisterResult{Failure: RegisterFailureValidation, Reason: reason}
	}

	_, err := deps.Users.FindByEmail(ctx, req.Email, false)
	switch {
	case err == nil:
		return RegisterResult{Failure: RegisterFailureDuplicate}
	case !errors.Is(err, account.ErrNotFound):
		return RegisterResult{Failure: RegisterFailureStore, Err: err}
	}

	user := &account.User{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		AuthMethod: account.AuthLocal,
		Role:       req.Role,
		Status:     account.StatusPending,
	}
	if err := deps.Users.Create(ctx, user); err != nil {
		if errors.Is(err, account.ErrDuplicate) {
			return RegisterResult{Failure: RegisterFailureDuplicate}
		}
		return RegisterResult{Failure: RegisterFailureStore, Err: err}
	}

	otp := IssueOTP(ctx, req.Email, RegistrationDigits, deps.OTP)
	if otp.Failure != OTPFailureNone {
		return RegisterResult{
			Failure:    RegisterFailureOTP,
			Err:        otp.Err,
			User:       user.Sanitized(),
			OTPFailure: otp.Failure,
		}
	}

	return RegisterResult{User: user.Sanitized()}
}

func validateRegister(req RegisterRequest) string {
	if req.Username == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		return "All fields are required"
	}
	if !strings.Contains(req.Email, "@") {
		return "Invalid email"
	}
	if !req.Role.Valid() {
		return "Invalid role"
	}
	return ""
}
