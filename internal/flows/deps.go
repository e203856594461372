package flows

import (
	"context"

	"github.com/MrEthical07/bakeryauth/jwt"
)

// Deps groups flow dependency sets. The Engine builds this once and delegates
// request methods to the matching flow.
type Deps struct {
	Register  RegisterDeps
	Verify    VerifyEmailDeps
	Request   RequestOTPDeps
	Forgot    RequestOTPDeps
	Reset     PasswordResetDeps
	Login     LoginDeps
	Complete  CompleteLoginDeps
	Refresh   RefreshDeps
	Logout    LogoutDeps
	Federated FederatedDeps
}

// TokenCodec is the token surface flows need. *jwt.Manager implements it.
type TokenCodec interface {
	IssueAccess(jwt.Subject) (string, error)
	IssueRefresh(jwt.Subject) (string, error)
	VerifyRefresh(string) (*jwt.Claims, bool)
	DecodeAccess(string) (*jwt.Claims, bool)
}

// OTPRequestLimiter throttles mail-sending requests per email.
type OTPRequestLimiter interface {
	CheckOTPRequest(ctx context.Context, email string) error
}
