package bakeryauth

import "github.com/MrEthical07/bakeryauth/account"

// Domain types shared with stores and transport.
type (
	User       = account.User
	UserPatch  = account.UserPatch
	Role       = account.Role
	Status     = account.Status
	AuthMethod = account.AuthMethod
	OTPRecord  = account.OTPRecord
)

const (
	RoleBuyer  = account.RoleBuyer
	RoleSeller = account.RoleSeller
)

// RegisterRequest is the input of Engine.Register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// FederatedProfile is the identity an external provider asserted.
type FederatedProfile struct {
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// LoginResult is returned by CompleteLogin. User never carries the password
// hash or refresh tokens.
type LoginResult struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenPair is returned by Refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AccessClaims is the verified identity carried by an access token.
type AccessClaims struct {
	UserID string
	Role   Role
}
