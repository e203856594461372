package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/bakeryauth/account"
)

// FederatedFailureKind classifies federated provisioning failures.
type FederatedFailureKind int

const (
	FederatedFailureNone FederatedFailureKind = iota
	FederatedFailureValidation
	FederatedFailureStore
)

// FederatedProfile is the identity asserted by an external provider.
type FederatedProfile struct {
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// FederatedResult carries the provisioned user.
type FederatedResult struct {
	Failure FederatedFailureKind
	Err     error
	User    *account.User
	Created bool
}

// FederatedDeps captures provisioning dependencies.
type FederatedDeps struct {
	Users account.CredentialStore
}

// RunProvisionFederated finds the user by email or creates a verified
// federated buyer without a password. Existing accounts, local or not, are
// returned unchanged.
func RunProvisionFederated(ctx context.Context, profile FederatedProfile, deps FederatedDeps) FederatedResult {
	email := account.NormalizeEmail(profile.Email)
	if email == "" || !strings.Contains(email, "@") {
		return FederatedResult{Failure: FederatedFailureValidation}
	}

	existing, err := deps.Users.FindByEmail(ctx, email, false)
	if err == nil {
		return FederatedResult{User: existing}
	}
	if !errors.Is(err, account.ErrNotFound) {
		return FederatedResult{Failure: FederatedFailureStore, Err: err}
	}

	user := &account.User{
		Username:       federatedUsername(profile.Name, email),
		Email:          email,
		AuthMethod:     account.AuthGoogle,
		Role:           account.RoleBuyer,
		Status:         account.StatusVerified,
		EmailVerified:  true,
		ProfilePicture: profile.Picture,
	}
	if err := deps.Users.Create(ctx, user); err != nil {
		if errors.Is(err, account.ErrDuplicate) {
			// Lost a race with a concurrent provision.
			if existing, ferr := deps.Users.FindByEmail(ctx, email, false); ferr == nil {
				return FederatedResult{User: existing}
			}
		}
		return FederatedResult{Failure: FederatedFailureStore, Err: err}
	}
	return FederatedResult{User: user.Sanitized(), Created: true}
}

func federatedUsername(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
