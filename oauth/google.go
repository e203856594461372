package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const GoogleIssuer = "https://accounts.google.com"

var (
	ErrMissingCode     = errors.New("missing authorization code")
	ErrNoIDToken       = errors.New("no id_token in token response")
	ErrEmailMissing    = errors.New("provider did not return an email")
	ErrEmailUnverified = errors.New("provider email is not verified")
)

// GoogleConfig holds the web client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Issuer defaults to GoogleIssuer.
	Issuer string
}

// Profile is the identity asserted by a verified ID token.
type Profile struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// Google runs the authorization-code flow against Google.
type Google struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogle discovers the provider configuration. It performs a network call.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("google client id, secret and redirect url are required")
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = GoogleIssuer
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider google: %w", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	return newGoogle(oauthConfig, provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})), nil
}

func newGoogle(cfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *Google {
	return &Google{oauth: cfg, verifier: verifier}
}

// AuthCodeURL is where the browser is redirected to start sign-in.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

type idClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange trades the callback code for tokens and returns the verified
// profile. Accounts whose email Google has not verified are rejected.
func (g *Google) Exchange(ctx context.Context, code string) (Profile, error) {
	if code == "" {
		return Profile{}, ErrMissingCode
	}
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return Profile{}, ErrNoIDToken
	}
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to verify id token: %w", err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return Profile{}, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Email == "" {
		return Profile{}, ErrEmailMissing
	}
	if !claims.EmailVerified {
		return Profile{}, ErrEmailUnverified
	}

	return Profile{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}
