// Package oauth implements the Google sign-in redirect and callback exchange.
// ID tokens are verified with go-oidc against Google's published keys.
package oauth
