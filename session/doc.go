// Package session maintains a user's bounded collection of live refresh tokens.
//
// The collection helpers are pure: they return a new slice and never mutate
// their input, so callers can compare before/after state. The collection keeps
// insertion order and evicts from the front once [MaxTokens] is exceeded.
//
// [Locker] provides an optional Redis mutex used to serialize refresh rotation
// per user. Without it, two concurrent refreshes presenting the same token may
// both succeed.
package session
