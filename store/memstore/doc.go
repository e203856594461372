// Package memstore provides in-process implementations of the account store
// contracts for tests and local development. OTP records expire lazily
// against an injectable clock, matching the TTL the Mongo store enforces.
package memstore
