// Package internal contains helpers private to bakeryauth: random OTP codes
// and OAuth state values.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: orchestrators for every Engine operation
//   - rate: Redis-backed fixed-window limiters
//   - stores: Redis-backed OAuth state storage
package internal
