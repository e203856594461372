// Package flows contains the orchestrators behind every Engine operation.
//
// Each Run function accepts a typed dependency struct and returns a result
// carrying a Failure kind. The Engine maps failure kinds to exported errors,
// metrics and audit events; flows never log, count or audit themselves.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import bakeryauth (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through the store, token and limiter
//     interfaces in the deps structs.
package flows
