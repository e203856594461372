// Package bakeryauth is the authentication engine behind the bakery
// marketplace: local registration with emailed one-time codes, password
// login, federated sign-in and rotating refresh tokens stored per user.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// bakeryauth is the public surface. It exposes [Engine], [Builder], [Config],
// [Error] and the domain types re-exported from package account. Flow
// orchestration, rate limiting and audit dispatch live under internal/ and
// are never exported. Transport lives in httpapi and middleware; persistence
// lives in store/mongostore and store/memstore.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals or HTTP types in its public API.
//   - Set cookies or write responses. That belongs to httpapi.
//   - Import any sub-package that re-imports bakeryauth (no import cycles).
package bakeryauth
