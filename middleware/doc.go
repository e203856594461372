// Package middleware holds the fiber middleware in front of the auth routes.
//
// # Handlers
//
//   - [RequireAuth] verifies the bearer access token through a
//     [AccessValidator] and stores the claims in the request locals.
//   - [RequireRoles] rejects identities whose role is not listed.
//   - [IPRateLimiter] throttles each client IP with a token bucket.
//   - [RequestContext] copies client ip and user agent into the user context
//     so audit events carry them.
//   - [RequestLogger] logs one zap line per request.
//
// Failures are written with [WriteError] using the JSON envelope shared by
// every route.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the validator).
//   - Access stores.
package middleware
