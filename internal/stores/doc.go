// Package stores provides Redis-backed, short-lived records used by the
// transport layer. Today that is the OAuth state issued before a provider
// redirect and consumed on callback.
//
// Records are single-use and expire by Redis TTL. Only hashes of secret
// values are stored.
//
// # What this package must NOT do
//
//   - Import bakeryauth or any sibling internal package.
//   - Log or expose plaintext secrets.
package stores
