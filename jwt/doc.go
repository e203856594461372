// Package jwt issues and verifies the access/refresh token pair. The two kinds
// are signed with independent secrets and carry the same {_id, role} payload.
package jwt
