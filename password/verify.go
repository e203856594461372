package password

// VerifyPassword reports whether candidate matches hash. Malformed or empty
// hashes never match. It accepts any hash format Argon2.Verify accepts and
// does not depend on configured cost parameters.
func VerifyPassword(hash, candidate string) bool {
	if hash == "" {
		return false
	}
	if isBcrypt(hash) {
		ok, err := verifyBcrypt(candidate, hash)
		return err == nil && ok
	}
	var a Argon2
	ok, err := a.Verify(candidate, hash)
	return err == nil && ok
}
