// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Accounts migrated from the previous backend carry bcrypt hashes. They verify
// normally and [Argon2.NeedsUpgrade] reports true for them, so the engine
// re-hashes on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. It never stores passwords
// and never logs plaintext or hash parameters.
package password
