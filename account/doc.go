// Package account holds the marketplace identity model, the persistence
// contracts the auth engine depends on, and the write pipeline every store
// runs before persisting.
//
// # Write pipeline
//
// Stores call [PreparePassword] whenever a user is created or saved, and
// [DispatchOTP] whenever an OTP record is created or overwritten. Both are
// ordinary functions with injectable collaborators; a failure in either
// aborts the write.
package account
