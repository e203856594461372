package internaldefs

import (
	bakeryauth "github.com/MrEthical07/bakeryauth"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   bakeryauth.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   bakeryauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: bakeryauth.MetricRegisterSuccess, Name: "bakeryauth_register_success_total", Help: "Successful registrations."},
	{ID: bakeryauth.MetricRegisterDuplicate, Name: "bakeryauth_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: bakeryauth.MetricRegisterFailure, Name: "bakeryauth_register_failure_total", Help: "Registrations failed for other reasons."},
	{ID: bakeryauth.MetricOTPIssued, Name: "bakeryauth_otp_issued_total", Help: "OTP codes mailed."},
	{ID: bakeryauth.MetricOTPDispatchFailure, Name: "bakeryauth_otp_dispatch_failure_total", Help: "OTP mails that failed to send."},
	{ID: bakeryauth.MetricOTPLimitExceeded, Name: "bakeryauth_otp_limit_exceeded_total", Help: "OTP requests rejected at the attempt cap."},
	{ID: bakeryauth.MetricEmailVerifySuccess, Name: "bakeryauth_email_verification_success_total", Help: "Successful email verifications."},
	{ID: bakeryauth.MetricEmailVerifyFailure, Name: "bakeryauth_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: bakeryauth.MetricPasswordResetRequest, Name: "bakeryauth_password_reset_request_total", Help: "Password reset codes mailed."},
	{ID: bakeryauth.MetricPasswordResetSuccess, Name: "bakeryauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: bakeryauth.MetricPasswordResetFailure, Name: "bakeryauth_password_reset_failure_total", Help: "Failed password resets."},
	{ID: bakeryauth.MetricLoginSuccess, Name: "bakeryauth_login_success_total", Help: "Successful logins."},
	{ID: bakeryauth.MetricLoginFailure, Name: "bakeryauth_login_failure_total", Help: "Failed logins."},
	{ID: bakeryauth.MetricLoginRateLimited, Name: "bakeryauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: bakeryauth.MetricPasswordUpgraded, Name: "bakeryauth_password_upgraded_total", Help: "Password hashes rewritten on login."},
	{ID: bakeryauth.MetricFederatedProvisioned, Name: "bakeryauth_federated_provisioned_total", Help: "Accounts created from federated sign-in."},
	{ID: bakeryauth.MetricSessionCreated, Name: "bakeryauth_session_created_total", Help: "Refresh tokens issued at login."},
	{ID: bakeryauth.MetricRefreshSuccess, Name: "bakeryauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: bakeryauth.MetricRefreshFailure, Name: "bakeryauth_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: bakeryauth.MetricRefreshReuseDetected, Name: "bakeryauth_refresh_reuse_detected_total", Help: "Verified refresh tokens presented after leaving the collection."},
	{ID: bakeryauth.MetricRefreshRevokedAll, Name: "bakeryauth_refresh_revoked_all_total", Help: "Collections cleared after reuse detection."},
	{ID: bakeryauth.MetricRefreshRateLimited, Name: "bakeryauth_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: bakeryauth.MetricRateLimitHit, Name: "bakeryauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: bakeryauth.MetricLogout, Name: "bakeryauth_logout_total", Help: "Logout operations."},
	{ID: bakeryauth.MetricAvatarUpdated, Name: "bakeryauth_avatar_updated_total", Help: "Profile picture updates."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: bakeryauth.MetricLoginLatency, Name: "bakeryauth_login_latency_seconds", Help: "Password check latency."},
	{ID: bakeryauth.MetricRefreshLatency, Name: "bakeryauth_refresh_latency_seconds", Help: "Refresh rotation latency."},
}

// HistogramBounds are the upper bounds of the engine's eight buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket in instrument identifiers.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
