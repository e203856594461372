// Package mail delivers OTP mail. Brevo talks to the Brevo transactional API
// behind a circuit breaker, and LogMailer writes messages to a zap logger for
// local development.
package mail
