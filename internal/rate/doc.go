// Package rate implements Redis fixed-window counters for authentication flows.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit. Key prefixes:
//   - bk:rl:login:   failed logins per email
//   - bk:rl:loginip: failed logins per client IP
//   - bk:rl:refresh: refresh calls per user
//   - bk:rl:otp:     OTP mail requests per email
package rate
