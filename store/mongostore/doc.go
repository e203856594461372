// Package mongostore implements the account store contracts on MongoDB.
//
// Users live in the "users" collection with a unique index on email. OTP
// records live in "otps" with a unique index on email and a TTL index on
// createdAt, so the server purges them ten minutes after creation. Reads also
// filter on createdAt because the TTL monitor only runs about once a minute.
package mongostore
