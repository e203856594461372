package account

import (
	"strings"
	"time"
)

// Role is the marketplace role a user registers with.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Valid reports whether r is a role users may register with.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// Status is the account lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
)

// AuthMethod records how the account authenticates.
type AuthMethod string

const (
	AuthLocal  AuthMethod = "local"
	AuthGoogle AuthMethod = "google"
)

// User is the persisted identity.
//
// Password holds a plaintext value waiting to be hashed by the store write
// path and is always empty on records read back from a store. PasswordHash
// and RefreshTokens are hidden fields: stores only populate them when asked
// to load hidden fields.
type User struct {
	ID             string     `json:"_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Password       string     `json:"-"`
	PasswordHash   string     `json:"-"`
	AuthMethod     AuthMethod `json:"authMethod"`
	Role           Role       `json:"role"`
	Status         Status     `json:"status"`
	EmailVerified  bool       `json:"emailVerified"`
	ProfilePicture string     `json:"profilePicture,omitempty"`
	RefreshTokens  []string   `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Sanitized returns a copy without password material or refresh tokens.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Password = ""
	out.PasswordHash = ""
	out.RefreshTokens = nil
	return &out
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.RefreshTokens != nil {
		out.RefreshTokens = append([]string(nil), u.RefreshTokens...)
	}
	return &out
}

// UserPatch lists fields to change in UpdateByID. Nil fields are untouched.
type UserPatch struct {
	Username       *string
	Password       *string
	Status         *Status
	EmailVerified  *bool
	ProfilePicture *string
	RefreshTokens  *[]string
}

// Apply copies the set fields of p onto u.
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Password != nil {
		u.Password = *p.Password
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.EmailVerified != nil {
		u.EmailVerified = *p.EmailVerified
	}
	if p.ProfilePicture != nil {
		u.ProfilePicture = *p.ProfilePicture
	}
	if p.RefreshTokens != nil {
		u.RefreshTokens = append([]string(nil), (*p.RefreshTokens)...)
	}
}

const (
	// OTPTTL is how long an OTP record lives after creation.
	OTPTTL = 10 * time.Minute
	// MaxOTPCount is the highest attempt counter an OTP record may hold.
	MaxOTPCount = 3
)

// OTPRecord is the single outstanding one-time code for an email.
type OTPRecord struct {
	Email     string
	Code      string
	Count     int
	CreatedAt time.Time
}

// NormalizeEmail lowercases and trims an address. All stores key by the
// normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
