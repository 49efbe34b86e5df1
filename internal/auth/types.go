package auth

import (
	"errors"
	"time"
)

// User represents an authenticated account.
//
// Passwords are stored in clear text, a known carried-over limitation;
// the comparison in VerifyPassword is constant-time regardless. JSON
// exposure is only {id, username}.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"` // never serialised

	CreatedAt time.Time `json:"-"`
}

// Session is a server-side login record. The client holds an opaque
// token in a cookie; only the SHA-256 hash of that token is stored.
type Session struct {
	ID        string
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Sentinel errors for authentication operations.
var (
	// ErrUsernameExists is returned when creating a user whose username
	// is already taken.
	ErrUsernameExists = errors.New("auth: username already exists")
)
