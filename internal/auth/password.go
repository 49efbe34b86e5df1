package auth

import "crypto/subtle"

// VerifyPassword checks a login attempt against the stored password.
//
// Passwords are stored in clear text (carried-over limitation, see
// package doc), so this is a direct comparison, but a constant-time
// one, so response timing does not leak how much of a guess matched.
func VerifyPassword(candidate, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) == 1
}
