// Package auth implements user accounts and cookie-session authentication.
//
// # Model
//
// Login exchanges credentials for an opaque token: 32 random bytes, hex
// encoded, handed to the client in an HttpOnly cookie. The server stores
// only the SHA-256 hash of the token in a session row with an expiry.
// Each authenticated request resolves cookie → hash → session → user.
// Logout deletes the session row, which revokes the token immediately;
// this is the main reason sessions are server-side rows rather than stateless
// tokens.
//
// Expired sessions are rejected on sight and lazily deleted; a background
// sweeper in the API server clears the rest.
//
// # Known limitations
//
// User passwords are stored in clear text, carried over from the system
// this service replaces. VerifyPassword still compares in constant time.
// First-boot seeding (SeedAdmin) creates the single admin account; there
// is no user management surface beyond that.
package auth
