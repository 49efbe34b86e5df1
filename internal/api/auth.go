package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nerrad567/fleetd/internal/auth"
)

// loginRequest is the POST /api/auth/login request body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// userResponse is the public view of a user returned to clients.
type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// handleLogin authenticates a user and issues a session cookie.
//
// POST /api/auth/login
//
// Unknown usernames and wrong passwords both answer 401 with the same
// message; the response does not reveal which credential was wrong.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		s.logger.Error("user lookup failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}

	// Verify against the empty string for unknown users so the timing of
	// the compare does not differ between the two failure paths.
	stored := ""
	if user != nil {
		stored = user.Password
	}
	if user == nil || !auth.VerifyPassword(req.Password, stored) {
		s.auditLog(r, "auth.login_failed", "session", "", req.Username, nil)
		writeUnauthorized(w, "invalid credentials")
		return
	}

	token, err := auth.NewSessionToken()
	if err != nil {
		s.logger.Error("session token generation failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}

	ttl := s.authCfg.GetSessionTTL()
	session := &auth.Session{
		UserID:    user.ID,
		TokenHash: auth.HashToken(token),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := s.sessions.Create(r.Context(), session); err != nil {
		s.logger.Error("session creation failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.authCfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.authCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	s.auditLog(r, "auth.login", "session", session.ID, user.Username, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"user": userResponse{ID: user.ID, Username: user.Username},
	})
}

// handleLogout destroys the current session and clears the cookie.
//
// POST /api/auth/logout
//
// Logout is idempotent: requests without a cookie, or with a token that
// no longer maps to a session, still answer 200 with a cleared cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.authCfg.CookieName); err == nil && cookie.Value != "" {
		tokenHash := auth.HashToken(cookie.Value)
		if err := s.sessions.DeleteByTokenHash(r.Context(), tokenHash); err != nil {
			s.logger.Error("session deletion failed", "error", err)
			writeInternalError(w, "internal server error")
			return
		}
		s.auditLog(r, "auth.logout", "session", "", "", nil)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.authCfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.authCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCurrentUser returns the authenticated user.
//
// GET /api/auth/user
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": userResponse{ID: id.UserID, Username: id.Username},
	})
}
