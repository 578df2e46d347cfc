package api

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/librarrarian/dashboard/internal/log"
)

// loginRequest is the local-login payload. OIDC logins are exchanged by the
// identity provider and normalised to the same session cookie; only the
// local-credential path terminates here.
type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// handleLogin authenticates the configured local operator and issues the JWT
// session cookie the rest of the operator surface accepts. The stored
// password is bcrypt-hashed once at server construction; the comparison here
// never touches the plaintext from config again.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.LocalLoginEnabled {
		respondProblem(w, r, http.StatusForbidden, &Problem{Code: "LOGIN_DISABLED", Message: "local login is not enabled"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput, err.Error())
		return
	}

	if !constantTimeEqual(req.Username, s.cfg.LocalUser) ||
		bcrypt.CompareHashAndPassword(s.localPasswordHash, []byte(req.Password)) != nil {
		log.FromContext(r.Context()).Warn().Str("event", "auth.login_failed").Msg("rejected local login attempt")
		respondProblem(w, r, http.StatusUnauthorized, ErrUnauthorized)
		return
	}

	tok, err := s.issueSessionToken(req.Username)
	if err != nil {
		respondProblem(w, r, http.StatusInternalServerError, ErrInternal)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   24 * 60 * 60,
	})
	log.FromContext(r.Context()).Info().Str("event", "auth.login").Str("user", req.Username).Msg("operator logged in")
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleLogout expires the session cookie. The JWT itself is not revocable
// server-side; expiry plus cookie removal is the teardown local login gets.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
