package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/wesm/chatview/internal/auth"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type signInResponse struct {
	User        auth.User `json:"user"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   string    `json:"expires_at,omitempty"`
}

// authStatus maps a provider error to an HTTP status.
func authStatus(err error) int {
	var ae *auth.AuthError
	switch {
	case errors.As(err, &ae):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailNotConfirmed):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	status := authStatus(err)
	if status == http.StatusBadGateway {
		s.log.Error("auth backend", "err", err)
	}
	writeError(w, status, auth.Message(err))
}

func (s *Server) setTokenCookie(
	w http.ResponseWriter, r *http.Request, cred auth.Credential,
) {
	c := &http.Cookie{
		Name:     tokenCookie,
		Value:    cred.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if !cred.ExpiresAt.IsZero() {
		c.Expires = cred.ExpiresAt
	}
	http.SetCookie(w, c)
}

func clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleSignIn(
	w http.ResponseWriter, r *http.Request,
) {
	// Already signed in: hand back the current user.
	if v, ok, err := s.resolveViewer(r.Context(), r); err == nil && ok {
		writeJSON(w, http.StatusOK, signInResponse{User: v.User})
		return
	}

	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := auth.ValidateSignIn(req.Email, req.Password); err != nil {
		s.writeAuthError(w, err)
		return
	}

	cred, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		s.writeAuthError(w, err)
		return
	}
	s.setTokenCookie(w, r, cred)

	resp := signInResponse{
		User:        cred.User,
		AccessToken: cred.AccessToken,
	}
	if !cred.ExpiresAt.IsZero() {
		resp.ExpiresAt = cred.ExpiresAt.UTC().Format(time.RFC3339)
	}
	s.log.Info("signed in", "user", cred.User.ID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignUp(
	w http.ResponseWriter, r *http.Request,
) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := auth.ValidateSignUp(
		req.Email, req.Password, req.FullName,
	); err != nil {
		s.writeAuthError(w, err)
		return
	}

	res, err := s.auth.SignUp(
		r.Context(), req.Email, req.Password, req.FullName,
	)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		s.writeAuthError(w, err)
		return
	}

	msg := "Account created. You can now sign in."
	if res.NeedsConfirmation {
		msg = "Check your email to confirm your account."
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"needs_confirmation": res.NeedsConfirmation,
		"message":            msg,
	})
}

// handleSignOut always clears the cookie. Upstream revocation
// failures are logged, not returned.
func (s *Server) handleSignOut(
	w http.ResponseWriter, r *http.Request,
) {
	clearTokenCookie(w)

	v, ok, err := s.resolveViewer(r.Context(), r)
	if err == nil && ok {
		s.engine.Forget(v.User.ID)
		if err := s.auth.SignOut(r.Context(), v.Token); err != nil {
			s.log.Warn("revoking token", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"signed_out": true})
}

func (s *Server) handleGetUser(
	w http.ResponseWriter, _ *http.Request, v viewer,
) {
	writeJSON(w, http.StatusOK, map[string]any{"user": v.User})
}
