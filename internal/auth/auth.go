// Package auth signs viewers in against the hosted GoTrue
// service or a local SQLite user table, and keeps the CLI's
// signed-in session on disk.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnauthenticated    = errors.New("not signed in")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
)

// MinPasswordLen is the shortest accepted sign-up password.
const MinPasswordLen = 6

// User is the signed-in viewer.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Credential is the result of a successful sign-in.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token has expired at now.
// A zero ExpiresAt never expires.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// SignUpResult tells the caller whether the account can sign
// in immediately.
type SignUpResult struct {
	NeedsConfirmation bool `json:"needs_confirmation"`
}

// Provider is an authentication backend.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Credential, error)
	SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error)
	// SignOut revokes accessToken where the backend supports it.
	SignOut(ctx context.Context, accessToken string) error
	// User resolves accessToken, failing with ErrUnauthenticated
	// when it is invalid or expired.
	User(ctx context.Context, accessToken string) (User, error)
}

// AuthError carries a message meant for display next to the
// sign-in or sign-up form.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

func formError(msg string) *AuthError {
	return &AuthError{Message: msg}
}

// ValidateSignIn checks the sign-in form.
func ValidateSignIn(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return formError("Please fill in all fields")
	}
	return nil
}

// ValidateSignUp checks the sign-up form in the order the
// fields are shown.
func ValidateSignUp(email, password, fullName string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return formError("Please fill in all fields")
	}
	if strings.TrimSpace(fullName) == "" {
		return formError("Please enter your full name")
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return formError("Password must be at least 6 characters")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return formError("Please enter a valid email address")
	}
	return nil
}

// Message returns the text to show a viewer for err.
func Message(err error) string {
	var ae *AuthError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		return ae.Message
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrEmailTaken):
		return "An account with this email already exists"
	case errors.Is(err, ErrEmailNotConfirmed):
		return "Please confirm your email before signing in"
	case errors.Is(err, ErrUnauthenticated):
		return "Your session has expired, please sign in again"
	default:
		return "Something went wrong, please try again"
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
