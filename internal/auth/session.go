package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session is the CLI's signed-in state. It is created once at
// startup with LoadSession, passed to whatever needs the
// current user, and cleared by SignOut.
type Session struct {
	path     string
	provider Provider
	now      func() time.Time

	mu   sync.RWMutex
	cred *Credential
}

// LoadSession restores the credential saved at path, if any,
// and checks it with provider. A missing, expired or rejected
// credential leaves the session signed out and removes the
// file; backend errors are returned with the session still
// usable.
func LoadSession(
	ctx context.Context, path string, provider Provider,
) (*Session, error) {
	s := &Session{path: path, provider: provider, now: time.Now}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("reading credentials: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil || cred.AccessToken == "" {
		return s, s.clearFile()
	}
	if cred.ExpiresAt.IsZero() {
		if exp, err := TokenExpiry(cred.AccessToken); err == nil {
			cred.ExpiresAt = exp
		}
	}
	if cred.Expired(s.now()) {
		return s, s.clearFile()
	}

	u, err := provider.User(ctx, cred.AccessToken)
	if errors.Is(err, ErrUnauthenticated) {
		return s, s.clearFile()
	}
	if err != nil {
		return s, fmt.Errorf("resolving saved session: %w", err)
	}
	cred.User = u
	s.cred = &cred
	return s, nil
}

// Current returns the signed-in user.
func (s *Session) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return User{}, false
	}
	return s.cred.User, true
}

// AccessToken returns the token for backend calls, or
// ErrUnauthenticated.
func (s *Session) AccessToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil || s.cred.Expired(s.now()) {
		return "", ErrUnauthenticated
	}
	return s.cred.AccessToken, nil
}

// SignIn authenticates and persists the credential with mode
// 0600.
func (s *Session) SignIn(ctx context.Context, email, password string) (User, error) {
	cred, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return User{}, err
	}
	if err := s.save(cred); err != nil {
		return User{}, err
	}
	s.mu.Lock()
	s.cred = &cred
	s.mu.Unlock()
	return cred.User, nil
}

// SignOut revokes the token upstream and forgets it locally.
// The local state is cleared even if revocation fails.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	cred := s.cred
	s.cred = nil
	s.mu.Unlock()

	var revokeErr error
	if cred != nil {
		revokeErr = s.provider.SignOut(ctx, cred.AccessToken)
	}
	return errors.Join(revokeErr, s.clearFile())
}

func (s *Session) save(cred Credential) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

func (s *Session) clearFile() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}
