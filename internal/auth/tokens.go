package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens issues and verifies HS256 access tokens for the local
// provider.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a token manager. secret must be non-empty.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{
		secret: []byte(secret),
		issuer: "chatview",
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Sign issues a token for u and returns it with its expiry.
func (m *Tokens) Sign(u User) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	c := claims{
		Email: u.Email,
		Name:  u.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	s, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return s, exp, nil
}

// Parse verifies tokenString and returns the user it names.
// Any failure is ErrUnauthenticated.
func (m *Tokens) Parse(tokenString string) (User, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(
		tokenString, &c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if c.Subject == "" {
		return User{}, fmt.Errorf("%w: token missing sub claim", ErrUnauthenticated)
	}
	return User{ID: c.Subject, Email: c.Email, FullName: c.Name}, nil
}

// TokenExpiry reads the exp claim of any JWT without verifying
// its signature. The CLI uses it to drop stale GoTrue tokens
// before calling the backend.
func TokenExpiry(tokenString string) (time.Time, error) {
	var c jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, &c)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading token: %w", err)
	}
	if c.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return c.ExpiresAt.Time, nil
}
