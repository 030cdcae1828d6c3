package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wesm/chatview/internal/db"
)

// Local authenticates against the users table of the local
// database. Accounts are usable right after sign-up.
type Local struct {
	db     *db.DB
	tokens *Tokens
	cost   int
}

// NewLocal returns a provider storing users in d and signing
// tokens with tokens.
func NewLocal(d *db.DB, tokens *Tokens) *Local {
	return &Local{db: d, tokens: tokens, cost: bcrypt.DefaultCost}
}

// SignIn implements Provider.
func (l *Local) SignIn(
	ctx context.Context, email, password string,
) (Credential, error) {
	if err := ValidateSignIn(email, password); err != nil {
		return Credential{}, err
	}
	row, err := l.db.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, db.ErrNotFound) {
		return Credential{}, ErrInvalidCredentials
	}
	if err != nil {
		return Credential{}, err
	}
	if bcrypt.CompareHashAndPassword(
		[]byte(row.PasswordHash), []byte(password),
	) != nil {
		return Credential{}, ErrInvalidCredentials
	}

	u := User{ID: row.ID, Email: row.Email, FullName: row.FullName}
	token, exp, err := l.tokens.Sign(u)
	if err != nil {
		return Credential{}, err
	}
	return Credential{AccessToken: token, ExpiresAt: exp, User: u}, nil
}

// SignUp implements Provider.
func (l *Local) SignUp(
	ctx context.Context, email, password, fullName string,
) (SignUpResult, error) {
	if err := ValidateSignUp(email, password, fullName); err != nil {
		return SignUpResult{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("hashing password: %w", err)
	}
	err = l.db.CreateUser(db.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if errors.Is(err, db.ErrDuplicateEmail) {
		return SignUpResult{}, ErrEmailTaken
	}
	if err != nil {
		return SignUpResult{}, err
	}
	return SignUpResult{NeedsConfirmation: false}, nil
}

// SignOut implements Provider. Local tokens are stateless and
// simply expire.
func (l *Local) SignOut(context.Context, string) error {
	return nil
}

// User implements Provider.
func (l *Local) User(ctx context.Context, accessToken string) (User, error) {
	claimed, err := l.tokens.Parse(accessToken)
	if err != nil {
		return User{}, err
	}
	row, err := l.db.GetUserByID(ctx, claimed.ID)
	if errors.Is(err, db.ErrNotFound) {
		return User{}, fmt.Errorf("%w: user no longer exists", ErrUnauthenticated)
	}
	if err != nil {
		return User{}, err
	}
	return User{ID: row.ID, Email: row.Email, FullName: row.FullName}, nil
}
