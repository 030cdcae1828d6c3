package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wesm/chatview/internal/db"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	l := NewLocal(d, newTestTokens(t))
	l.cost = bcrypt.MinCost
	return l
}

func TestLocal_SignUpSignIn(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	res, err := l.SignUp(ctx, " Ada@Example.com ", "secret1", " Ada Lovelace ")
	require.NoError(t, err)
	assert.False(t, res.NeedsConfirmation)

	cred, err := l.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, cred.AccessToken)
	assert.Equal(t, "ada@example.com", cred.User.Email)
	assert.Equal(t, "Ada Lovelace", cred.User.FullName)
	assert.NotEmpty(t, cred.User.ID)
	assert.False(t, cred.ExpiresAt.IsZero())

	u, err := l.User(ctx, cred.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, cred.User, u)

	assert.NoError(t, l.SignOut(ctx, cred.AccessToken))
}

func TestLocal_SignInFailures(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	_, err := l.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)

	_, err = l.SignIn(ctx, "ada@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = l.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = l.SignIn(ctx, "", "")
	var ae *AuthError
	assert.True(t, errors.As(err, &ae))
}

func TestLocal_SignUpDuplicate(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	_, err := l.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)

	_, err = l.SignUp(ctx, "ADA@example.com", "secret2", "Ada Again")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLocal_SignUpValidation(t *testing.T) {
	l := newTestLocal(t)
	_, err := l.SignUp(context.Background(), "ada@example.com", "123", "Ada")
	assert.Equal(t, "Password must be at least 6 characters", Message(err))
}

func TestLocal_UserRejectsBadToken(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	_, err := l.User(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Valid signature, but the user is not in the database.
	token, _, err := l.tokens.Sign(User{ID: "ghost", Email: "g@example.com"})
	require.NoError(t, err)
	_, err = l.User(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
