package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// ErrDuplicateEmail is returned by CreateUser when the email is
// already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// User is a local account.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	CreatedAt    string
}

const selectUserCols = `id, email, full_name, password_hash, created_at`

// CreateUser inserts u. Emails compare case-insensitively.
func (db *DB) CreateUser(u User) error {
	return db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			"INSERT INTO users ("+selectUserCols+") VALUES (?, ?, ?, ?, ?)",
			u.ID, strings.TrimSpace(u.Email), u.FullName,
			u.PasswordHash, u.CreatedAt,
		)
		var se sqlite3.Error
		if errors.As(err, &se) &&
			se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateEmail
		}
		if err != nil {
			return fmt.Errorf("inserting user: %w", err)
		}
		return nil
	})
}

// GetUserByEmail looks a user up by email.
func (db *DB) GetUserByEmail(
	ctx context.Context, email string,
) (User, error) {
	return db.getUser(ctx, "email", strings.TrimSpace(email))
}

// GetUserByID looks a user up by id.
func (db *DB) GetUserByID(
	ctx context.Context, id string,
) (User, error) {
	return db.getUser(ctx, "id", id)
}

func (db *DB) getUser(
	ctx context.Context, col, val string,
) (User, error) {
	var u User
	err := db.reader.QueryRowContext(ctx,
		"SELECT "+selectUserCols+" FROM users WHERE "+col+" = ?",
		val,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("loading user: %w", err)
	}
	return u, nil
}
