// Package source fetches the full chat history for a viewer,
// either from the hosted Supabase table or from the local
// SQLite mirror.
package source

import (
	"context"
	"errors"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/db"
)

// ErrUnauthorized means the backend rejected the viewer's
// credentials.
var ErrUnauthorized = errors.New("backend rejected credentials")

// Source returns every chat row visible to the holder of
// accessToken, sorted by timestamp descending.
type Source interface {
	FetchMessages(ctx context.Context, accessToken string) ([]chat.Message, error)
}

// Store serves rows from the local mirror. The token is not
// checked here; the server's auth guard already did.
type Store struct {
	db *db.DB
}

// NewStore returns a Source backed by d.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// FetchMessages implements Source.
func (s *Store) FetchMessages(
	ctx context.Context, _ string,
) ([]chat.Message, error) {
	return s.db.ListMessages(ctx)
}
