package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/timeutil"
)

const selectMessageCols = `id, session_id, message, timestamp,
	agent_type, messaging_platform`

// sortKeyLayout is fixed width so keys compare lexically in
// time order.
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z"

// sortKey normalizes a backend timestamp for ordering. Rows
// that do not parse get "" and sort last.
func sortKey(ts string) string {
	t, err := timeutil.Parse(ts)
	if err != nil {
		return ""
	}
	return t.UTC().Format(sortKeyLayout)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// UpsertMessages inserts or replaces rows by id. A zero ID lets
// SQLite assign one. It returns the number of rows written.
func (db *DB) UpsertMessages(msgs []chat.Message) (int, error) {
	n := 0
	err := db.Update(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO chat_messages (
				id, session_id, message, timestamp,
				agent_type, messaging_platform, sort_key
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				session_id = excluded.session_id,
				message = excluded.message,
				timestamp = excluded.timestamp,
				agent_type = excluded.agent_type,
				messaging_platform = excluded.messaging_platform,
				sort_key = excluded.sort_key`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, m := range msgs {
			var id any
			if m.ID != 0 {
				id = m.ID
			}
			if _, err := stmt.Exec(
				id, m.SessionID, m.Message, m.Timestamp,
				nullable(m.AgentType), nullable(m.Platform),
				sortKey(m.Timestamp),
			); err != nil {
				return fmt.Errorf(
					"upserting message %d: %w", m.ID, err,
				)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ListMessages returns every row newest first, ties broken by
// descending id.
func (db *DB) ListMessages(
	ctx context.Context,
) ([]chat.Message, error) {
	rows, err := db.reader.QueryContext(ctx,
		"SELECT "+selectMessageCols+" FROM chat_messages"+
			" ORDER BY sort_key DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	msgs := []chat.Message{}
	for rows.Next() {
		var m chat.Message
		var agent, platform sql.NullString
		if err := rows.Scan(
			&m.ID, &m.SessionID, &m.Message, &m.Timestamp,
			&agent, &platform,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.AgentType = agent.String
		m.Platform = platform.String
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountMessages returns the number of mirrored rows.
func (db *DB) CountMessages(ctx context.Context) (int, error) {
	var n int
	err := db.reader.QueryRowContext(ctx,
		"SELECT count(*) FROM chat_messages",
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

// DeleteSession removes every row of a session and returns how
// many were deleted.
func (db *DB) DeleteSession(sessionID string) (int64, error) {
	var n int64
	err := db.Update(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"DELETE FROM chat_messages WHERE session_id = ?",
			sessionID,
		)
		if err != nil {
			return fmt.Errorf("deleting session %s: %w", sessionID, err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// Stats summarizes the mirror for status output.
type Stats struct {
	MessageCount int    `json:"message_count"`
	SessionCount int    `json:"session_count"`
	Latest       string `json:"latest,omitempty"`
}

// GetStats returns row and session counts plus the newest
// timestamp.
func (db *DB) GetStats(ctx context.Context) (Stats, error) {
	const query = `
		SELECT
			(SELECT count(*) FROM chat_messages),
			(SELECT count(DISTINCT session_id) FROM chat_messages),
			(SELECT timestamp FROM chat_messages
			 ORDER BY sort_key DESC, id DESC LIMIT 1)`

	var s Stats
	var latest sql.NullString
	err := db.reader.QueryRowContext(ctx, query).Scan(
		&s.MessageCount, &s.SessionCount, &latest,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("fetching stats: %w", err)
	}
	s.Latest = latest.String
	return s, nil
}
