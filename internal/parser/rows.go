// Package parser decodes chat history rows from PostgREST
// response bodies and from exported JSON / JSONL files.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wesm/chatview/internal/chat"
)

// ErrMissingSessionID rejects rows that cannot be grouped.
var ErrMissingSessionID = errors.New("row has no session_id")

// Column names of the hosted table.
const (
	colID        = "id"
	colSessionID = "session_id"
	colMessage   = "message"
	colTimestamp = "timestamp"
	colAgentType = "Agent_type"
	colPlatform  = "messaging_platform"
)

// Result is the outcome of parsing one body or file.
type Result struct {
	Messages []chat.Message
	// Invalid counts rows that were skipped: malformed JSON,
	// non-object rows, or rows without a session id.
	Invalid int
	// Oversized counts JSONL lines dropped for length.
	Oversized int
}

// ParseRow maps one JSON object onto a chat.Message. Null and
// missing agent type or platform become "".
func ParseRow(row gjson.Result) (chat.Message, error) {
	if !row.IsObject() {
		return chat.Message{}, fmt.Errorf("row is %s, not an object", row.Type)
	}
	m := chat.Message{
		ID:        row.Get(colID).Int(),
		SessionID: scalar(row.Get(colSessionID)),
		Message:   scalar(row.Get(colMessage)),
		Timestamp: scalar(row.Get(colTimestamp)),
		AgentType: scalar(row.Get(colAgentType)),
		Platform:  scalar(row.Get(colPlatform)),
	}
	// Some exports lowercase the agent column.
	if m.AgentType == "" {
		m.AgentType = scalar(row.Get("agent_type"))
	}
	if m.SessionID == "" {
		return chat.Message{}, ErrMissingSessionID
	}
	return m, nil
}

// scalar renders a JSON scalar as a string; null, missing and
// composite values become "".
func scalar(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number, gjson.True, gjson.False:
		return v.Raw
	default:
		return ""
	}
}

// ParseRows parses a JSON array of rows, the shape PostgREST
// returns. Bad rows are counted, not fatal; a body that is not
// a JSON array is.
func ParseRows(data []byte) (Result, error) {
	trimmed := bytes.TrimSpace(data)
	if !gjson.ValidBytes(trimmed) {
		return Result{}, fmt.Errorf("invalid JSON body")
	}
	body := gjson.ParseBytes(trimmed)
	if !body.IsArray() {
		return Result{}, fmt.Errorf("expected JSON array, got %s", body.Type)
	}

	res := Result{Messages: []chat.Message{}}
	body.ForEach(func(_, row gjson.Result) bool {
		m, err := ParseRow(row)
		if err != nil {
			res.Invalid++
			return true
		}
		res.Messages = append(res.Messages, m)
		return true
	})
	return res, nil
}

// ParseJSONL parses one row per line. Blank lines are ignored
// and lines over 64MB are skipped.
func ParseJSONL(r io.Reader) (Result, error) {
	return parseJSONL(r, maxLineSize)
}

func parseJSONL(r io.Reader, maxLen int) (Result, error) {
	lr := newLineReader(r, maxLen)
	res := Result{Messages: []chat.Message{}}
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			res.Invalid++
			continue
		}
		m, err := ParseRow(gjson.Parse(line))
		if err != nil {
			res.Invalid++
			continue
		}
		res.Messages = append(res.Messages, m)
	}
	res.Oversized = lr.Skipped()
	if err := lr.Err(); err != nil {
		return res, fmt.Errorf("reading rows: %w", err)
	}
	return res, nil
}
