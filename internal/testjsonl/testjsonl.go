// Package testjsonl provides fixture builders for chat history
// rows, as JSONL lines or a PostgREST-style JSON array. Used by
// the parser, source, and sync test packages.
package testjsonl

import (
	"encoding/json"
	"strings"
)

// Row is one chat history row. Empty AgentType and Platform
// are written as JSON null.
type Row struct {
	ID        int64
	SessionID string
	Message   string
	Timestamp string
	AgentType string
	Platform  string
}

func (r Row) fields() map[string]any {
	m := map[string]any{
		"id":                 r.ID,
		"session_id":         r.SessionID,
		"message":            r.Message,
		"timestamp":          r.Timestamp,
		"Agent_type":         nil,
		"messaging_platform": nil,
	}
	if r.AgentType != "" {
		m["Agent_type"] = r.AgentType
	}
	if r.Platform != "" {
		m["messaging_platform"] = r.Platform
	}
	return m
}

// RowJSON returns a row as a JSON object string.
func RowJSON(
	id int64, sessionID, message, timestamp, agentType, platform string,
) string {
	return mustMarshal(Row{
		ID:        id,
		SessionID: sessionID,
		Message:   message,
		Timestamp: timestamp,
		AgentType: agentType,
		Platform:  platform,
	}.fields())
}

// JoinJSONL joins lines with newlines and adds a trailing
// newline.
func JoinJSONL(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// RowBuilder constructs row fixtures using a fluent API.
type RowBuilder struct {
	rows []string
}

// NewRowBuilder returns a new empty RowBuilder.
func NewRowBuilder() *RowBuilder {
	return &RowBuilder{}
}

// Add appends a row.
func (b *RowBuilder) Add(r Row) *RowBuilder {
	b.rows = append(b.rows, mustMarshal(r.fields()))
	return b
}

// AddMessage appends a row with the common fields.
func (b *RowBuilder) AddMessage(
	id int64, sessionID, timestamp, agentType, platform, text string,
) *RowBuilder {
	return b.Add(Row{
		ID:        id,
		SessionID: sessionID,
		Message:   text,
		Timestamp: timestamp,
		AgentType: agentType,
		Platform:  platform,
	})
}

// AddRaw appends a literal line or array element.
func (b *RowBuilder) AddRaw(line string) *RowBuilder {
	b.rows = append(b.rows, line)
	return b
}

// JSONL returns the rows as newline-delimited JSON.
func (b *RowBuilder) JSONL() string {
	return JoinJSONL(b.rows...)
}

// Array returns the rows as a JSON array body.
func (b *RowBuilder) Array() string {
	return "[" + strings.Join(b.rows, ",") + "]"
}

// Len returns the number of rows added.
func (b *RowBuilder) Len() int {
	return len(b.rows)
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
