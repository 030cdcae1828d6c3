// Package chat groups flat chat-transcript rows into sessions
// and computes the aggregate views the dashboard renders.
// Everything here is a pure function of its input.
package chat

import (
	"cmp"
	"slices"

	"github.com/wesm/chatview/internal/timeutil"
)

// UnknownLabel is displayed (and bucketed) for a missing agent
// type or platform.
const UnknownLabel = "Unknown"

// Message is one row of the hosted chat history table. JSON
// tags follow the external schema. An empty AgentType or
// Platform means the column was null.
type Message struct {
	ID        int64  `json:"id" yaml:"id"`
	SessionID string `json:"session_id" yaml:"session_id"`
	Message   string `json:"message" yaml:"message"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	AgentType string `json:"Agent_type" yaml:"agent_type,omitempty"`
	Platform  string `json:"messaging_platform" yaml:"messaging_platform,omitempty"`
}

// AgentLabel returns the agent type or UnknownLabel.
func (m Message) AgentLabel() string {
	return labelOrUnknown(m.AgentType)
}

// PlatformLabel returns the platform or UnknownLabel.
func (m Message) PlatformLabel() string {
	return labelOrUnknown(m.Platform)
}

func labelOrUnknown(s string) string {
	if s == "" {
		return UnknownLabel
	}
	return s
}

// SortNewestFirst sorts msgs in place by timestamp descending,
// breaking ties by descending ID. Unparseable timestamps sort
// last. Sources that cannot order rows server-side call this
// before handing rows to BuildIndex.
func SortNewestFirst(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		ta, errA := timeutil.Parse(a.Timestamp)
		tb, errB := timeutil.Parse(b.Timestamp)
		switch {
		case errA != nil && errB != nil:
			return cmp.Compare(b.ID, a.ID)
		case errA != nil:
			return 1
		case errB != nil:
			return -1
		}
		if c := tb.Compare(ta); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
