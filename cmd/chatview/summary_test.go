package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/sync"
)

func testSnapshot(msgs []chat.Message) *sync.Snapshot {
	chat.SortNewestFirst(msgs)
	return &sync.Snapshot{
		Messages: msgs,
		Index:    chat.BuildIndex(msgs),
	}
}

func TestRenderSummary(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	snap := testSnapshot([]chat.Message{
		{ID: 1, SessionID: "session-aaaaaaaa", Message: "hello", Timestamp: "2024-05-02T11:00:00Z", AgentType: "HUMAN", Platform: "SMS"},
		{ID: 2, SessionID: "session-aaaaaaaa", Message: "hi there", Timestamp: "2024-05-02T11:30:00Z", AgentType: "AI", Platform: "SMS"},
		{ID: 3, SessionID: "session-bbbbbbbb", Message: "ping", Timestamp: "2024-04-20T08:00:00Z", AgentType: "BOT"},
	})

	var buf bytes.Buffer
	renderSummary(&buf, snap, summaryOptions{
		Limit:  6,
		Now:    now,
		Loc:    time.UTC,
		Layout: "1/2/2006",
	})
	out := buf.String()

	for _, want := range []string{
		"Chat history",
		"Recent sessions (2 matching)",
		"session-",
		"2 messages",
		"30m ago",
		"4/20/2024",
		"hi there",
		"Agent types",
		"Platforms",
		"Unknown",
		"Messages per day",
		"2024-04-20",
		"2024-05-02",
		"(66.7%)",
	} {
		assert.Contains(t, out, want)
	}
	// Newest session first.
	assert.Less(t, strings.Index(out, "hi there"), strings.Index(out, "ping"))
}

func TestRenderSummaryFilteredAndEmpty(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	snap := testSnapshot([]chat.Message{
		{ID: 1, SessionID: "s1", Message: "a", Timestamp: "2024-05-02T11:00:00Z", AgentType: "AI"},
		{ID: 2, SessionID: "s2", Message: "b", Timestamp: "2024-05-02T10:00:00Z", AgentType: "AI"},
	})

	var buf bytes.Buffer
	renderSummary(&buf, snap, summaryOptions{
		Filter: chat.Filter{AgentType: "AI"},
		Limit:  1,
		Now:    now,
		Loc:    time.UTC,
	})
	out := buf.String()
	assert.Contains(t, out, "Recent sessions (2 matching)")
	assert.Contains(t, out, "1h ago")
	assert.NotContains(t, out, "2h ago")

	buf.Reset()
	renderSummary(&buf, testSnapshot([]chat.Message{}), summaryOptions{
		Now: now, Loc: time.UTC,
	})
	out = buf.String()
	assert.Contains(t, out, "No sessions found.")
	assert.Contains(t, out, "No data")
}

func TestBar(t *testing.T) {
	assert.Equal(t, "█", bar(0))
	assert.Equal(t, "███", bar(2.6))
	assert.Equal(t, strings.Repeat("█", barWidth), bar(barWidth))
}
