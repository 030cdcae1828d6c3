package chat

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndex_Example(t *testing.T) {
	msgs := sampleMessages()
	idx := BuildIndex(msgs)

	require.Equal(t, 2, idx.Len())
	a, ok := idx.Get("A")
	require.True(t, ok)
	assert.Equal(t, 2, a.MessageCount)
	assert.Equal(t, "AI", a.AgentType)
	assert.Equal(t, "WHATSAPP", a.Platform)
	assert.Equal(t, "2024-01-02T10:00", a.LastMessage)
	assert.Equal(t, []int64{3, 1}, []int64{a.Messages[0].ID, a.Messages[1].ID})

	b, ok := idx.Get("B")
	require.True(t, ok)
	assert.Equal(t, 1, b.MessageCount)
	assert.Equal(t, "HUMAN", b.AgentType)
	assert.Equal(t, "", b.Platform)

	assert.Equal(t, []string{"AI", "HUMAN"}, idx.AgentTypes)
	assert.Equal(t, []string{"WHATSAPP"}, idx.Platforms)
	assertPartition(t, msgs, idx)
}

func TestBuildIndex_Empty(t *testing.T) {
	for _, in := range [][]Message{nil, {}} {
		idx := BuildIndex(in)
		assert.Equal(t, 0, idx.Len())
		assert.NotNil(t, idx.Sessions)
		assert.Empty(t, idx.AgentTypes)
		assert.Empty(t, idx.Platforms)
		_, ok := idx.Get("A")
		assert.False(t, ok)
	}
}

func TestBuildIndex_SessionOrderIsFirstSeen(t *testing.T) {
	idx := BuildIndex([]Message{
		msg(1, "z", "2024-01-03T00:00", "AI", "SMS"),
		msg(2, "a", "2024-01-02T00:00", "BOT", "WEB"),
		msg(3, "z", "2024-01-01T00:00", "AI", "SMS"),
	})
	var ids []string
	for _, s := range idx.Sessions {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"z", "a"}, ids)
	assert.Equal(t, []string{"AI", "BOT"}, idx.AgentTypes)
	assert.Equal(t, []string{"SMS", "WEB"}, idx.Platforms)
}

func TestBuildIndex_FirstSeenWinsOnUnsortedInput(t *testing.T) {
	// Oldest row first: representative fields follow it.
	msgs := []Message{
		msg(1, "A", "2024-01-01T10:00", "HUMAN", "SMS"),
		msg(2, "A", "2024-01-02T10:00", "AI", "WEB"),
	}
	s, _ := BuildIndex(msgs).Get("A")
	assert.Equal(t, "2024-01-01T10:00", s.LastMessage)
	assert.Equal(t, "HUMAN", s.AgentType)

	SortNewestFirst(msgs)
	s, _ = BuildIndex(msgs).Get("A")
	assert.Equal(t, "2024-01-02T10:00", s.LastMessage)
	assert.Equal(t, "AI", s.AgentType)
	assert.Equal(t, "WEB", s.Platform)
}

func TestBuildIndex_OptionSetsExcludeEmpty(t *testing.T) {
	idx := BuildIndex([]Message{
		msg(1, "A", "2024-01-01T10:00", "", ""),
		msg(2, "B", "2024-01-01T09:00", "", "TELEGRAM"),
	})
	assert.Empty(t, idx.AgentTypes)
	assert.Equal(t, []string{"TELEGRAM"}, idx.Platforms)
}

func TestBuildIndex_PartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	agents := []string{"AI", "HUMAN", "BOT", ""}
	platforms := []string{"WHATSAPP", "SMS", "WEB", ""}
	for trial := range 20 {
		n := rng.Intn(60)
		msgs := make([]Message, n)
		for i := range msgs {
			msgs[i] = msg(
				int64(i+1),
				fmt.Sprintf("s%d", rng.Intn(8)),
				fmt.Sprintf("2024-02-%02dT%02d:00", 1+rng.Intn(28), rng.Intn(24)),
				agents[rng.Intn(len(agents))],
				platforms[rng.Intn(len(platforms))],
			)
		}
		SortNewestFirst(msgs)
		t.Run(fmt.Sprintf("trial%d", trial), func(t *testing.T) {
			assertPartition(t, msgs, BuildIndex(msgs))
		})
	}
}

func TestSortNewestFirst(t *testing.T) {
	msgs := []Message{
		msg(1, "A", "garbage", "", ""),
		msg(2, "A", "2024-01-01T00:00:00Z", "", ""),
		msg(3, "A", "2024-01-03T00:00:00Z", "", ""),
		msg(4, "A", "2024-01-01T00:00:00Z", "", ""),
	}
	SortNewestFirst(msgs)
	var ids []int64
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{3, 4, 2, 1}, ids)
}

func TestSessionLatest(t *testing.T) {
	_, ok := (&Session{}).Latest()
	assert.False(t, ok)

	s, _ := BuildIndex(sampleMessages()).Get("A")
	m, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(3), m.ID)
}

func TestSessionAndStatsJSONKeys(t *testing.T) {
	idx := BuildIndex(sampleMessages())
	a, _ := idx.Get("A")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	for _, key := range []string{`"agent_type"`, `"last_message"`, `"message_count"`} {
		assert.Contains(t, string(data), key)
	}

	data, err = json.Marshal(Stats{TotalMessages: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"total_messages": 3,
		"total_sessions": 0,
		"total_platforms": 0,
		"today_messages": 0
	}`, string(data))
}
