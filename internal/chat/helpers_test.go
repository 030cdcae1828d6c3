package chat

import "testing"

func msg(id int64, session, ts, agent, platform string) Message {
	return Message{
		ID:        id,
		SessionID: session,
		Message:   "body " + session,
		Timestamp: ts,
		AgentType: agent,
		Platform:  platform,
	}
}

// sampleMessages is the A/B example, newest first.
func sampleMessages() []Message {
	return []Message{
		msg(3, "A", "2024-01-02T10:00", "AI", "WHATSAPP"),
		msg(2, "B", "2024-01-02T09:00", "HUMAN", ""),
		msg(1, "A", "2024-01-01T10:00", "AI", "WHATSAPP"),
	}
}

func assertPartition(t *testing.T, msgs []Message, idx *Index) {
	t.Helper()
	seen := make(map[int64]int)
	total := 0
	for _, s := range idx.Sessions {
		if s.MessageCount != len(s.Messages) {
			t.Errorf("session %s: MessageCount %d != len %d",
				s.ID, s.MessageCount, len(s.Messages))
		}
		total += s.MessageCount
		for _, m := range s.Messages {
			if m.SessionID != s.ID {
				t.Errorf("message %d in session %s has session %s",
					m.ID, s.ID, m.SessionID)
			}
			seen[m.ID]++
		}
	}
	if total != len(msgs) {
		t.Errorf("sum of counts = %d, want %d", total, len(msgs))
	}
	for _, m := range msgs {
		if seen[m.ID] != 1 {
			t.Errorf("message %d appears %d times", m.ID, seen[m.ID])
		}
	}
}
