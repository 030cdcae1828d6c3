package chat

// Session is the derived aggregate for one session id.
//
// AgentType, Platform and LastMessage are taken from the first
// message seen for the session while building the index. With
// input sorted newest first (the Source contract) that is the
// session's most recent message; with unsorted input they are
// whatever row happened to come first.
type Session struct {
	ID           string    `json:"id" yaml:"id"`
	Messages     []Message `json:"messages" yaml:"messages"`
	AgentType    string    `json:"agent_type" yaml:"agent_type"`
	Platform     string    `json:"platform" yaml:"platform"`
	LastMessage  string    `json:"last_message" yaml:"last_message"`
	MessageCount int       `json:"message_count" yaml:"message_count"`
}

// append adds m and keeps MessageCount in step with Messages.
func (s *Session) append(m Message) {
	s.Messages = append(s.Messages, m)
	s.MessageCount = len(s.Messages)
}

// Latest returns the first message in visit order, which is the
// newest one under the sorted-input contract.
func (s *Session) Latest() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[0], true
}

// Index is the output of the session aggregator.
type Index struct {
	// Sessions in first-seen order.
	Sessions []*Session
	// AgentTypes and Platforms are the distinct non-empty values
	// in first-seen order; they drive the filter options.
	AgentTypes []string
	Platforms  []string

	byID map[string]*Session
}

// BuildIndex groups msgs by session id in a single pass.
//
// msgs must be sorted by timestamp descending for each
// session's representative fields to describe its latest
// message. BuildIndex never fails; empty input yields an empty
// index with non-nil slices.
func BuildIndex(msgs []Message) *Index {
	idx := &Index{
		Sessions:   []*Session{},
		AgentTypes: []string{},
		Platforms:  []string{},
		byID:       make(map[string]*Session),
	}
	seenAgents := make(map[string]bool)
	seenPlatforms := make(map[string]bool)

	for _, m := range msgs {
		if m.AgentType != "" && !seenAgents[m.AgentType] {
			seenAgents[m.AgentType] = true
			idx.AgentTypes = append(idx.AgentTypes, m.AgentType)
		}
		if m.Platform != "" && !seenPlatforms[m.Platform] {
			seenPlatforms[m.Platform] = true
			idx.Platforms = append(idx.Platforms, m.Platform)
		}

		s, ok := idx.byID[m.SessionID]
		if !ok {
			s = &Session{
				ID:          m.SessionID,
				Messages:    []Message{},
				AgentType:   m.AgentType,
				Platform:    m.Platform,
				LastMessage: m.Timestamp,
			}
			idx.byID[m.SessionID] = s
			idx.Sessions = append(idx.Sessions, s)
		}
		s.append(m)
	}
	return idx
}

// Get returns the session with the given id.
func (idx *Index) Get(id string) (*Session, bool) {
	s, ok := idx.byID[id]
	return s, ok
}

// Len returns the number of sessions.
func (idx *Index) Len() int {
	return len(idx.Sessions)
}
