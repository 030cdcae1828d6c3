package chat

import (
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wesm/chatview/internal/timeutil"
)

// FilterAll disables a filter dimension.
const FilterAll = "all"

// RecentLimit is how many sessions the overview shows.
const RecentLimit = 6

// previewLen is the preview length in characters.
const previewLen = 80

// Filter selects sessions by exact agent type and platform.
// An empty value or FilterAll matches everything.
type Filter struct {
	AgentType string
	Platform  string
	// Query is a case-insensitive substring of the session id.
	Query string
}

// Match reports whether s passes the filter.
func (f Filter) Match(s *Session) bool {
	if !isAll(f.AgentType) && s.AgentType != f.AgentType {
		return false
	}
	if !isAll(f.Platform) && s.Platform != f.Platform {
		return false
	}
	if f.Query != "" &&
		!strings.Contains(
			strings.ToLower(s.ID), strings.ToLower(f.Query),
		) {
		return false
	}
	return true
}

func isAll(v string) bool {
	return v == "" || v == FilterAll
}

// FilterSessions returns the sessions matching f, preserving
// order. The result is never nil.
func FilterSessions(sessions []*Session, f Filter) []*Session {
	out := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Transcript returns the session's messages oldest first. The
// session is not modified. Rows whose timestamp does not parse
// come first; ties keep reverse visit order.
func Transcript(s *Session) []Message {
	out := slices.Clone(s.Messages)
	if out == nil {
		return []Message{}
	}
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b Message) int {
		return sortKey(a).Compare(sortKey(b))
	})
	return out
}

func sortKey(m Message) time.Time {
	t, err := timeutil.Parse(m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Preview returns the first 80 characters of the session's
// latest message, with "..." appended when it was cut.
func Preview(s *Session) string {
	m, ok := s.Latest()
	if !ok {
		return ""
	}
	return Truncate(m.Message, previewLen)
}

// Truncate shortens text to n characters plus "...".
func Truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}

// ShortID returns the first n characters of id.
func ShortID(id string, n int) string {
	if utf8.RuneCountInString(id) <= n {
		return id
	}
	return string([]rune(id)[:n])
}

// MessageCountLabel renders "1 message" / "N messages".
func MessageCountLabel(n int) string {
	if n == 1 {
		return "1 message"
	}
	return strconv.Itoa(n) + " messages"
}
