package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/source"
	"github.com/wesm/chatview/internal/sync"
	"github.com/wesm/chatview/internal/timeutil"
)

// barChartHeight is the pixel height of the tallest bar.
const barChartHeight = 200

// parseLocation reads the tz query parameter, defaulting to
// the configured zone. It writes a 400 for unknown zones.
func (s *Server) parseLocation(
	w http.ResponseWriter, r *http.Request,
) (*time.Location, bool) {
	tz := strings.TrimSpace(r.URL.Query().Get("tz"))
	if tz == "" {
		return s.loc, true
	}
	loc, err := timeutil.LoadLocation(tz)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tz: "+tz)
		return nil, false
	}
	return loc, true
}

// parseFilter reads the agent, platform and q parameters.
func parseFilter(r *http.Request) chat.Filter {
	q := r.URL.Query()
	return chat.Filter{
		AgentType: strings.TrimSpace(q.Get("agent")),
		Platform:  strings.TrimSpace(q.Get("platform")),
		Query:     strings.TrimSpace(q.Get("q")),
	}
}

// loadSnapshot returns the viewer's data, fetching it on first
// use. When a refresh fails but older data exists, the older
// data is served and the failure shows up in the status block.
func (s *Server) loadSnapshot(
	w http.ResponseWriter, r *http.Request, v viewer,
) (*sync.Snapshot, bool) {
	snap, err := s.engine.Snapshot(r.Context(), v.User.ID, v.Token)
	if err == nil {
		return snap, true
	}
	if handleContextError(w, err) {
		return nil, false
	}
	if snap != nil {
		return snap, true
	}
	if errors.Is(err, source.ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, errAuthRequired)
		return nil, false
	}
	writeError(w, http.StatusBadGateway,
		s.engine.Status(v.User.ID).LastError)
	return nil, false
}

// analyticsFor returns the snapshot's analytics, recomputed
// when the viewer asked for a different zone.
func (s *Server) analyticsFor(
	snap *sync.Snapshot, loc *time.Location,
) chat.Analytics {
	if loc.String() == s.loc.String() {
		return snap.Analytics
	}
	return chat.Summarize(snap.Messages, loc)
}

// statusView is the JSON form of a viewer's refresh state.
type statusView struct {
	sync.Status
	LastRefresh         string `json:"last_refresh"`
	LastRefreshRelative string `json:"last_refresh_relative"`
}

func (s *Server) statusView(userID string, loc *time.Location) statusView {
	st := s.engine.Status(userID)
	out := statusView{Status: st}
	if !st.LastRefresh.IsZero() {
		out.LastRefresh = timeutil.Format(st.LastRefresh)
		out.LastRefreshRelative = timeutil.Relative(
			st.LastRefresh, s.now(), loc, s.cfg.DateLayout,
		)
	}
	return out
}

// sessionCard is a session as listed in the overview and the
// session browser.
type sessionCard struct {
	ID                  string     `json:"id"`
	ShortID             string     `json:"short_id"`
	AgentType           string     `json:"agent_type"`
	AgentLabel          string     `json:"agent_label"`
	AgentStyle          chat.Style `json:"agent_style"`
	Platform            string     `json:"platform"`
	PlatformLabel       string     `json:"platform_label"`
	PlatformStyle       chat.Style `json:"platform_style"`
	MessageCount        int        `json:"message_count"`
	MessageCountLabel   string     `json:"message_count_label"`
	LastMessage         string     `json:"last_message"`
	LastMessageRelative string     `json:"last_message_relative"`
	Preview             string     `json:"preview"`
}

func (s *Server) newCard(
	sess *chat.Session, shortLen int, loc *time.Location,
) sessionCard {
	return sessionCard{
		ID:                  sess.ID,
		ShortID:             chat.ShortID(sess.ID, shortLen),
		AgentType:           sess.AgentType,
		AgentLabel:          chat.FormatAgentType(sess.AgentType),
		AgentStyle:          chat.AgentStyle(sess.AgentType),
		Platform:            sess.Platform,
		PlatformLabel:       chat.FormatPlatformName(sess.Platform),
		PlatformStyle:       chat.PlatformStyle(sess.Platform),
		MessageCount:        sess.MessageCount,
		MessageCountLabel:   chat.MessageCountLabel(sess.MessageCount),
		LastMessage:         sess.LastMessage,
		LastMessageRelative: s.relative(sess.LastMessage, loc),
		Preview:             chat.Preview(sess),
	}
}

func (s *Server) newCards(
	sessions []*chat.Session, shortLen int, loc *time.Location,
) []sessionCard {
	out := make([]sessionCard, len(sessions))
	for i, sess := range sessions {
		out[i] = s.newCard(sess, shortLen, loc)
	}
	return out
}

// relative formats a timestamp string relative to now; an
// unparseable value is returned as is.
func (s *Server) relative(ts string, loc *time.Location) string {
	if ts == "" {
		return ""
	}
	return timeutil.RelativeString(ts, s.now(), loc, s.cfg.DateLayout)
}

// options are the filter choices for the viewer's data.
type options struct {
	AgentTypes []string `json:"agent_types"`
	Platforms  []string `json:"platforms"`
}

func optionsOf(idx *chat.Index) options {
	return options{AgentTypes: idx.AgentTypes, Platforms: idx.Platforms}
}
