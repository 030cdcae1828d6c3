package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/export"
	"github.com/wesm/chatview/internal/timeutil"
)

// Short id lengths on overview cards and in the browser.
const (
	overviewIDLen = 8
	browserIDLen  = 12
)

func (s *Server) handleOverview(
	w http.ResponseWriter, r *http.Request, v viewer,
) {
	loc, ok := s.parseLocation(w, r)
	if !ok {
		return
	}
	snap, ok := s.loadSnapshot(w, r, v)
	if !ok {
		return
	}

	filtered := chat.FilterSessions(snap.Index.Sessions, parseFilter(r))
	recent := filtered[:min(len(filtered), chat.RecentLimit)]

	writeJSON(w, http.StatusOK, map[string]any{
		"stats": chat.ComputeStats(
			snap.Messages, snap.Index, s.now(), loc,
		),
		"options":         optionsOf(snap.Index),
		"recent_sessions": s.newCards(recent, overviewIDLen, loc),
		"matching":        len(filtered),
		"status":          s.statusView(v.User.ID, loc),
	})
}

func (s *Server) handleListSessions(
	w http.ResponseWriter, r *http.Request, v viewer,
) {
	loc, ok := s.parseLocation(w, r)
	if !ok {
		return
	}
	snap, ok := s.loadSnapshot(w, r, v)
	if !ok {
		return
	}

	filtered := chat.FilterSessions(snap.Index.Sessions, parseFilter(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.newCards(filtered, browserIDLen, loc),
		"total":    len(filtered),
		"options":  optionsOf(snap.Index),
	})
}

// transcriptEntry is one chat bubble.
type transcriptEntry struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Timestamp string    `json:"timestamp"`
	TimeLabel string    `json:"time_label"`
	Role      chat.Role `json:"role"`
	AgentType string    `json:"agent_type"`
	Platform  string    `json:"platform"`
}

func (s *Server) handleGetSession(
	w http.ResponseWriter, r *http.Request, v viewer,
) {
	loc, ok := s.parseLocation(w, r)
	if !ok {
		return
	}
	sess, ok := s.findSession(w, r, v)
	if !ok {
		return
	}

	msgs := chat.Transcript(sess)
	entries := make([]transcriptEntry, len(msgs))
	for i, m := range msgs {
		entries[i] = transcriptEntry{
			ID:        m.ID,
			Message:   m.Message,
			Timestamp: m.Timestamp,
			TimeLabel: timeLabel(m.Timestamp, loc),
			Role:      chat.RoleOf(m),
			AgentType: m.AgentType,
			Platform:  m.Platform,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  s.newCard(sess, browserIDLen, loc),
		"messages": entries,
	})
}

func timeLabel(ts string, loc *time.Location) string {
	t, err := timeutil.ParseIn(ts, loc)
	if err != nil {
		return ts
	}
	return t.In(loc).Format(timeutil.DefaultDateTimeLayout)
}

// findSession resolves the {id} path value in the viewer's
// snapshot, writing a 404 when it is unknown.
func (s *Server) findSession(
	w http.ResponseWriter, r *http.Request, v viewer,
) (*chat.Session, bool) {
	snap, ok := s.loadSnapshot(w, r, v)
	if !ok {
		return nil, false
	}
	sess, ok := snap.Index.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleExportSession(
	w http.ResponseWriter, r *http.Request, v viewer,
) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	loc, ok := s.parseLocation(w, r)
	if !ok {
		return
	}
	sess, ok := s.findSession(w, r, v)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, export.Filename(sess, format)),
	)
	if err := export.Write(w, sess, format, export.Options{
		Location: loc,
	}); err != nil {
		s.log.Warn("export failed", "session", sess.ID, "err", err)
	}
}

func (s *Server) handleAnalytics(
	w http.ResponseWriter, r *http.Request, v viewer,
) {
	loc, ok := s.parseLocation(w, r)
	if !ok {
		return
	}
	snap, ok := s.loadSnapshot(w, r, v)
	if !ok {
		return
	}

	a := s.analyticsFor(snap, loc)
	writeJSON(w, http.StatusOK, map[string]any{
		"total_messages": len(snap.Messages),
		"agent_types":    a.AgentTypes,
		"platforms":      a.Platforms,
		"timeline":       a.Timeline,
		"agent_donut":    chat.NewDonut(a.AgentTypes, chat.AgentPalette),
		"platform_donut": chat.NewDonut(a.Platforms, chat.PlatformPalette),
		"bar_chart":      chat.NewBarChart(a.Timeline, barChartHeight),
		"status":         s.statusView(v.User.ID, loc),
	})
}
