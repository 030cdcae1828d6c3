package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/wesm/chatview/internal/source"
	"github.com/wesm/chatview/internal/sync"
	"github.com/wesm/chatview/internal/timeutil"
)

// heartbeatInterval is how often an idle event stream gets a
// keepalive.
const heartbeatInterval = 30 * time.Second

// handleRefresh fetches the viewer's data now. A refresh that
// is already running is joined rather than repeated.
func (s *Server) handleRefresh(
	w http.ResponseWriter, r *http.Request, v viewer,
) {
	loc, ok := s.parseLocation(w, r)
	if !ok {
		return
	}
	_, err := s.engine.Refresh(r.Context(), v.User.ID, v.Token)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		if errors.Is(err, source.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, errAuthRequired)
			return
		}
		writeError(w, http.StatusBadGateway,
			s.engine.Status(v.User.ID).LastError)
		return
	}
	writeJSON(w, http.StatusOK, s.statusView(v.User.ID, loc))
}

func (s *Server) handleRefreshStatus(
	w http.ResponseWriter, r *http.Request, v viewer,
) {
	loc, ok := s.parseLocation(w, r)
	if !ok {
		return
	}
	resp := map[string]any{
		"refresh": s.statusView(v.User.ID, loc),
	}
	if last := s.engine.LastImport(); !last.IsZero() {
		resp["last_import"] = timeutil.Format(last)
		resp["import_stats"] = s.engine.LastImportStats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents streams "refreshed" when the viewer's snapshot
// is replaced and "stale" when an import invalidated it.
func (s *Server) handleEvents(
	w http.ResponseWriter, r *http.Request, v viewer,
) {
	// Subscribe before the headers go out so a client that saw
	// the response cannot miss an event.
	events, unsubscribe := s.engine.Subscribe()
	defer unsubscribe()

	stream, err := NewSSEStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			switch ev.Kind {
			case sync.EventRefreshed:
				if ev.Viewer != v.User.ID {
					continue
				}
				if !stream.SendJSON("refreshed",
					s.statusView(v.User.ID, s.loc)) {
					return
				}
			case sync.EventStale:
				if !stream.Send("stale", "{}") {
					return
				}
			}
		case <-heartbeat.C:
			if !stream.Ping() {
				return
			}
		}
	}
}
