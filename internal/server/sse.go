package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wesm/chatview/internal/logging"
)

const sseWriteTimeout = 3 * time.Second

var errStreamingUnsupported = errors.New("streaming not supported")

// SSEStream writes refresh notifications to one event-stream
// client.
type SSEStream struct {
	w http.ResponseWriter
	f http.Flusher
}

// NewSSEStream sends the event-stream headers. It fails when
// the ResponseWriter cannot flush.
func NewSSEStream(w http.ResponseWriter) (*SSEStream, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	f.Flush()
	return &SSEStream{w: w, f: f}, nil
}

// Send writes one named event. Multi-line data is split across
// data fields so the client reassembles it unchanged. It
// returns false once the client is gone.
func (s *SSEStream) Send(event, data string) bool {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", event)
	for line := range strings.SplitSeq(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return s.write(event, b.String())
}

// SendJSON writes one named event with a JSON payload.
func (s *SSEStream) SendJSON(event string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Default().Warn("SSE marshal failed", "event", event, "err", err)
		return false
	}
	return s.Send(event, string(data))
}

// Ping writes a comment line, which keeps proxies from closing
// an idle stream without waking client listeners.
func (s *SSEStream) Ping() bool {
	return s.write("ping", ": ping\n\n")
}

func (s *SSEStream) write(event, frame string) bool {
	// A stalled client must not block the handler forever.
	rc := http.NewResponseController(s.w)
	_ = rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	defer func() { _ = rc.SetWriteDeadline(time.Time{}) }()

	if _, err := io.WriteString(s.w, frame); err != nil {
		logging.Default().Debug("SSE write failed", "event", event, "err", err)
		return false
	}
	s.f.Flush()
	return true
}
