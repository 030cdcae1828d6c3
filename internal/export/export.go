// Package export renders one session's transcript as a
// downloadable document.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/timeutil"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// Format is an export document type.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat accepts a format name; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// Options control timestamp rendering.
type Options struct {
	Location *time.Location
	// Layout formats transcript timestamps; defaults to
	// timeutil.DefaultDateTimeLayout.
	Layout string
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Layout == "" {
		o.Layout = timeutil.DefaultDateTimeLayout
	}
	return o
}

// Document is the JSON / YAML export shape.
type Document struct {
	Session  Header         `json:"session" yaml:"session"`
	Messages []chat.Message `json:"messages" yaml:"messages"`
}

// Header describes the exported session.
type Header struct {
	ID           string `json:"id" yaml:"id"`
	AgentType    string `json:"agent_type" yaml:"agent_type"`
	Platform     string `json:"platform" yaml:"platform"`
	MessageCount int    `json:"message_count" yaml:"message_count"`
	LastMessage  string `json:"last_message" yaml:"last_message"`
}

// NewDocument builds the export document, with messages oldest
// first. Missing agent type and platform render as "Unknown".
func NewDocument(s *chat.Session) Document {
	return Document{
		Session: Header{
			ID:           s.ID,
			AgentType:    chat.FormatAgentType(s.AgentType),
			Platform:     chat.FormatPlatformName(s.Platform),
			MessageCount: s.MessageCount,
			LastMessage:  s.LastMessage,
		},
		Messages: chat.Transcript(s),
	}
}

// Write renders s in format f.
func Write(w io.Writer, s *chat.Session, f Format, opts Options) error {
	opts = opts.withDefaults()
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(s))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(s)); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(s, opts))
		return err
	case FormatHTML:
		return writeHTML(w, s, opts)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// Markdown renders the transcript as a Markdown document.
func Markdown(s *chat.Session, opts Options) string {
	opts = opts.withDefaults()
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", s.ID)
	fmt.Fprintf(&b, "- Agent: %s\n", chat.FormatAgentType(s.AgentType))
	fmt.Fprintf(&b, "- Platform: %s\n", chat.FormatPlatformName(s.Platform))
	fmt.Fprintf(&b, "- Messages: %s\n", chat.MessageCountLabel(s.MessageCount))
	if s.LastMessage != "" {
		fmt.Fprintf(&b, "- Last message: %s\n",
			formatTimestamp(s.LastMessage, opts))
	}

	for _, m := range chat.Transcript(s) {
		fmt.Fprintf(&b, "\n## %s", speaker(m))
		if ts := formatTimestamp(m.Timestamp, opts); ts != "" {
			fmt.Fprintf(&b, " · %s", ts)
		}
		b.WriteString("\n\n")
		if m.Message == "" {
			b.WriteString("_(empty message)_\n")
			continue
		}
		b.WriteString(quoteMarkdown(m.Message))
		b.WriteString("\n")
	}
	return b.String()
}

// speaker is the heading for a transcript entry.
func speaker(m chat.Message) string {
	switch chat.RoleOf(m) {
	case chat.RoleUser:
		return "User"
	case chat.RoleAI:
		return "AI"
	}
	return chat.FormatAgentType(m.AgentType)
}

var leadingHeading = regexp.MustCompile(`(?m)^#`)

// quoteMarkdown keeps message text from opening headings.
func quoteMarkdown(text string) string {
	return leadingHeading.ReplaceAllString(text, `\#`)
}

func formatTimestamp(ts string, opts Options) string {
	if ts == "" {
		return ""
	}
	t, err := timeutil.ParseIn(ts, opts.Location)
	if err != nil {
		return ts
	}
	return t.In(opts.Location).Format(opts.Layout)
}

var unsafeFilename = regexp.MustCompile(`[^\w.\-]`)

// Filename is the download name for a session export.
func Filename(s *chat.Session, f Format) string {
	name := "session-" + chat.ShortID(s.ID, 12) + "." + string(f)
	return unsafeFilename.ReplaceAllString(name, "_")
}
