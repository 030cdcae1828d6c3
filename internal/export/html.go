package export

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"regexp"

	"github.com/wesm/chatview/internal/chat"
)

type htmlData struct {
	ID           string
	Agent        string
	Platform     string
	MessageCount string
	LastMessage  string
	Messages     []htmlMessage
}

type htmlMessage struct {
	RoleClass   string
	Speaker     string
	Timestamp   string
	ContentHTML template.HTML
}

var htmlTmpl = template.Must(template.New("export").Parse(htmlTemplate))

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Session {{.ID}}</title>
<style>
:root {
  --bg: #0f172a; --surface: #1e293b; --border: #334155;
  --text: #e2e8f0; --muted: #94a3b8;
  --user: #0891b2; --ai: #7c3aed; --other: #475569;
  --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI",
    Roboto, "Helvetica Neue", sans-serif;
  --font-mono: "SF Mono", "Fira Code", Menlo, Consolas, monospace;
}
* { box-sizing: border-box; margin: 0; padding: 0; }
body {
  font-family: var(--font-sans); font-size: 14px;
  background: var(--bg); color: var(--text); line-height: 1.5;
}
header {
  background: var(--surface); border-bottom: 1px solid var(--border);
  padding: 12px 24px; position: sticky; top: 0;
}
h1 { font-size: 15px; font-weight: 600; font-family: var(--font-mono); }
.meta { font-size: 12px; color: var(--muted); display: flex; gap: 12px; }
main {
  max-width: 820px; margin: 0 auto; padding: 16px;
  display: flex; flex-direction: column; gap: 10px;
}
.bubble {
  max-width: 75%; padding: 8px 14px; border-radius: 14px;
  white-space: pre-wrap; word-break: break-word;
}
.bubble.user { align-self: flex-end; background: var(--user); }
.bubble.ai { align-self: flex-start; background: var(--ai); }
.bubble.other { align-self: flex-start; background: var(--other); }
.who { font-size: 11px; font-weight: 600; text-transform: uppercase; }
.time { font-size: 10px; color: #cbd5e1; margin-left: 6px; }
.bubble code {
  font-family: var(--font-mono); font-size: 0.9em;
  background: rgba(0,0,0,0.25); border-radius: 3px; padding: 0.1em 0.3em;
}
</style>
</head>
<body>
<header>
  <h1>{{.ID}}</h1>
  <div class="meta">
    <span>{{.Agent}}</span>
    <span>{{.Platform}}</span>
    <span>{{.MessageCount}}</span>
    <span>{{.LastMessage}}</span>
  </div>
</header>
<main>
{{- range .Messages}}
<div class="bubble {{.RoleClass}}"><div><span class="who">{{.Speaker}}</span><span class="time">{{.Timestamp}}</span></div>{{.ContentHTML}}</div>
{{- end}}
</main>
</body></html>`

var inlineCode = regexp.MustCompile("`([^`]+)`")

func messageHTML(text string) template.HTML {
	s := html.EscapeString(text)
	s = inlineCode.ReplaceAllString(s, "<code>$1</code>")
	return template.HTML(s)
}

func writeHTML(w io.Writer, s *chat.Session, opts Options) error {
	msgs := chat.Transcript(s)
	data := htmlData{
		ID:           s.ID,
		Agent:        chat.FormatAgentType(s.AgentType),
		Platform:     chat.FormatPlatformName(s.Platform),
		MessageCount: chat.MessageCountLabel(s.MessageCount),
		LastMessage:  formatTimestamp(s.LastMessage, opts),
		Messages:     make([]htmlMessage, len(msgs)),
	}
	for i, m := range msgs {
		data.Messages[i] = htmlMessage{
			RoleClass:   string(chat.RoleOf(m)),
			Speaker:     speaker(m),
			Timestamp:   formatTimestamp(m.Timestamp, opts),
			ContentHTML: messageHTML(m.Message),
		}
	}
	if err := htmlTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	return nil
}
