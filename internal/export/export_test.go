package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wesm/chatview/internal/chat"
)

func testSession(t *testing.T) *chat.Session {
	t.Helper()
	idx := chat.BuildIndex([]chat.Message{
		{ID: 3, SessionID: "sess-0123456789abcdef", Message: "# done\nbye", Timestamp: "2024-05-01T10:02:00Z", AgentType: "AI", Platform: "WHATSAPP"},
		{ID: 2, SessionID: "sess-0123456789abcdef", Message: "use `ls`", Timestamp: "2024-05-01T10:01:00Z", AgentType: "HUMAN", Platform: "WHATSAPP"},
		{ID: 1, SessionID: "sess-0123456789abcdef", Message: "", Timestamp: "2024-05-01T10:00:00Z"},
	})
	s, ok := idx.Get("sess-0123456789abcdef")
	require.True(t, ok)
	return s
}

var utcOpts = Options{Location: time.UTC}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatJSON},
		{"JSON", FormatJSON},
		{"yml", FormatYAML},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{" html ", FormatHTML},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("pdf")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testSession(t), FormatJSON, utcOpts))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	want := Header{
		ID:           "sess-0123456789abcdef",
		AgentType:    "AI",
		Platform:     "Whatsapp",
		MessageCount: 3,
		LastMessage:  "2024-05-01T10:02:00Z",
	}
	if diff := cmp.Diff(want, doc.Session); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	var gotIDs []int64
	for _, m := range doc.Messages {
		gotIDs = append(gotIDs, m.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, gotIDs)
	assert.Contains(t, buf.String(), `"Agent_type": "HUMAN"`)
	assert.Contains(t, buf.String(), `"message_count": 3`)
	assert.Contains(t, buf.String(), `"last_message": "2024-05-01T10:02:00Z"`)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testSession(t), FormatYAML, utcOpts))

	var doc struct {
		Session struct {
			ID       string `yaml:"id"`
			Platform string `yaml:"platform"`
		} `yaml:"session"`
		Messages []map[string]any `yaml:"messages"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "sess-0123456789abcdef", doc.Session.ID)
	assert.Equal(t, "Whatsapp", doc.Session.Platform)
	require.Len(t, doc.Messages, 3)
	assert.NotContains(t, doc.Messages[0], "agent_type")
	assert.Equal(t, "HUMAN", doc.Messages[1]["agent_type"])
}

func TestMarkdown(t *testing.T) {
	got := Markdown(testSession(t), utcOpts)
	want := `# Session sess-0123456789abcdef

- Agent: AI
- Platform: Whatsapp
- Messages: 3 messages
- Last message: May 1, 10:02 AM

## Unknown · May 1, 10:00 AM

_(empty message)_

## User · May 1, 10:01 AM

use ` + "`ls`" + `

## AI · May 1, 10:02 AM

\# done
bye
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("markdown mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testSession(t), FormatHTML, utcOpts))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `<div class="bubble user">`)
	assert.Contains(t, out, `<div class="bubble ai">`)
	assert.Contains(t, out, `<div class="bubble other">`)
	assert.Contains(t, out, "use <code>ls</code>")
	assert.Less(t,
		strings.Index(out, "use <code>ls</code>"),
		strings.Index(out, "# done"),
	)
}

func TestWriteHTMLEscapes(t *testing.T) {
	idx := chat.BuildIndex([]chat.Message{
		{ID: 1, SessionID: "x", Message: "<script>alert(1)</script>", Timestamp: "2024-05-01T10:00:00Z", AgentType: "HUMAN"},
	})
	s, _ := idx.Get("x")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, s, FormatHTML, utcOpts))
	assert.NotContains(t, buf.String(), "<script>alert")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, testSession(t), Format("pdf"), utcOpts)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFilenameAndContentType(t *testing.T) {
	s := testSession(t)
	assert.Equal(t, "session-sess-0123456.md", Filename(s, FormatMarkdown))
	assert.Equal(t, "application/json", FormatJSON.ContentType())
	assert.Equal(t, "text/markdown; charset=utf-8", FormatMarkdown.ContentType())
}
