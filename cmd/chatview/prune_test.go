package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/db"
)

func ptr[T any](v T) *T { return &v }

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func seedMessages(t *testing.T, d *db.DB, msgs ...chat.Message) {
	t.Helper()
	if _, err := d.UpsertMessages(msgs); err != nil {
		t.Fatalf("seeding: %v", err)
	}
}

func sessionExists(t *testing.T, d *db.DB, id string) bool {
	t.Helper()
	msgs, err := d.ListMessages(context.Background())
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	for _, m := range msgs {
		if m.SessionID == id {
			return true
		}
	}
	return false
}

func TestPruneFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "no filters",
			args:    []string{"prune"},
			wantErr: "at least one filter",
		},
		{
			name:    "unknown flag",
			args:    []string{"prune", "--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "negative max-messages",
			args:    []string{"prune", "--max-messages", "-2"},
			wantErr: "max-messages must be >= 0",
		},
		{
			name:    "bad date",
			args:    []string{"prune", "--before", "yesterday"},
			wantErr: "before must be YYYY-MM-DD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			_, err := run(t, "", tt.args...)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q missing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPruneCommandDryRun(t *testing.T) {
	isolateEnv(t)
	path := writeExport(t, t.TempDir(), "rows.jsonl")
	_, err := run(t, "", "import", path)
	if err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "prune", "--agent", "bot", "--dry-run")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "Found 1 sessions (1 messages)") {
		t.Errorf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "Dry run") {
		t.Errorf("missing dry run notice: %s", out)
	}
}

func TestPruneFilterMatch(t *testing.T) {
	sess := &chat.Session{
		ID:           "s1",
		AgentType:    "AI",
		Platform:     "TELEGRAM",
		LastMessage:  "2024-03-10T23:30:00Z",
		MessageCount: 3,
	}
	tests := []struct {
		name   string
		filter PruneFilter
		loc    *time.Location
		want   bool
	}{
		{"agent case-insensitive", PruneFilter{AgentType: "ai"}, time.UTC, true},
		{"agent mismatch", PruneFilter{AgentType: "BOT"}, time.UTC, false},
		{"platform", PruneFilter{Platform: "telegram"}, time.UTC, true},
		{"max messages at limit", PruneFilter{MaxMessages: ptr(3)}, time.UTC, true},
		{"max messages below", PruneFilter{MaxMessages: ptr(2)}, time.UTC, false},
		{"before next day", PruneFilter{Before: "2024-03-11"}, time.UTC, true},
		{"before same day", PruneFilter{Before: "2024-03-10"}, time.UTC, false},
		// 23:30Z is already March 11 in Tokyo.
		{"before in zone", PruneFilter{Before: "2024-03-11"}, mustLoad(t, "Asia/Tokyo"), false},
		{"all fields", PruneFilter{AgentType: "AI", Platform: "TELEGRAM", MaxMessages: ptr(5), Before: "2025-01-01"}, time.UTC, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(sess, tt.loc); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("loading %s: %v", name, err)
	}
	return loc
}

func TestPrunerEmptyFilterReturnsError(t *testing.T) {
	d := openTestDB(t)

	pruner, _ := newTestPruner(t, d, "")
	err := pruner.Prune(context.Background(), PruneConfig{})
	if err == nil {
		t.Fatal("expected error for empty filter")
	}
	if !strings.Contains(err.Error(), "at least one filter") {
		t.Errorf(
			"error %q should mention filter requirement",
			err,
		)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes lowercase", "y\n", true},
		{"yes full", "yes\n", true},
		{"YES uppercase", "YES\n", true},
		{"no", "n\n", false},
		{"empty", "\n", false},
		{"other text", "maybe\n", false},
		{"y with spaces", "  y  \n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := strings.NewReader(tt.input)
			out := &bytes.Buffer{}
			got := confirm(in, out, "Delete?")
			if got != tt.want {
				t.Errorf("confirm() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "[y/N]") {
				t.Error("prompt missing [y/N]")
			}
		})
	}
}

func TestWriteSummary(t *testing.T) {
	sessions := []*chat.Session{
		{ID: "s1", Platform: "WHATSAPP", MessageCount: 4},
		{ID: "s2", Platform: "WHATSAPP", MessageCount: 2},
		{ID: "s3", MessageCount: 1},
	}

	var buf bytes.Buffer
	writeSummary(&buf, sessions)
	out := buf.String()

	want := `Found 3 sessions (7 messages)

By platform:
  Unknown                                  1
  Whatsapp                                 2
`
	if out != want {
		t.Errorf("writeSummary() mismatch\nwant:\n%s\ngot:\n%s", want, out)
	}
}

func TestPrunerMaxMessages(t *testing.T) {
	d := openTestDB(t)
	seedMessages(t, d,
		chat.Message{ID: 1, SessionID: "oneshot", Timestamp: "2024-01-01T00:00:00Z"},
		chat.Message{ID: 2, SessionID: "multi", Timestamp: "2024-01-01T00:00:00Z"},
		chat.Message{ID: 3, SessionID: "multi", Timestamp: "2024-01-01T00:01:00Z"},
		chat.Message{ID: 4, SessionID: "multi", Timestamp: "2024-01-01T00:02:00Z"},
	)

	pruner, buf := newTestPruner(t, d, "")
	cfg := PruneConfig{
		Filter: PruneFilter{MaxMessages: ptr(1)},
		DryRun: true,
	}

	if err := pruner.Prune(context.Background(), cfg); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Found 1 sessions") {
		t.Errorf(
			"expected 1 match (oneshot only), got: %s", out,
		)
	}
}

func TestPruner_PruneScenarios(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		cfg        PruneConfig
		wantOutput []string
		wantKept   bool
	}{
		{
			name:       "dry run",
			cfg:        PruneConfig{Filter: PruneFilter{Platform: "SMS"}, DryRun: true},
			wantOutput: []string{"Dry run", "Found 1 sessions"},
			wantKept:   true,
		},
		{
			name:       "no matches",
			cfg:        PruneConfig{Filter: PruneFilter{Platform: "WEB"}},
			wantOutput: []string{"No sessions match"},
			wantKept:   true,
		},
		{
			name:       "abort",
			input:      "n\n",
			cfg:        PruneConfig{Filter: PruneFilter{Platform: "SMS"}},
			wantOutput: []string{"Aborted"},
			wantKept:   true,
		},
		{
			name:       "confirm delete",
			input:      "y\n",
			cfg:        PruneConfig{Filter: PruneFilter{Platform: "SMS"}},
			wantOutput: []string{"Deleted 1 sessions (2 messages)"},
			wantKept:   false,
		},
		{
			name:       "yes flag skips prompt",
			cfg:        PruneConfig{Filter: PruneFilter{Before: "2024-06-01"}, Yes: true},
			wantOutput: []string{"Deleted 1 sessions"},
			wantKept:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := openTestDB(t)
			seedMessages(t, d,
				chat.Message{ID: 1, SessionID: "s1", Timestamp: "2024-01-01T00:00:00Z", Platform: "SMS"},
				chat.Message{ID: 2, SessionID: "s1", Timestamp: "2024-01-01T00:05:00Z", Platform: "SMS"},
				chat.Message{ID: 3, SessionID: "keep", Timestamp: "2024-07-01T00:00:00Z", Platform: "WHATSAPP"},
			)

			pruner, buf := newTestPruner(t, d, tt.input)
			if err := pruner.Prune(context.Background(), tt.cfg); err != nil {
				t.Fatalf("Prune: %v", err)
			}

			out := buf.String()
			for _, want := range tt.wantOutput {
				if !strings.Contains(out, want) {
					t.Errorf("expected output containing %q, got: %s", want, out)
				}
			}
			if tt.cfg.Yes && strings.Contains(out, "[y/N]") {
				t.Error("should not prompt when --yes is set")
			}

			kept := sessionExists(t, d, "s1")
			if tt.wantKept && !kept {
				t.Error("session was deleted unexpectedly")
			} else if !tt.wantKept && kept {
				t.Error("session still exists")
			}
			if !sessionExists(t, d, "keep") {
				t.Error("unmatched session was deleted")
			}
		})
	}
}

func newTestPruner(t *testing.T, d *db.DB, input string) (*Pruner, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	p := &Pruner{
		DB:  d,
		Out: &buf,
		In:  strings.NewReader(input),
		Loc: time.UTC,
	}
	return p, &buf
}
