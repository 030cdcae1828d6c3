package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/db"
)

type sessionSpec struct {
	suffix   string
	platform string
	// agents cycles over the session's messages.
	agents   []string
	msgCount int
	// daysAgo places the last message relative to the base time.
	daysAgo int
}

var specs = []sessionSpec{
	{"whatsapp-small-2", "WHATSAPP", []string{"HUMAN", "AI"}, 2, 0},
	{"telegram-small-5", "TELEGRAM", []string{"HUMAN", "AI"}, 5, 0},
	{"mixed-content-7", "", nil, 7, 1},
	{"sms-bot-8", "SMS", []string{"BOT", "HUMAN"}, 8, 2},
	{"web-medium-100", "WEB", []string{"HUMAN", "AI", "AI"}, 100, 4},
	{"messenger-large-200", "MESSENGER", []string{"HUMAN", "AI"}, 200, 9},
	{"whatsapp-large-1500", "WHATSAPP", []string{"HUMAN", "AI", "BOT"}, 1500, 20},
}

func main() {
	out := flag.String("out", "", "output database path")
	jsonl := flag.String("jsonl", "", "also write the rows as a JSONL export to this path")
	flag.Parse()
	if *out == "" {
		fmt.Fprintln(os.Stderr, "usage: testfixture -out <path> [-jsonl <path>]")
		os.Exit(1)
	}

	if err := os.Remove(*out); err != nil &&
		!errors.Is(err, os.ErrNotExist) {
		log.Fatalf("removing existing db: %v", err)
	}

	database, err := db.Open(*out)
	if err != nil {
		log.Fatalf("opening db: %v", err)
	}
	defer database.Close()

	base := time.Now().UTC().Truncate(time.Minute)
	var all []chat.Message
	nextID := int64(1)
	for _, spec := range specs {
		msgs := generateSession(spec, base, &nextID)
		if _, err := database.UpsertMessages(msgs); err != nil {
			log.Fatalf("creating fixture %s: %v", spec.suffix, err)
		}
		all = append(all, msgs...)
		fmt.Printf(
			"  %s (%s): %d messages\n",
			msgs[0].SessionID, spec.suffix, len(msgs),
		)
	}

	if *jsonl != "" {
		if err := writeJSONL(*jsonl, all); err != nil {
			log.Fatalf("writing jsonl: %v", err)
		}
		fmt.Printf("JSONL export written to %s\n", *jsonl)
	}
	fmt.Printf("Fixture DB written to %s\n", *out)
}

// sessionID derives a stable id from the fixture name.
func sessionID(suffix string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL,
		[]byte("chatview-fixture:"+suffix)).String()
}

func generateSession(
	spec sessionSpec, base time.Time, nextID *int64,
) []chat.Message {
	id := sessionID(spec.suffix)
	end := base.Add(-time.Duration(spec.daysAgo) * 24 * time.Hour)
	start := end.Add(-time.Duration(spec.msgCount-1) * time.Minute)

	if spec.agents == nil {
		return generateMixedContent(id, start, nextID)
	}

	msgs := make([]chat.Message, 0, spec.msgCount)
	for i := range spec.msgCount {
		agent := spec.agents[i%len(spec.agents)]
		msgs = append(msgs, chat.Message{
			ID:        *nextID,
			SessionID: id,
			Message:   generateContent(agent, i, spec.msgCount),
			Timestamp: start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			AgentType: agent,
			Platform:  spec.platform,
		})
		*nextID++
	}
	return msgs
}

// generateMixedContent covers the edge cases of the dashboard:
// null agent and platform, empty and very long text, markup.
func generateMixedContent(
	id string, start time.Time, nextID *int64,
) []chat.Message {
	type row struct {
		agent    string
		platform string
		text     string
	}
	rows := []row{
		{"HUMAN", "", "Hi, is anyone there?"},
		{"", "", ""},
		{"AI", "WEB", "# Not a heading\nUse `chatview import` to load data."},
		{"HUMAN", "WEB", "<script>alert('x')</script>"},
		{"AI", "WEB", strings.Repeat("A very long answer. ", 20)},
		{"OPERATOR", "PIGEON", "Unknown agent and platform"},
		{"HUMAN", "WEB", "Thanks"},
	}

	msgs := make([]chat.Message, 0, len(rows))
	for i, r := range rows {
		msgs = append(msgs, chat.Message{
			ID:        *nextID,
			SessionID: id,
			Message:   r.text,
			Timestamp: start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			AgentType: r.agent,
			Platform:  r.platform,
		})
		*nextID++
	}
	return msgs
}

func generateContent(agent string, idx, total int) string {
	switch agent {
	case "HUMAN":
		return fmt.Sprintf(
			"Customer message %d of %d. "+
				"I have a question about my order.",
			idx, total,
		)
	case "BOT":
		return fmt.Sprintf("Automated notice %d of %d.", idx, total)
	default:
		return fmt.Sprintf(
			"Assistant response %d of %d. "+
				"Thanks for reaching out, here is what I found "+
				"about your order and the next steps.",
			idx, total,
		)
	}
}

func writeJSONL(path string, msgs []chat.Message) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}
