package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/db"
	"github.com/wesm/chatview/internal/timeutil"
)

// PruneFilter selects sessions in the local mirror. Set fields
// are ANDed.
type PruneFilter struct {
	AgentType   string
	Platform    string
	MaxMessages *int
	// Before is a YYYY-MM-DD date; sessions whose last message
	// is earlier match.
	Before string
}

// HasFilters reports whether any field is set.
func (f PruneFilter) HasFilters() bool {
	return f.AgentType != "" || f.Platform != "" ||
		f.MaxMessages != nil || f.Before != ""
}

// Match reports whether s is selected, with Before read in loc.
func (f PruneFilter) Match(s *chat.Session, loc *time.Location) bool {
	if f.AgentType != "" && !strings.EqualFold(s.AgentType, f.AgentType) {
		return false
	}
	if f.Platform != "" && !strings.EqualFold(s.Platform, f.Platform) {
		return false
	}
	if f.MaxMessages != nil && s.MessageCount > *f.MaxMessages {
		return false
	}
	if f.Before != "" {
		cutoff, err := time.ParseInLocation(timeutil.DayLayout, f.Before, loc)
		if err != nil {
			return false
		}
		last, err := timeutil.ParseIn(s.LastMessage, loc)
		if err != nil || !last.Before(cutoff) {
			return false
		}
	}
	return true
}

// PruneConfig holds parsed CLI options for the prune command.
type PruneConfig struct {
	Filter PruneFilter
	DryRun bool
	Yes    bool
}

func newPruneCmd(st *cliState) *cobra.Command {
	var pc PruneConfig
	var maxMessages int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions from the local database",
		Long: `Delete sessions matching every given filter from the
local SQLite mirror. At least one filter is required.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("max-messages") {
				if maxMessages < 0 {
					return fmt.Errorf("max-messages must be >= 0")
				}
				pc.Filter.MaxMessages = &maxMessages
			}
			if pc.Filter.Before != "" {
				if _, err := time.Parse(timeutil.DayLayout, pc.Filter.Before); err != nil {
					return fmt.Errorf("before must be YYYY-MM-DD: %w", err)
				}
			}
			if !pc.Filter.HasFilters() {
				return fmt.Errorf(
					"at least one filter is required\n" +
						"use --agent, --platform, --max-messages or --before",
				)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := st.cfg.Location()
			if err != nil {
				return err
			}
			database, err := db.Open(st.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer database.Close()

			pruner := &Pruner{
				DB:  database,
				Out: cmd.OutOrStdout(),
				In:  cmd.InOrStdin(),
				Loc: loc,
			}
			return pruner.Prune(cmd.Context(), pc)
		},
	}
	f := cmd.Flags()
	f.StringVar(&pc.Filter.AgentType, "agent", "", "Sessions with this agent type")
	f.StringVar(&pc.Filter.Platform, "platform", "", "Sessions on this platform")
	f.IntVar(&maxMessages, "max-messages", 0, "Sessions with at most N messages")
	f.StringVar(&pc.Filter.Before, "before", "", "Sessions whose last message is before this date (YYYY-MM-DD)")
	f.BoolVar(&pc.DryRun, "dry-run", false, "Show what would be pruned without deleting")
	f.BoolVar(&pc.Yes, "yes", false, "Skip confirmation prompt")
	return cmd
}

// Pruner executes the prune workflow against a database.
type Pruner struct {
	DB  *db.DB
	Out io.Writer
	In  io.Reader
	Loc *time.Location
}

// Prune finds matching sessions and deletes them.
func (p *Pruner) Prune(ctx context.Context, cfg PruneConfig) error {
	if !cfg.Filter.HasFilters() {
		return fmt.Errorf(
			"at least one filter is required " +
				"(refusing to prune all sessions)",
		)
	}
	loc := p.Loc
	if loc == nil {
		loc = time.Local
	}

	msgs, err := p.DB.ListMessages(ctx)
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}
	var candidates []*chat.Session
	for _, s := range chat.BuildIndex(msgs).Sessions {
		if cfg.Filter.Match(s, loc) {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) == 0 {
		fmt.Fprintln(p.Out,
			"No sessions match the given filters.")
		return nil
	}

	writeSummary(p.Out, candidates)

	if cfg.DryRun {
		fmt.Fprintln(p.Out, "\nDry run: no changes made.")
		return nil
	}

	if !cfg.Yes {
		msg := fmt.Sprintf(
			"\nDelete %d sessions?", len(candidates),
		)
		if !confirm(p.In, p.Out, msg) {
			fmt.Fprintln(p.Out, "Aborted.")
			return nil
		}
	}

	var rows int64
	for _, s := range candidates {
		n, err := p.DB.DeleteSession(s.ID)
		if err != nil {
			return fmt.Errorf("deleting sessions: %w", err)
		}
		rows += n
	}

	fmt.Fprintf(p.Out,
		"\nDeleted %d sessions (%d messages)\n",
		len(candidates), rows,
	)
	return nil
}

func confirm(r io.Reader, w io.Writer, msg string) bool {
	fmt.Fprintf(w, "%s [y/N] ", msg)
	scanner := bufio.NewScanner(r)
	scanner.Scan()
	ans := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return ans == "y" || ans == "yes"
}

func writeSummary(w io.Writer, sessions []*chat.Session) {
	var totalMessages int
	byPlatform := map[string]int{}
	var platforms []string
	for _, s := range sessions {
		label := chat.FormatPlatformName(s.Platform)
		if byPlatform[label] == 0 {
			platforms = append(platforms, label)
		}
		byPlatform[label]++
		totalMessages += s.MessageCount
	}

	sort.Strings(platforms)

	fmt.Fprintf(w,
		"Found %d sessions (%d messages)\n",
		len(sessions), totalMessages,
	)
	fmt.Fprintln(w, "\nBy platform:")
	for _, p := range platforms {
		fmt.Fprintf(w, "  %-40s %d\n", p, byPlatform[p])
	}
}
