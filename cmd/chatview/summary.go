package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wesm/chatview/internal/auth"
	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/sync"
	"github.com/wesm/chatview/internal/timeutil"
)

// barWidth is the width of the longest terminal bar.
const barWidth = 24

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1)

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func badge(label string, s chat.Style) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.Terminal)).
		Bold(true).
		Render(label)
}

// summaryOptions selects what the summary shows.
type summaryOptions struct {
	Filter chat.Filter
	Limit  int
	Now    time.Time
	Loc    *time.Location
	Layout string
}

func newSummaryCmd(st *cliState) *cobra.Command {
	var opts summaryOptions
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print an overview of your chat history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(st.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := loadSignedIn(cmd, a)
			if err != nil {
				return err
			}
			opts.Now = time.Now()
			opts.Loc = a.loc
			opts.Layout = st.cfg.DateLayout
			renderSummary(cmd.OutOrStdout(), snap, opts)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Filter.AgentType, "agent", "", "Only sessions with this agent type")
	cmd.Flags().StringVar(&opts.Filter.Platform, "platform", "", "Only sessions on this platform")
	cmd.Flags().StringVarP(&opts.Filter.Query, "query", "q", "", "Only sessions whose id contains this text")
	cmd.Flags().IntVar(&opts.Limit, "limit", chat.RecentLimit, "Number of sessions to list")
	return cmd
}

// loadSignedIn fetches the signed-in user's history through a
// sync engine.
func loadSignedIn(cmd *cobra.Command, a *app) (*sync.Snapshot, error) {
	ctx := cmd.Context()
	session, err := auth.LoadSession(ctx, a.cfg.CredentialsPath(), a.provider)
	if err != nil {
		return nil, err
	}
	u, ok := session.Current()
	token, err := session.AccessToken()
	if !ok || err != nil {
		return nil, errors.New("not signed in; run chatview login first")
	}
	snap, err := a.newEngine().Snapshot(ctx, u.ID, token)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func renderSummary(w io.Writer, snap *sync.Snapshot, opts summaryOptions) {
	stats := chat.ComputeStats(snap.Messages, snap.Index, opts.Now, opts.Loc)
	fmt.Fprintln(w, headerStyle.Render("Chat history"))
	fmt.Fprintf(w, "%s messages · %s sessions · %s platforms · %s today\n",
		countStyle.Render(fmt.Sprint(stats.TotalMessages)),
		countStyle.Render(fmt.Sprint(stats.TotalSessions)),
		countStyle.Render(fmt.Sprint(stats.TotalPlatforms)),
		countStyle.Render(fmt.Sprint(stats.TodayMessages)),
	)

	sessions := chat.FilterSessions(snap.Index.Sessions, opts.Filter)
	fmt.Fprintln(w, sectionStyle.Render(
		fmt.Sprintf("Recent sessions (%d matching)", len(sessions))))
	if len(sessions) == 0 {
		fmt.Fprintln(w, "  No sessions found.")
	}
	if opts.Limit > 0 && len(sessions) > opts.Limit {
		sessions = sessions[:opts.Limit]
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  %s  %s  %s  %s\n",
			idStyle.Render(chat.ShortID(s.ID, 8)),
			badge(chat.FormatAgentType(s.AgentType), chat.AgentStyle(s.AgentType)),
			badge(chat.FormatPlatformName(s.Platform), chat.PlatformStyle(s.Platform)),
			chat.MessageCountLabel(s.MessageCount),
			dateStyle.Render(timeutil.RelativeString(
				s.LastMessage, opts.Now, opts.Loc, opts.Layout)),
		)
		if p := chat.Preview(s); p != "" {
			fmt.Fprintf(w, "      %s\n", p)
		}
	}

	a := chat.Summarize(snap.Messages, opts.Loc)
	renderDistribution(w, "Agent types", a.AgentTypes, chat.AgentStyle)
	renderDistribution(w, "Platforms", a.Platforms, func(label string) chat.Style {
		if label == chat.UnknownLabel {
			return chat.PlatformStyle("")
		}
		return chat.PlatformStyle(label)
	})

	fmt.Fprintln(w, sectionStyle.Render("Messages per day"))
	chart := chat.NewBarChart(a.Timeline, barWidth)
	if chart.NoData {
		fmt.Fprintln(w, "  No data")
		return
	}
	for _, b := range chart.Bars {
		fmt.Fprintf(w, "  %s  %s %d\n", b.Date, bar(b.Height), b.Count)
	}
}

func renderDistribution(
	w io.Writer, title string, d *chat.Distribution,
	style func(string) chat.Style,
) {
	fmt.Fprintln(w, sectionStyle.Render(title))
	donut := chat.NewDonut(d, nil)
	if donut.NoData {
		fmt.Fprintln(w, "  No data")
		return
	}
	for _, seg := range donut.Segments {
		fmt.Fprintf(w, "  %-10s %s %d (%s)\n",
			seg.Label,
			lipgloss.NewStyle().
				Foreground(lipgloss.Color(style(seg.Label).Terminal)).
				Render(bar(seg.Percent*barWidth/100)),
			seg.Value, seg.PercentLabel(),
		)
	}
}

func bar(width float64) string {
	n := int(width + 0.5)
	if n < 1 {
		n = 1
	}
	return strings.Repeat("█", n)
}
