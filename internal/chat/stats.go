package chat

import (
	"time"

	"github.com/wesm/chatview/internal/timeutil"
)

// Stats are the overview header numbers.
type Stats struct {
	TotalMessages  int `json:"total_messages" yaml:"total_messages"`
	TotalSessions  int `json:"total_sessions" yaml:"total_sessions"`
	TotalPlatforms int `json:"total_platforms" yaml:"total_platforms"`
	TodayMessages  int `json:"today_messages" yaml:"today_messages"`
}

// ComputeStats derives the overview numbers. TotalPlatforms is
// the size of the platform option set, so null platforms do not
// count. TodayMessages counts rows whose timestamp falls on
// now's calendar day in loc.
func ComputeStats(
	msgs []Message, idx *Index, now time.Time, loc *time.Location,
) Stats {
	if loc == nil {
		loc = time.Local
	}
	st := Stats{
		TotalMessages:  len(msgs),
		TotalSessions:  idx.Len(),
		TotalPlatforms: len(idx.Platforms),
	}
	today := now.In(loc).Format(timeutil.DayLayout)
	for _, m := range msgs {
		if day, ok := timeutil.LocalDay(m.Timestamp, loc); ok && day == today {
			st.TodayMessages++
		}
	}
	return st
}
