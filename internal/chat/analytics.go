package chat

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"

	"github.com/wesm/chatview/internal/timeutil"
)

// TimelineDays is how many distinct days the timeline keeps.
const TimelineDays = 14

// Bucket is one label's count in a Distribution.
type Bucket struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// Distribution is a label -> count mapping that remembers the
// order in which labels were first counted. Chart segments are
// laid out in that order.
type Distribution struct {
	buckets []Bucket
	pos     map[string]int
}

func newDistribution() *Distribution {
	return &Distribution{pos: make(map[string]int)}
}

func (d *Distribution) add(label string) {
	if i, ok := d.pos[label]; ok {
		d.buckets[i].Count++
		return
	}
	d.pos[label] = len(d.buckets)
	d.buckets = append(d.buckets, Bucket{Label: label, Count: 1})
}

// Buckets returns a copy of the buckets in insertion order.
func (d *Distribution) Buckets() []Bucket {
	if d == nil {
		return []Bucket{}
	}
	return append([]Bucket{}, d.buckets...)
}

// Count returns the count for label, or 0.
func (d *Distribution) Count(label string) int {
	if d == nil {
		return 0
	}
	if i, ok := d.pos[label]; ok {
		return d.buckets[i].Count
	}
	return 0
}

// Len returns the number of distinct labels.
func (d *Distribution) Len() int {
	if d == nil {
		return 0
	}
	return len(d.buckets)
}

// Total returns the sum of all counts.
func (d *Distribution) Total() int {
	if d == nil {
		return 0
	}
	total := 0
	for _, b := range d.buckets {
		total += b.Count
	}
	return total
}

// MarshalJSON encodes the buckets as an ordered array.
func (d *Distribution) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Buckets())
}

// AgentTypeDistribution counts messages per agent type, with
// missing values under UnknownLabel.
func AgentTypeDistribution(msgs []Message) *Distribution {
	d := newDistribution()
	for _, m := range msgs {
		d.add(m.AgentLabel())
	}
	return d
}

// PlatformDistribution counts messages per platform, with
// missing values under UnknownLabel.
func PlatformDistribution(msgs []Message) *Distribution {
	d := newDistribution()
	for _, m := range msgs {
		d.add(m.PlatformLabel())
	}
	return d
}

// DayCount is one calendar day of the timeline.
type DayCount struct {
	Date  string `json:"date" yaml:"date"` // YYYY-MM-DD in the viewer's zone
	Count int    `json:"count" yaml:"count"`
}

// DailyTimeline counts messages per calendar day in loc and
// returns the TimelineDays most recent days that have any
// messages, oldest first. Days without messages do not appear.
// Rows whose timestamp does not parse are left out.
func DailyTimeline(msgs []Message, loc *time.Location) []DayCount {
	if loc == nil {
		loc = time.Local
	}
	days := make(map[string]int)
	for _, m := range msgs {
		day, ok := timeutil.LocalDay(m.Timestamp, loc)
		if !ok {
			continue
		}
		days[day]++
	}

	series := make([]DayCount, 0, len(days))
	for day, n := range days {
		series = append(series, DayCount{Date: day, Count: n})
	}
	// YYYY-MM-DD sorts lexically in calendar order.
	slices.SortFunc(series, func(a, b DayCount) int {
		return cmp.Compare(a.Date, b.Date)
	})
	if len(series) > TimelineDays {
		series = series[len(series)-TimelineDays:]
	}
	return series
}

// Analytics bundles the three analytics artifacts.
type Analytics struct {
	AgentTypes *Distribution `json:"agent_types" yaml:"agent_types"`
	Platforms  *Distribution `json:"platforms" yaml:"platforms"`
	Timeline   []DayCount    `json:"timeline" yaml:"timeline"`
}

// Summarize computes all analytics for msgs, bucketing days
// in loc.
func Summarize(msgs []Message, loc *time.Location) Analytics {
	return Analytics{
		AgentTypes: AgentTypeDistribution(msgs),
		Platforms:  PlatformDistribution(msgs),
		Timeline:   DailyTimeline(msgs, loc),
	}
}
