package chat

import (
	"fmt"
	"math"
)

// Donut palettes used by the analytics view.
var (
	AgentPalette    = []string{"#6366f1", "#8b5cf6", "#a855f7", "#d946ef"}
	PlatformPalette = []string{"#22c55e", "#14b8a6", "#06b6d4", "#0ea5e9"}
)

// DonutSegment is one arc of a donut chart. The chart is drawn
// on a circle of circumference 100, so percentages map directly
// to stroke lengths.
type DonutSegment struct {
	Label      string  `json:"label"`
	Value      int     `json:"value"`
	Percent    float64 `json:"percent"`
	DashArray  string  `json:"dash_array"`
	DashOffset float64 `json:"dash_offset"`
	Color      string  `json:"color"`
}

// Donut is the geometry of a donut chart. NoData is set when
// the distribution is empty; Segments is then empty.
type Donut struct {
	NoData   bool           `json:"no_data"`
	Total    int            `json:"total"`
	Segments []DonutSegment `json:"segments"`
}

// NewDonut lays out d as consecutive segments starting at the
// chart origin, in d's insertion order. Colors cycle through
// palette.
func NewDonut(d *Distribution, palette []string) Donut {
	total := d.Total()
	if total == 0 {
		return Donut{NoData: true, Segments: []DonutSegment{}}
	}

	out := Donut{
		Total:    total,
		Segments: make([]DonutSegment, 0, d.Len()),
	}
	offset := 0.0
	for i, b := range d.Buckets() {
		pct := 100 * float64(b.Count) / float64(total)
		seg := DonutSegment{
			Label:      b.Label,
			Value:      b.Count,
			Percent:    pct,
			DashArray:  fmt.Sprintf("%g %g", pct, 100-pct),
			DashOffset: -offset,
		}
		if len(palette) > 0 {
			seg.Color = palette[i%len(palette)]
		}
		out.Segments = append(out.Segments, seg)
		offset += pct
	}
	return out
}

// PercentLabel renders a segment percentage with one decimal.
func (s DonutSegment) PercentLabel() string {
	return fmt.Sprintf("%.1f%%", s.Percent)
}

// Bar is one day of the bar chart.
type Bar struct {
	Date   string  `json:"date"`
	Count  int     `json:"count"`
	Height float64 `json:"height"`
}

// BarChart is the geometry of the daily bar chart.
type BarChart struct {
	NoData    bool    `json:"no_data"`
	MaxCount  int     `json:"max_count"`
	MaxHeight float64 `json:"max_height"`
	Bars      []Bar   `json:"bars"`
}

// NewBarChart scales each day's count against the series
// maximum (floored at 1) so the tallest bar is maxHeight. An
// empty or all-zero series has NoData set.
func NewBarChart(series []DayCount, maxHeight float64) BarChart {
	peak := 0
	for _, d := range series {
		peak = max(peak, d.Count)
	}
	if peak == 0 {
		return BarChart{NoData: true, MaxHeight: maxHeight, Bars: []Bar{}}
	}

	chart := BarChart{
		MaxCount:  peak,
		MaxHeight: maxHeight,
		Bars:      make([]Bar, len(series)),
	}
	denom := float64(max(peak, 1))
	for i, d := range series {
		chart.Bars[i] = Bar{
			Date:   d.Date,
			Count:  d.Count,
			Height: math.Round(float64(d.Count)/denom*maxHeight*100) / 100,
		}
	}
	return chart
}
