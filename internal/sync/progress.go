package sync

import "time"

// Phase describes what a viewer's refresh is doing.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRefreshing Phase = "refreshing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Status is the refresh state of one viewer, as reported by
// the refresh status endpoint.
type Status struct {
	Phase Phase `json:"phase"`
	// LastRefresh is when the current snapshot was fetched; zero
	// when the viewer has never loaded successfully.
	LastRefresh time.Time `json:"-"`
	// LastError is the message of the most recent failed
	// refresh, cleared by the next success.
	LastError string `json:"last_error,omitempty"`
	Stale     bool   `json:"stale"`
	Messages  int    `json:"messages"`
	Sessions  int    `json:"sessions"`
}

// ImportStats summarizes one import run.
//
// Files counts every path handed to the run. Imported counts
// files whose rows were written, Skipped files unchanged since
// the last import, Failed files that could not be read or
// parsed. Rows is the number of rows upserted and Invalid the
// number of rows the parser rejected.
type ImportStats struct {
	Files    int      `json:"files"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Rows     int      `json:"rows"`
	Invalid  int      `json:"invalid"`
	Warnings []string `json:"warnings,omitempty"`
}

// RecordSkip increments the skipped file counter.
func (s *ImportStats) RecordSkip() {
	s.Skipped++
}

// RecordImported counts one imported file carrying n rows.
func (s *ImportStats) RecordImported(n int) {
	s.Imported++
	s.Rows += n
}

// RecordFailed counts a failed file and keeps its message.
func (s *ImportStats) RecordFailed(msg string) {
	s.Failed++
	s.Warnings = append(s.Warnings, msg)
}

// Changed reports whether the run wrote anything.
func (s ImportStats) Changed() bool {
	return s.Rows > 0
}

// Percent returns how much of the run is done (0-100).
func (s ImportStats) Percent() float64 {
	if s.Files == 0 {
		return 0
	}
	done := s.Imported + s.Skipped + s.Failed
	return float64(done) / float64(s.Files) * 100
}

// ImportFunc is called after each file of an import run.
type ImportFunc func(ImportStats)
