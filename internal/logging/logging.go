// Package logging configures the process-wide structured logger.
// Components take a prefixed child via New.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var root = newRoot(os.Stderr)

func newRoot(w io.Writer) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	l.SetLevel(log.InfoLevel)
	return l
}

// ParseLevel maps a level name to a log.Level. Empty means info.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Configure sets the root level and, when file is non-empty,
// appends log output to it. The returned closer releases the
// file; it is a no-op for stderr.
func Configure(level, file string) (io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nopCloser{}, err
	}
	if file == "" {
		root = newRoot(os.Stderr)
		root.SetLevel(lvl)
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(
		file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600,
	)
	if err != nil {
		return nopCloser{}, fmt.Errorf("opening log file: %w", err)
	}
	root = newRoot(f)
	root.SetLevel(lvl)
	return f, nil
}

// SetOutput redirects the root logger, keeping its level.
// Tests use it to capture output.
func SetOutput(w io.Writer) {
	lvl := root.GetLevel()
	root = newRoot(w)
	root.SetLevel(lvl)
}

// Default returns the root logger.
func Default() *log.Logger {
	return root
}

// New returns a child of the root logger tagged with prefix.
// Children created before a later Configure keep the old
// destination, so create them after startup configuration.
func New(prefix string) *log.Logger {
	return root.WithPrefix(prefix)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
