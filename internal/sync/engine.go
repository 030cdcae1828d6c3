// Package sync keeps per-viewer snapshots of the chat history
// fresh and imports export files into the local mirror.
package sync

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"runtime"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/wesm/chatview/internal/chat"
	"github.com/wesm/chatview/internal/db"
	"github.com/wesm/chatview/internal/logging"
	"github.com/wesm/chatview/internal/parser"
	"github.com/wesm/chatview/internal/source"
)

const (
	batchSize  = 500
	maxWorkers = 8
)

// ErrViewerForgotten is returned by a refresh whose viewer was
// forgotten while the fetch was in flight.
var ErrViewerForgotten = errors.New("viewer signed out during refresh")

// Snapshot is everything derived from one fetch. It is never
// modified after it is published.
type Snapshot struct {
	Messages  []chat.Message
	Index     *chat.Index
	Analytics chat.Analytics
	FetchedAt time.Time
}

func newSnapshot(
	msgs []chat.Message, loc *time.Location, at time.Time,
) *Snapshot {
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return &Snapshot{
		Messages:  msgs,
		Index:     chat.BuildIndex(msgs),
		Analytics: chat.Summarize(msgs, loc),
		FetchedAt: at,
	}
}

type viewerState struct {
	snap    *Snapshot
	stale   bool
	running bool
	lastErr error
}

// EventKind names an engine notification.
type EventKind string

const (
	// EventRefreshed follows a successful refresh of Viewer.
	EventRefreshed EventKind = "refreshed"
	// EventStale follows an import; every snapshot is stale and
	// Viewer is empty.
	EventStale EventKind = "stale"
)

// Event is delivered to subscribers.
type Event struct {
	Kind   EventKind `json:"kind"`
	Viewer string    `json:"-"`
}

// Engine owns the viewer snapshots and the import pipeline.
type Engine struct {
	source source.Source
	db     *db.DB
	loc    *time.Location
	log    *log.Logger
	now    func() time.Time

	group   singleflight.Group
	mu      gosync.RWMutex
	viewers map[string]*viewerState

	subs subscribers

	// importMu serializes import runs.
	importMu        gosync.Mutex
	lastImport      time.Time
	lastImportStats ImportStats
	// imported maps a file path to the mtime it had when its
	// rows were last written (or when it last failed), so
	// unchanged files are not parsed again.
	importedMu gosync.RWMutex
	imported   map[string]int64
}

type subscribers struct {
	mu    gosync.Mutex
	next  int
	chans map[int]chan Event
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the clock that stamps refreshes and
// imports.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine that fetches from src and bucket
// days in loc. d may be nil when there is no local mirror, in
// which case imports fail.
func NewEngine(
	src source.Source, d *db.DB, loc *time.Location,
	opts ...EngineOption,
) *Engine {
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		source:   src,
		db:       d,
		loc:      loc,
		log:      logging.New("sync"),
		now:      time.Now,
		viewers:  make(map[string]*viewerState),
		imported: make(map[string]int64),
	}
	e.subs.chans = make(map[int]chan Event)
	for _, opt := range opts {
		opt(e)
	}
	if d != nil {
		if loaded, err := d.LoadImportedFiles(); err == nil {
			e.imported = loaded
		} else {
			e.log.Warn("loading import cache", "err", err)
		}
	}
	return e
}

// Location returns the default zone for day bucketing.
func (e *Engine) Location() *time.Location {
	return e.loc
}

func (e *Engine) state(viewer string) *viewerState {
	st, ok := e.viewers[viewer]
	if !ok {
		st = &viewerState{}
		e.viewers[viewer] = st
	}
	return st
}

// Snapshot returns the viewer's current snapshot, refreshing
// first when there is none yet or it was marked stale.
//
// When that refresh fails the previous snapshot (possibly nil)
// is returned together with the error.
func (e *Engine) Snapshot(
	ctx context.Context, viewer, token string,
) (*Snapshot, error) {
	e.mu.RLock()
	st := e.viewers[viewer]
	var snap *Snapshot
	fresh := false
	if st != nil {
		snap = st.snap
		fresh = snap != nil && !st.stale
	}
	e.mu.RUnlock()
	if fresh {
		return snap, nil
	}

	next, err := e.Refresh(ctx, viewer, token)
	if err != nil {
		return snap, err
	}
	return next, nil
}

// Current returns the viewer's snapshot without fetching.
func (e *Engine) Current(viewer string) (*Snapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.viewers[viewer]
	if st == nil || st.snap == nil {
		return nil, false
	}
	return st.snap, true
}

// Refresh fetches the viewer's history and publishes a new
// snapshot. A call made while a refresh for the same viewer is
// in flight waits for that refresh instead of starting another.
// The shared fetch is not cancelled when one waiting caller
// gives up; ctx only bounds how long this caller waits.
//
// On failure the previous snapshot stays in place and the error
// is recorded for Status.
func (e *Engine) Refresh(
	ctx context.Context, viewer, token string,
) (*Snapshot, error) {
	ch := e.group.DoChan(viewer, func() (any, error) {
		return e.refresh(context.WithoutCancel(ctx), viewer, token)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (e *Engine) refresh(
	ctx context.Context, viewer, token string,
) (*Snapshot, error) {
	e.mu.Lock()
	st := e.state(viewer)
	st.running = true
	e.mu.Unlock()

	start := e.now()
	msgs, err := e.source.FetchMessages(ctx, token)

	e.mu.Lock()
	st.running = false
	if e.viewers[viewer] != st {
		e.mu.Unlock()
		e.log.Debug("dropping refresh for forgotten viewer")
		return nil, ErrViewerForgotten
	}
	if err != nil {
		st.lastErr = err
		e.mu.Unlock()
		e.log.Warn("refresh failed", "err", err)
		return nil, fmt.Errorf("fetching chat history: %w", err)
	}
	snap := newSnapshot(msgs, e.loc, e.now())
	st.snap = snap
	st.stale = false
	st.lastErr = nil
	e.mu.Unlock()

	e.log.Info("refreshed",
		"messages", len(snap.Messages),
		"sessions", snap.Index.Len(),
		"took", e.now().Sub(start).Round(time.Millisecond),
	)
	e.publish(Event{Kind: EventRefreshed, Viewer: viewer})
	return snap, nil
}

// Status reports the viewer's refresh state.
func (e *Engine) Status(viewer string) Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.viewers[viewer]
	if st == nil {
		return Status{Phase: PhaseIdle}
	}
	out := Status{Stale: st.stale}
	switch {
	case st.running:
		out.Phase = PhaseRefreshing
	case st.lastErr != nil:
		out.Phase = PhaseFailed
	case st.snap != nil:
		out.Phase = PhaseDone
	default:
		out.Phase = PhaseIdle
	}
	if st.lastErr != nil {
		out.LastError = errorMessage(st.lastErr)
	}
	if st.snap != nil {
		out.LastRefresh = st.snap.FetchedAt
		out.Messages = len(st.snap.Messages)
		out.Sessions = st.snap.Index.Len()
	}
	return out
}

// errorMessage is the single user-visible message for a failed
// refresh.
func errorMessage(err error) string {
	if errors.Is(err, source.ErrUnauthorized) {
		return "Your session has expired. Please sign in again."
	}
	return "Failed to load chat data: " + err.Error()
}

// MarkAllStale makes the next read of every viewer refetch.
func (e *Engine) MarkAllStale() {
	e.mu.Lock()
	for _, st := range e.viewers {
		st.stale = true
	}
	e.mu.Unlock()
	e.publish(Event{Kind: EventStale})
}

// Forget drops the viewer's snapshot, e.g. on sign-out. A refresh
// already in flight for the viewer is discarded when it lands.
func (e *Engine) Forget(viewer string) {
	e.mu.Lock()
	delete(e.viewers, viewer)
	e.mu.Unlock()
}

// Subscribe returns a channel of engine events and a function
// that unsubscribes. Slow subscribers miss events rather than
// block the engine.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	e.subs.mu.Lock()
	id := e.subs.next
	e.subs.next++
	e.subs.chans[id] = ch
	e.subs.mu.Unlock()

	var once gosync.Once
	return ch, func() {
		once.Do(func() {
			e.subs.mu.Lock()
			delete(e.subs.chans, id)
			e.subs.mu.Unlock()
		})
	}
}

func (e *Engine) publish(ev Event) {
	e.subs.mu.Lock()
	defer e.subs.mu.Unlock()
	for _, ch := range e.subs.chans {
		select {
		case ch <- ev:
		default:
		}
	}
}

// LastImport returns when the last import run finished.
func (e *Engine) LastImport() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastImport
}

// LastImportStats returns the stats of the last import run.
func (e *Engine) LastImportStats() ImportStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastImportStats
}

// ImportDir imports every export file below root.
func (e *Engine) ImportDir(
	root string, onProgress ImportFunc,
) (ImportStats, error) {
	files, err := parser.Discover(root)
	if err != nil {
		return ImportStats{}, err
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return e.ImportPaths(paths, onProgress), nil
}

// ImportPaths parses the given export files and upserts their
// rows into the local mirror. Files whose mtime matches the
// last import are skipped. When anything was written, every
// viewer snapshot is marked stale.
func (e *Engine) ImportPaths(
	paths []string, onProgress ImportFunc,
) ImportStats {
	e.importMu.Lock()
	defer e.importMu.Unlock()

	stats := ImportStats{Files: len(paths)}
	if e.db == nil {
		for _, p := range paths {
			stats.RecordFailed(p + ": no local database")
		}
		return stats
	}
	if len(paths) == 0 {
		return stats
	}

	results := e.startWorkers(paths)
	stats = e.collectAndWrite(results, stats, onProgress)
	e.persistImportCache()

	e.mu.Lock()
	e.lastImport = e.now()
	e.lastImportStats = stats
	e.mu.Unlock()

	if stats.Changed() {
		e.log.Info("imported",
			"files", stats.Imported, "rows", stats.Rows,
			"skipped", stats.Skipped, "failed", stats.Failed,
		)
		e.MarkAllStale()
	}
	return stats
}

type importResult struct {
	path    string
	mtime   int64
	msgs    []chat.Message
	invalid int
	skip    bool
	err     error
}

// startWorkers parses files on a bounded worker pool.
func (e *Engine) startWorkers(paths []string) <-chan importResult {
	workers := min(max(runtime.NumCPU(), 2), maxWorkers)

	jobs := make(chan string, len(paths))
	results := make(chan importResult, len(paths))

	for range workers {
		go func() {
			for path := range jobs {
				results <- e.processFile(path)
			}
		}()
	}
	for _, p := range paths {
		jobs <- p
	}
	close(jobs)
	return results
}

func (e *Engine) processFile(path string) importResult {
	info, err := os.Stat(path)
	if err != nil {
		return importResult{path: path, err: fmt.Errorf("stat %s: %w", path, err)}
	}
	mtime := info.ModTime().UnixNano()

	e.importedMu.RLock()
	cached, ok := e.imported[path]
	e.importedMu.RUnlock()
	if ok && cached == mtime {
		return importResult{path: path, mtime: mtime, skip: true}
	}

	res, err := parser.ParseFile(path)
	if err != nil {
		return importResult{path: path, mtime: mtime, err: err}
	}
	return importResult{
		path:    path,
		mtime:   mtime,
		msgs:    res.Messages,
		invalid: res.Invalid + res.Oversized,
	}
}

// collectAndWrite drains results and writes rows in batches.
func (e *Engine) collectAndWrite(
	results <-chan importResult, stats ImportStats,
	onProgress ImportFunc,
) ImportStats {
	var pending []chat.Message
	var pendingFiles []importResult

	flush := func() {
		if len(pendingFiles) == 0 {
			return
		}
		n, err := e.db.UpsertMessages(pending)
		if err != nil {
			for _, r := range pendingFiles {
				stats.RecordFailed(fmt.Sprintf("%s: %v", r.path, err))
			}
			e.log.Error("writing rows", "err", err)
		} else {
			for _, r := range pendingFiles {
				stats.RecordImported(0)
				e.cacheImported(r.path, r.mtime)
			}
			stats.Rows += n
		}
		pending = pending[:0]
		pendingFiles = pendingFiles[:0]
	}

	for range stats.Files {
		r := <-results
		switch {
		case r.err != nil:
			if r.mtime != 0 {
				e.cacheImported(r.path, r.mtime)
			}
			stats.RecordFailed(r.err.Error())
			e.log.Warn("import failed", "err", r.err)
		case r.skip:
			stats.RecordSkip()
		default:
			stats.Invalid += r.invalid
			pending = append(pending, r.msgs...)
			pendingFiles = append(pendingFiles, r)
			if len(pending) >= batchSize {
				flush()
			}
		}
		if onProgress != nil {
			onProgress(stats)
		}
	}
	flush()
	return stats
}

func (e *Engine) cacheImported(path string, mtime int64) {
	e.importedMu.Lock()
	e.imported[path] = mtime
	e.importedMu.Unlock()
}

// persistImportCache writes the mtime cache so unchanged files
// are skipped across restarts.
func (e *Engine) persistImportCache() {
	e.importedMu.RLock()
	snapshot := make(map[string]int64, len(e.imported))
	maps.Copy(snapshot, e.imported)
	e.importedMu.RUnlock()

	if err := e.db.ReplaceImportedFiles(snapshot); err != nil {
		e.log.Error("persisting import cache", "err", err)
	}
}
