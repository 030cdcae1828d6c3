package sync

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/wesm/chatview/internal/logging"
	"github.com/wesm/chatview/internal/parser"
)

// Watcher watches the import directory and calls onChange with
// the export files that were written, once they have been quiet
// for the debounce period. Paths are delivered sorted, one batch
// per flush.
type Watcher struct {
	onChange func(paths []string)
	watcher  *fsnotify.Watcher
	debounce time.Duration
	pending  map[string]time.Time
	mu       sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
	log      *log.Logger
}

// NewWatcher creates a watcher. Nothing is watched until
// WatchRecursive is called.
func NewWatcher(
	debounce time.Duration, onChange func(paths []string),
) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is nil: %w", os.ErrInvalid)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		onChange: onChange,
		watcher:  fsw,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
		log:      logging.New("watcher"),
	}, nil
}

// WatchRecursive adds root and every directory below it.
// Hidden directories are left alone.
func (w *Watcher) WatchRecursive(root string) (watched int, err error) {
	err = filepath.WalkDir(root,
		func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && isHidden(path) {
				return filepath.SkipDir
			}
			if addErr := w.watcher.Add(path); addErr != nil {
				w.log.Warn("cannot watch", "dir", path, "err", addErr)
				return nil
			}
			watched++
			return nil
		})
	return watched, err
}

// Start begins processing events in a goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop stops the watcher and waits for the loop to exit. It is
// safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watch error", "err", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

// handleEvent records writes to export files and starts
// watching directories created under the root.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if isHidden(event.Name) {
		return
	}
	if event.Op&fsnotify.Create != 0 && w.watchIfDir(event.Name) {
		return
	}
	if _, ok := parser.FormatOf(event.Name); !ok {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = w.now()
	w.mu.Unlock()
}

// watchIfDir adds path when it is a directory and reports
// whether it was one.
func (w *Watcher) watchIfDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if w.watcher != nil {
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("cannot watch", "dir", path, "err", err)
		}
	}
	return true
}

// flush hands quiet files to onChange. A file removed before
// its quiet period ended is dropped.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}

	now := w.now()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) < w.debounce {
			continue
		}
		delete(w.pending, path)
		if _, err := os.Stat(path); err != nil {
			w.log.Debug("export vanished before import", "path", path)
			continue
		}
		ready = append(ready, path)
	}
	w.mu.Unlock()

	if len(ready) > 0 {
		slices.Sort(ready)
		w.log.Debug("exports changed", "count", len(ready))
		w.onChange(ready)
	}
}

func isHidden(path string) bool {
	name := filepath.Base(path)
	return len(name) > 1 && name[0] == '.'
}
