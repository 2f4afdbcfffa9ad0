// Package watch re-runs work when files matching a glob pattern change.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harrison/stager/internal/fileutil"
)

// DefaultDebounceDelay is how long the watcher waits for changes to settle
// before reporting them.
const DefaultDebounceDelay = 200 * time.Millisecond

// Change is a batch of settled filesystem changes.
type Change struct {
	Paths     []string  // Changed paths, sorted and de-duplicated
	Timestamp time.Time // When the batch was flushed
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long changes must be quiet before a Change is sent.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithIgnore drops events for paths the predicate accepts. Ignored
// directories are not watched.
func WithIgnore(ignore func(path string) bool) Option {
	return func(w *Watcher) {
		w.ignore = ignore
	}
}

// Watcher watches the static base directory of a glob pattern recursively
// and reports changes to files the pattern matches.
type Watcher struct {
	watcher *fsnotify.Watcher
	changes chan Change
	errors  chan error
	done    chan struct{}
	pattern string
	rootDir string
	ignore  func(string) bool

	mu            sync.Mutex
	debounceDelay time.Duration
	timer         *time.Timer
	pending       map[string]struct{}
	dirs          map[string]struct{}
	closed        bool
}

// NewWatcher starts watching the files pattern can match. A relative pattern
// is resolved against the working directory.
func NewWatcher(pattern string, opts ...Option) (*Watcher, error) {
	if err := fileutil.ValidatePattern(pattern); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(pattern)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:       fsw,
		changes:       make(chan Change, 1),
		errors:        make(chan error, 10),
		done:          make(chan struct{}),
		pattern:       abs,
		rootDir:       fileutil.BaseDir(abs),
		debounceDelay: DefaultDebounceDelay,
		pending:       make(map[string]struct{}),
		dirs:          make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	if err := w.addRecursive(w.rootDir); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.processEvents()
	return w, nil
}

// addRecursive adds dir and all its subdirectories to the watcher
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) || os.IsPermission(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.isIgnored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}
		w.mu.Lock()
		w.dirs[path] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
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
			w.sendError(err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.isIgnored(path) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				w.sendError(err)
			}
			// Files moved in with the directory produce no events of their own.
			w.queue(path)
			return
		}
	}

	if !event.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		_, wasDir := w.dirs[path]
		delete(w.dirs, path)
		w.mu.Unlock()
		if wasDir {
			w.queue(path)
			return
		}
	}

	if matched, err := fileutil.Match(w.pattern, path); err == nil && matched {
		w.queue(path)
	}
}

// queue records path and restarts the debounce timer.
func (w *Watcher) queue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDelay, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	sort.Strings(paths)
	change := Change{Paths: paths, Timestamp: time.Now()}

	select {
	case w.changes <- change:
	case <-w.done:
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
		// Error channel full, drop the error
	}
}

func (w *Watcher) isIgnored(path string) bool {
	return w.ignore != nil && w.ignore(path)
}

// Changes returns the channel of settled change batches.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Errors returns the channel for receiving watch errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// RootDir returns the directory being watched
func (w *Watcher) RootDir() string {
	return w.rootDir
}

// Pattern returns the absolute pattern changes are matched against
func (w *Watcher) Pattern() string {
	return w.pattern
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	return w.watcher.Close()
}

// Run calls fn for every settled change until ctx is cancelled. Watch
// errors go to onError when it is non-nil. Run closes the watcher.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context, change Change), onError func(error)) error {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case change := <-w.changes:
			fn(ctx, change)
		case err := <-w.errors:
			if onError != nil {
				onError(err)
			}
		}
	}
}
