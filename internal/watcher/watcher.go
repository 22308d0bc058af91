// Package watcher turns filesystem notifications into debounced
// batches of index-relevant file events.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codescope/codescope/internal/gitignore"
)

// Op classifies a file event.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one filesystem change, path relative to the watch root.
type FileEvent struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// DefaultDebounce is the event coalescing window.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce       time.Duration
	IgnorePatterns []string
	Logger         *slog.Logger
}

// Watcher watches a directory tree with fsnotify and emits debounced
// event batches. Directories created while watching are picked up.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	ignore    *gitignore.Matcher
	root      string
	errs      chan error
	log       *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a watcher rooted at root.
func New(root string, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}

	ignore, err := gitignore.LoadTree(absRoot)
	if err != nil {
		log.Warn("could not load gitignore rules for watch", "error", err)
		ignore = gitignore.New()
	}
	for _, p := range opts.IgnorePatterns {
		ignore.Add(p)
	}
	ignore.Add(".codescope/")

	return &Watcher{
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce, log),
		ignore:    ignore,
		root:      absRoot,
		errs:      make(chan error, 8),
		log:       log,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins watching and blocks until ctx is cancelled or Stop is
// called. Event batches arrive on Events while running.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watch directory tree: %w", err)
	}
	w.log.Info("watching for changes", "root", w.root, "debounce", w.debouncer.window)

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Events returns the debounced batch channel.
func (w *Watcher) Events() <-chan []FileEvent { return w.debouncer.Output() }

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Stop stops watching and closes the event channel.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.fsw.Close()
		w.debouncer.Stop()
	})
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)

	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	if w.ignore.Match(rel, isDir) {
		return
	}

	// New directories must be added to the watch set themselves.
	if isDir {
		if ev.Op&fsnotify.Create != 0 {
			if err := w.addRecursive(ev.Name); err != nil {
				w.log.Warn("could not watch new directory", "path", rel, "error", err)
			}
		}
		return
	}

	now := time.Now()
	switch {
	case ev.Op&fsnotify.Create != 0:
		w.debouncer.Add(FileEvent{Path: rel, Op: OpCreate, Timestamp: now})
	case ev.Op&fsnotify.Write != 0:
		w.debouncer.Add(FileEvent{Path: rel, Op: OpModify, Timestamp: now})
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.debouncer.Add(FileEvent{Path: rel, Op: OpDelete, Timestamp: now})
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr == nil && rel != "." && w.ignore.Match(filepath.ToSlash(rel), true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Warn("could not watch directory", "path", path, "error", err)
		}
		return nil
	})
}
