package monitor

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/NVIDIA/cns-node-agent/pkg/defaults"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
)

// FileWatcher signals when files under a dynamic set of directories change.
// It uses native notifications when available and falls back to polling.
type FileWatcher struct {
	fs      hostfs.FS
	settle  time.Duration
	poll    time.Duration
	polling bool

	mu      sync.Mutex
	dirs    []string
	updated chan struct{}
}

// FileWatcherOption configures a FileWatcher.
type FileWatcherOption func(*FileWatcher)

// WithSettleWindow sets how long to drain notifications after a wake.
func WithSettleWindow(d time.Duration) FileWatcherOption {
	return func(w *FileWatcher) { w.settle = d }
}

// WithPollInterval sets the fallback polling period.
func WithPollInterval(d time.Duration) FileWatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithPolling forces polling, used when the files live on a remote target.
func WithPolling(enabled bool) FileWatcherOption {
	return func(w *FileWatcher) { w.polling = enabled }
}

// NewFileWatcher returns a watcher over dirs. Polling reads through fsys so
// it observes the same host the collectors do.
func NewFileWatcher(fsys hostfs.FS, dirs []string, opts ...FileWatcherOption) *FileWatcher {
	w := &FileWatcher{
		fs:      fsys,
		settle:  defaults.FileSettleWindow,
		poll:    defaults.FilePollInterval,
		dirs:    normalizeDirs(dirs),
		updated: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name implements Monitor.
func (w *FileWatcher) Name() string { return SourceFiles }

// SetDirs replaces the watched directory set. Returns whether it changed.
func (w *FileWatcher) SetDirs(dirs []string) bool {
	next := normalizeDirs(dirs)
	w.mu.Lock()
	if slices.Equal(w.dirs, next) {
		w.mu.Unlock()
		return false
	}
	w.dirs = next
	w.mu.Unlock()

	select {
	case w.updated <- struct{}{}:
	default:
	}
	slog.Debug("file watch set updated", "dirs", next)
	return true
}

// Dirs returns the current directory set.
func (w *FileWatcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.dirs)
}

func normalizeDirs(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		out = append(out, filepath.Clean(d))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Run implements Monitor.
func (w *FileWatcher) Run(ctx context.Context, emit EmitFunc) error {
	if !w.polling {
		nw, err := fsnotify.NewWatcher()
		if err == nil {
			return w.runNative(ctx, nw, emit)
		}
		slog.Warn("native file notifications unavailable, polling", "error", err, "interval", w.poll)
	}
	return w.runPolling(ctx, emit)
}

func (w *FileWatcher) runNative(ctx context.Context, nw *fsnotify.Watcher, emit EmitFunc) error {
	defer nw.Close()

	watched := make(map[string]bool)
	resync := func() {
		w.syncWatches(nw, watched)
	}
	resync()

	// directories that do not exist yet are retried on this interval
	retry := time.NewTicker(w.poll)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.updated:
			resync()
		case <-retry.C:
			resync()
		case err, ok := <-nw.Errors:
			if !ok {
				return nil
			}
			slog.Debug("file watcher error", "error", err)
		case ev, ok := <-nw.Events:
			if !ok {
				return nil
			}
			w.track(nw, watched, ev)
			if !w.drain(ctx, nw, watched) {
				return nil
			}
			emit(Event{Source: SourceFiles, Kind: KindEvent})
		}
	}
}

// drain absorbs follow-up notifications for the settle window so an editor's
// write+rename produces one signal. Returns false when ctx ends.
func (w *FileWatcher) drain(ctx context.Context, nw *fsnotify.Watcher, watched map[string]bool) bool {
	if w.settle <= 0 {
		return true
	}
	t := time.NewTimer(w.settle)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		case ev, ok := <-nw.Events:
			if !ok {
				return true
			}
			w.track(nw, watched, ev)
		case <-nw.Errors:
		}
	}
}

// track adds newly created directories to the watch.
func (w *FileWatcher) track(nw *fsnotify.Watcher, watched map[string]bool, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			addTree(nw, watched, ev.Name)
		}
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		delete(watched, ev.Name)
	}
}

func (w *FileWatcher) syncWatches(nw *fsnotify.Watcher, watched map[string]bool) {
	want := w.Dirs()
	for dir := range watched {
		if !underAny(dir, want) {
			_ = nw.Remove(dir)
			delete(watched, dir)
		}
	}
	for _, d := range want {
		if !watched[d] {
			addTree(nw, watched, d)
		}
	}
}

func addTree(nw *fsnotify.Watcher, watched map[string]bool, root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if watched[p] {
			return nil
		}
		if err := nw.Add(p); err != nil {
			slog.Debug("failed to watch directory", "dir", p, "error", err)
			return nil
		}
		watched[p] = true
		return nil
	})
}

func underAny(p string, roots []string) bool {
	for _, r := range roots {
		if p == r || strings.HasPrefix(p, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

func (w *FileWatcher) runPolling(ctx context.Context, emit EmitFunc) error {
	prev := w.fingerprint(ctx)
	t := time.NewTicker(w.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.updated:
			// a new directory set is a new baseline; the agent rescans on change
			prev = w.fingerprint(ctx)
		case <-t.C:
			cur := w.fingerprint(ctx)
			if cur == nil {
				continue
			}
			if !sameStamps(prev, cur) {
				emit(Event{Source: SourceFiles, Kind: KindEvent})
			}
			prev = cur
		}
	}
}

// fingerprint returns nil when the listing failed, so a transient error is
// not mistaken for every file disappearing.
func (w *FileWatcher) fingerprint(ctx context.Context) map[string]fileStamp {
	out := make(map[string]fileStamp)
	for _, d := range w.Dirs() {
		files, err := w.fs.Walk(ctx, d)
		if err != nil {
			slog.Debug("file poll failed", "dir", d, "error", err)
			return nil
		}
		for _, f := range files {
			out[f.Path] = fileStamp{size: f.Size, modTime: f.ModTime}
		}
	}
	return out
}

func sameStamps(a, b map[string]fileStamp) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		o, ok := b[k]
		if !ok || o.size != v.size || !o.modTime.Equal(v.modTime) {
			return false
		}
	}
	return true
}
