// Package watcher keeps the document catalog in sync with transcript directories using fsnotify.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/limudai/limud/internal/debounce"
)

const defaultDebounce = 400 * time.Millisecond

// Sink receives debounced file changes. *importer.Importer implements it.
type Sink interface {
	ImportFile(ctx context.Context, path string) (bool, error)
	RemoveFile(ctx context.Context, path string) error
}

// Watcher watches root directories and forwards changed and removed files to a Sink.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	sink       Sink
	delay      time.Duration
	afterFunc  debounce.AfterFunc
	logger     *zap.Logger

	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	pending   *debounce.Group
	rootPaths map[string][]string // root -> directories added to fsnotify for it
	ctx       context.Context
	done      chan struct{}
	stopOnce  sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output (directory changes, file events, sync errors).
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets the quiet period after the last write before a file is imported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.delay = d }
}

// WithAfterFunc replaces the timer used for debouncing; tests pass a fake clock.
func WithAfterFunc(fn debounce.AfterFunc) Option {
	return func(w *Watcher) { w.afterFunc = fn }
}

// NewWatcher creates a watcher over roots. extensions filter which files are
// forwarded (empty = all).
func NewWatcher(roots []string, extensions []string, recursive bool, sink Sink, opts ...Option) *Watcher {
	w := &Watcher{
		roots:      append([]string(nil), roots...),
		extensions: extensions,
		recursive:  recursive,
		sink:       sink,
		delay:      defaultDebounce,
		logger:     zap.NewNop(),
		rootPaths:  make(map[string][]string),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	var dopts []debounce.Option
	if w.afterFunc != nil {
		dopts = append(dopts, debounce.WithAfterFunc(w.afterFunc))
	}
	w.pending = debounce.NewGroup(w.delay, dopts...)
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Missing root directories are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.fsw != nil {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.ctx = ctx
	w.logger.Debug("watcher starting", zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))
	for i, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err == nil {
			err = w.addRootLocked(abs)
		}
		if err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.mu.Unlock()
			return err
		}
		w.roots[i] = abs
	}
	w.mu.Unlock()
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.pending.Cancel(path)
		if matchExtension(path, w.extensions) {
			w.remove(path)
		}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if matchExtension(path, w.extensions) {
			w.pending.Trigger(path, func() { w.importFile(path) })
		}
	}
}

func (w *Watcher) syncContext() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return context.Background()
	}
	return w.ctx
}

func (w *Watcher) importFile(path string) {
	if w.sink == nil {
		return
	}
	imported, err := w.sink.ImportFile(w.syncContext(), path)
	if err != nil {
		w.logger.Warn("watcher import failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Debug("watcher file synced", zap.String("path", path), zap.Bool("imported", imported))
}

func (w *Watcher) remove(path string) {
	if w.sink == nil {
		return
	}
	if err := w.sink.RemoveFile(w.syncContext(), path); err != nil {
		w.logger.Warn("watcher remove failed", zap.String("path", path), zap.Error(err))
	}
}

// handleNewDirectory watches a directory that appeared under a root and imports
// the files already inside it.
func (w *Watcher) handleNewDirectory(dirPath string) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	w.logger.Debug("watcher handling new directory", zap.String("path", dirPath))

	if w.recursive {
		_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if err := fsw.Add(path); err != nil {
					w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				}
			}
			return nil
		})
	} else if err := fsw.Add(dirPath); err != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dirPath), zap.Error(err))
	}

	w.syncDirectory(dirPath)
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range roots {
		if inDir(filepath.Clean(root), clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// AddDirectory adds a root directory to watch and optionally imports the files already in it.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return nil
	}
	for _, r := range w.roots {
		if filepath.Clean(r) == abs {
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	w.logger.Debug("watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.syncDirectory(abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	var paths []string
	if w.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if err := w.fsw.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	}
	w.rootPaths[root] = paths
	return nil
}

func (w *Watcher) syncDirectory(root string) {
	w.logger.Debug("watcher syncing directory", zap.String("root", root))
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !w.recursive && filepath.Dir(path) != filepath.Clean(root) {
			return nil
		}
		if matchExtension(path, w.extensions) {
			w.importFile(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching the given root. Documents already imported from it are kept.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return nil
	}
	idx := -1
	for i, r := range w.roots {
		if filepath.Clean(r) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, p := range w.rootPaths[abs] {
		_ = w.fsw.Remove(p)
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	w.logger.Debug("watcher directory removed", zap.String("path", abs))
	return nil
}

// Directories returns a copy of the current watched root directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles imports every matching file already present in the roots.
// Call it after Start to catch files written while nothing was watching.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

// Stop stops the watcher, drops pending imports and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	w.pending.CancelAll()
	_ = fsw.Close()
	w.stopOnce.Do(func() { close(w.done) })
}
