// Package watcher watches statement inbox directories with fsnotify and imports new files.
//
// An inbox root holds one subdirectory per user: <root>/<userID>/<file>.csv|.xlsx.
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

	"github.com/vittmoney/vitt/internal/importer"
)

const defaultDebounce = 400 * time.Millisecond

// Importer imports one statement file for a user.
type Importer interface {
	ImportFile(ctx context.Context, userID, path string) (*importer.Result, error)
}

// Builder rebuilds a user's knowledge base after new expenses arrive.
type Builder interface {
	BuildInBackground(userID string) string
}

// Inbox watches roots and imports statements dropped into per-user directories.
type Inbox struct {
	roots       []string
	extensions  []string
	importer    Importer
	builder     Builder
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	ctx         context.Context
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Inbox) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is imported.
func WithDebounce(d time.Duration) Option {
	return func(w *Inbox) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewInbox creates an inbox over roots. extensions filter which files are imported (empty = all).
// builder may be nil to skip rebuilding after imports.
func NewInbox(roots, extensions []string, imp Importer, builder Builder, opts ...Option) *Inbox {
	w := &Inbox{
		roots:       cleanRoots(roots),
		extensions:  extensions,
		importer:    imp,
		builder:     builder,
		debounce:    defaultDebounce,
		ctx:         context.Background(),
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func cleanRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			out = append(out, filepath.Clean(abs))
		}
	}
	return out
}

// Start creates missing roots and begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Inbox) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.ctx = ctx
	w.started = true
	w.logger.Debug("Inbox starting", zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions))
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx, watcher)
	return nil
}

func (w *Inbox) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("Inbox watch error", zap.Error(err))
			}
		}
	}
}

func (w *Inbox) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	w.logger.Debug("Inbox event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if _, _, ok := w.locate(path); ok && w.matchExtension(path) {
			w.debounceImport(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
	}
}

// handleNewDirectory starts watching a new user directory and imports what it already holds.
func (w *Inbox) handleNewDirectory(dir string) {
	root, rel, ok := w.locate(dir)
	if !ok || strings.Contains(rel, string(filepath.Separator)) {
		return
	}
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return
	}
	if err := watcher.Add(dir); err != nil {
		w.logger.Warn("Inbox failed to watch user directory", zap.String("path", dir), zap.Error(err))
		return
	}
	w.logger.Debug("Inbox watching user directory", zap.String("root", root), zap.String("user_id", rel))
	w.syncUserDir(dir)
}

// locate returns the root containing path and the path relative to it.
func (w *Inbox) locate(path string) (root, rel string, ok bool) {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, r := range roots {
		rel, err := filepath.Rel(r, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return r, rel, true
	}
	return "", "", false
}

// userFor returns the user that owns the statement at path. Only files exactly one
// directory below a root belong to a user.
func (w *Inbox) userFor(path string) (string, bool) {
	_, rel, ok := w.locate(path)
	if !ok {
		return "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 2 || parts[0] == "" || strings.HasPrefix(parts[0], ".") {
		return "", false
	}
	return parts[0], true
}

func (w *Inbox) matchExtension(path string) bool {
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
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

func (w *Inbox) debounceImport(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.process(path)
	})
}

func (w *Inbox) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// process imports one statement and schedules a rebuild when rows were added.
func (w *Inbox) process(path string) {
	userID, ok := w.userFor(path)
	if !ok {
		w.logger.Debug("Inbox ignoring file outside a user directory", zap.String("path", path))
		return
	}
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()

	res, err := w.importer.ImportFile(ctx, userID, path)
	if err != nil {
		w.logger.Warn("Inbox import failed", zap.String("user_id", userID), zap.String("path", path), zap.Error(err))
		return
	}
	if res.Imported > 0 && w.builder != nil {
		buildID := w.builder.BuildInBackground(userID)
		w.logger.Info("Scheduled knowledge base rebuild",
			zap.String("user_id", userID),
			zap.String("build_id", buildID),
			zap.Int("rows", res.Imported),
		)
	}
}

func (w *Inbox) addRootLocked(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if err := w.watcher.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			if err := w.watcher.Add(filepath.Join(root, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Inbox) syncUserDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Warn("Inbox failed to read user directory", zap.String("path", dir), zap.Error(err))
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.Type().IsRegular() && w.matchExtension(path) {
			w.process(path)
		}
	}
}

// SyncExisting imports statements already present in every user directory.
// Files recorded unchanged in the import ledger are skipped by the importer.
func (w *Inbox) SyncExisting() {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	w.logger.Debug("Inbox syncing existing files", zap.Strings("roots", roots))
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && filepath.Dir(path) != root {
					return filepath.SkipDir
				}
				return nil
			}
			if w.matchExtension(path) {
				w.process(path)
			}
			return nil
		})
	}
}

// Directories returns a copy of the watched roots.
func (w *Inbox) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// Stop stops watching and cancels pending imports.
func (w *Inbox) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
