// Package filewatch reloads open files into the tab store when they change
// on disk. Reloads are posted to the UI loop, so store subscribers (and the
// slots behind them) run on the loop goroutine.
package filewatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/mdpane/internal/logx"
	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// Store is the part of the tab store the watcher needs.
type Store interface {
	FindByPath(path string) (schema.TabID, bool)
	ReloadFromDisk(id schema.TabID) (bool, error)
}

// Poster queues work on the UI loop.
type Poster interface {
	Post(fn func())
}

// Options configures a Watcher.
type Options struct {
	Logger pslog.Logger
	// OnReload runs on the loop after each reload attempt.
	OnReload func(id schema.TabID, changed bool, err error)
}

// Watcher watches the directories of added files and reloads the files
// themselves. Directories are watched because editors often save by
// writing a temp file and renaming it over the original.
type Watcher struct {
	fs       *fsnotify.Watcher
	store    Store
	loop     Poster
	log      pslog.Logger
	onReload func(schema.TabID, bool, error)

	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]int
}

// New constructs a Watcher.
func New(store Store, loop Poster, opts Options) (*Watcher, error) {
	if store == nil {
		return nil, schema.ErrMissingStore
	}
	if loop == nil {
		return nil, schema.ErrMissingScheduler
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("filewatch: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Watcher{
		fs:       fs,
		store:    store,
		loop:     loop,
		log:      logger,
		onReload: opts.OnReload,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]int),
	}, nil
}

// Add starts watching path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	dir := filepath.Dir(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; ok {
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[abs] = struct{}{}
	logx.WithPath(w.log, abs).Debug("filewatch add ok")
	return nil
}

// Remove stops watching path.
func (w *Watcher) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	dir := filepath.Dir(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; !ok {
		return nil
	}
	delete(w.files, abs)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if err := w.fs.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return fmt.Errorf("unwatch %s: %w", dir, err)
	}
	return nil
}

// Run forwards file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("filewatch error", "err", err)
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	path := filepath.Clean(event.Name)
	w.mu.Lock()
	_, watched := w.files[path]
	w.mu.Unlock()
	if !watched {
		return
	}
	log := logx.WithPath(w.log, path)
	log.Trace("filewatch event", "op", event.Op.String())
	w.loop.Post(func() {
		id, ok := w.store.FindByPath(path)
		if !ok {
			log.Debug("filewatch reload skipped", "reason", "no tab")
			return
		}
		changed, err := w.store.ReloadFromDisk(id)
		if err != nil {
			logx.WithTab(log, id).Debug("filewatch reload failed", "err", err)
		}
		if w.onReload != nil {
			w.onReload(id, changed, err)
		}
	})
}
