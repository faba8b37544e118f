package gwconfig

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file on change, for hot-reloading the worker
// list without a restart. Grounded on fsnotify's directory-watch idiom:
// the directory is watched (not the file itself) since editors and
// `kubectl cp`-style tools commonly replace a file rather than write it
// in place, which would otherwise orphan a watch on the old inode.
type Watcher struct {
	fsw  *fsnotify.Watcher
	path string
}

// NewWatcher starts watching path's directory for changes to path.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("gwconfig: create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("gwconfig: watch %s: %w", dir, err)
	}
	return &Watcher{fsw: fsw, path: filepath.Clean(path)}, nil
}

// Run blocks until ctx is cancelled, calling onReload with a freshly
// loaded Config each time the watched file is written, created, or
// replaced. onReload is called with a non-nil error (and a nil Config) if
// the reload itself failed; callers should keep running on the previous
// Config in that case rather than apply a zero value.
func (w *Watcher) Run(ctx context.Context, onReload func(*Config, error)) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				onReload(nil, fmt.Errorf("gwconfig: reload %s: %w", w.path, err))
				continue
			}
			onReload(cfg, nil)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			onReload(nil, fmt.Errorf("gwconfig: watch error: %w", err))
		}
	}
}

// Close stops the watcher without waiting for ctx cancellation.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
