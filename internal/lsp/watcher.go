package lsp

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// skipDirs are directory names never watched; they churn constantly and no
// server wants events from them.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".hg":          true,
	".svn":         true,
	"vendor":       true,
	"target":       true,
	"__pycache__":  true,
}

// Watcher mirrors filesystem changes under the workspace root to every
// connected language server as workspace/didChangeWatchedFiles.
type Watcher struct {
	fsw     *fsnotify.Watcher
	manager *Manager
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// NewWatcher creates a watcher bound to a manager.
func NewWatcher(m *Manager, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{fsw: fsw, manager: m, logger: logger}, nil
}

// Watch recursively registers every directory under root and starts the
// forwarding loop. New directories created later are picked up as their
// create events arrive.
func (w *Watcher) Watch(ctx context.Context, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, skip
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	if err != nil {
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	var typ FileChangeType
	switch {
	case ev.Has(fsnotify.Create):
		typ = FileCreated
		// New directory: start watching it too.
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !skipDirs[filepath.Base(ev.Name)] {
			if err := w.fsw.Add(ev.Name); err == nil {
				w.logger.Debug("watching new directory", "path", ev.Name)
			}
		}
	case ev.Has(fsnotify.Write):
		typ = FileChanged
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		typ = FileDeleted
	default:
		return
	}

	w.manager.NotifyWatchedFiles(ctx, []FileEvent{{
		URI:  PathToURI(ev.Name),
		Type: typ,
	}})
}

// Close stops the forwarding loop and releases the underlying watches.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	return w.fsw.Close()
}
