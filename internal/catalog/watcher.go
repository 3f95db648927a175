package catalog

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the catalog from disk whenever its backing file changes,
// publishing each successfully validated reload via Reloaded and logging
// (without crashing the process) whenever a reload fails validation.
type Watcher struct {
	path     string
	fswatch  *fsnotify.Watcher
	logger   *slog.Logger
	Reloaded chan *Catalog
	done     chan struct{}
}

// Watch starts watching path's directory for changes to path and returns a
// Watcher streaming successfully reloaded catalogs on Reloaded. Call Close
// to stop.
func Watch(path string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		fswatch:  fsw,
		logger:   logger,
		Reloaded: make(chan *Catalog, 1),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fswatch.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cat, err := Load(w.path)
			if err != nil {
				w.logger.Warn("catalog hot-reload failed validation, keeping previous catalog", "path", w.path, "error", err)
				continue
			}
			select {
			case w.Reloaded <- cat:
			default:
				// drop to the most recent reload if the consumer is behind
				<-w.Reloaded
				w.Reloaded <- cat
			}
		case err, ok := <-w.fswatch.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fswatch.Close()
}
