package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"shared-jello/server/internal/telemetry"
)

// Watcher reloads the configuration file whenever it changes and hands the
// new parameters to the apply callback. The enclosing directory is watched
// rather than the file itself, so editors that replace the file atomically
// still trigger a reload.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	apply   func(Params)
	logger  telemetry.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher starts watching path. apply runs on the watcher's goroutine
// for every successful reload; invalid intermediate file states are logged
// and skipped.
func NewWatcher(path string, logger telemetry.Logger, apply func(Params)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		path:    filepath.Clean(path),
		watcher: fsWatcher,
		apply:   apply,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Printf("config reload skipped: %v", err)
				continue
			}
			w.apply(cfg.Params)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("config watcher error: %v", err)
		}
	}
}

// Close stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
