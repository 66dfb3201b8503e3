package main

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// limitWatcher re-reads a config file whenever it changes and applies its
// limit to a running guest.
type limitWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	apply   func(limit int64) error
	log     *zap.Logger
	done    chan struct{}
}

// watchLimit watches the directory holding path, so editors that replace
// the file instead of writing it in place are still noticed.
func watchLimit(path string, apply func(int64) error, log *zap.Logger) (*limitWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &limitWatcher{
		watcher: watcher,
		path:    abs,
		apply:   apply,
		log:     log,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *limitWatcher) loop() {
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
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", zap.Error(err))
		}
	}
}

func (w *limitWatcher) reload() {
	cfg, err := loadConfig(w.path)
	if err != nil {
		w.log.Warn("config reload failed", zap.Error(err))
		return
	}
	if cfg.Limit == "" {
		return
	}
	limit, err := parseSize(cfg.Limit)
	if err != nil {
		w.log.Warn("config reload failed", zap.String("limit", cfg.Limit), zap.Error(err))
		return
	}
	if err := w.apply(limit); err != nil {
		w.log.Error("apply memory limit", zap.Int64("limit", limit), zap.Error(err))
		return
	}
	w.log.Info("memory limit reloaded", zap.String("config", w.path), zap.Int64("limit", limit))
}

// Close stops watching and waits for the event loop to exit.
func (w *limitWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
