package main

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchScripts reports changed .lua files under dir to changed. The bridge
// is not safe for concurrent use, so the caller applies the reloads on its
// own frame.
func watchScripts(dir string, log *zap.Logger, changed func(name string)) (func() error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Ext(ev.Name) != ".lua" {
					continue
				}
				changed(ev.Name)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("script watcher", zap.Error(err))
			}
		}
	}()
	return w.Close, nil
}
