package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watch reloads the engine tuning config whenever the file named by
// OSMDELTA_CONFIG changes, calling onReload with the freshly parsed Config.
// It mirrors imposm3's replication/source.go use of fsnotify to watch for a
// file appearing in a directory, except here the watched event is a
// rewrite of an existing file rather than its creation.
//
// Watch returns at once when OSMDELTA_CONFIG is unset or the watcher cannot
// be set up; otherwise it blocks until stop is closed or the watcher's event
// channel closes. Watcher errors and unparsable rewrites are skipped, not
// returned. Callers run it in its own goroutine.
func Watch(stop <-chan struct{}, onReload func(Config)) error {
	file := os.Getenv(EnvConfigFile)
	if file == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating config watcher")
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(file)); err != nil {
		return errors.Wrapf(err, "watching %s", file)
	}

	for {
		select {
		case <-stop:
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if evt.Name != file {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load()
			if err != nil {
				continue
			}
			onReload(cfg)
		case <-w.Errors:
			continue
		}
	}
}
