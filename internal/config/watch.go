package config

import (
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch observes path for changes and logs them. It deliberately does
// not reload or hot-apply the configuration: cache capacity and pool
// size are fixed at boot (§3's lifecycle invariant), so the only
// correct response to a config edit is an operator-visible log line
// and, if they want it applied, a restart. Watch returns immediately;
// it runs the fsnotify event loop in its own goroutine until the
// process exits or path's containing filesystem is closed.
func Watch(path string, logger *zap.Logger) {
	if path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config: could not start file watcher", zap.Error(err))
		return
	}

	if err := watcher.Add(path); err != nil {
		logger.Warn("config: could not watch config file", zap.String("path", path), zap.Error(err))
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					logger.Warn("config file changed on disk; restart the process to apply it",
						zap.String("path", path), zap.String("op", event.Op.String()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config: watcher error", zap.Error(err))
			}
		}
	}()
}
