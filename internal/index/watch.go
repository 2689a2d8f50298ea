package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a file must stay quiet before it is indexed
const settleDelay = 750 * time.Millisecond

// Watch indexes raw feed pages and harvest files as they appear in dir
// until ctx is cancelled. Indexing errors are logged and do not stop the watch.
// onIndexed, when set, runs after each file is indexed.
func (s *Store) Watch(ctx context.Context, dir string, logger *slog.Logger, onIndexed func(path string, papers int)) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Info("Watching for new feed files", "dir", dir)

	ready := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isIndexable(event.Name) {
				continue
			}
			path := event.Name
			if t, exists := timers[path]; exists {
				t.Reset(settleDelay)
				continue
			}
			timers[path] = time.AfterFunc(settleDelay, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			delete(timers, path)
			n, err := s.IndexFile(ctx, path)
			if err != nil {
				logger.Warn("Indexing failed", "path", path, "error", err)
				continue
			}
			logger.Info("Indexed file", "path", path, "papers", n)
			if onIndexed != nil {
				onIndexed(path, n)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "error", err)
		}
	}
}
