package session

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// CancelFilePath returns the control file whose creation cancels the
// project's running session. Touching it from another terminal interrupts
// all in-flight workers without killing the orchestrator process.
func CancelFilePath(projectRoot string) string {
	return filepath.Join(projectRoot, ".fanout", "cancel")
}

// WatchCancel derives a context that is cancelled when the control file
// appears. The returned stop function releases the watcher; callers must
// invoke it.
func WatchCancel(parent context.Context, path string) (context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(parent)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ctx, cancel, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return ctx, cancel, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return ctx, cancel, err
	}

	// The file may predate the watch.
	if _, err := os.Stat(path); err == nil {
		watcher.Close()
		cancel()
		return ctx, cancel, nil
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == path && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					cancel()
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return ctx, cancel, nil
}
