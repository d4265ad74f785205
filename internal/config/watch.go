package config

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// WatchLocalDir notifies onChange whenever something outside this
// process touches the embedded Dolt directory at localPath — most
// commonly an operator running the Dolt CLI directly against the same
// database. A long-running loop can use it to schedule an extra
// reconcile pass between its regular PollInterval ticks; no code in
// this module calls it. Runs until ctx is done.
func WatchLocalDir(ctx context.Context, localPath string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher: %w", err)
	}
	if err := watcher.Add(localPath); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("config: watching %s: %w", localPath, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				onChange()
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
