package registry

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the registry file for changes made outside the Store (hand
// edits, config management) and calls onChange with the freshly parsed set.
// It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself: saves replace
// the file by rename, which would drop a watch held on the old inode.
// If a reload fails the error is logged and onChange is not called.
func Watch(ctx context.Context, s *Store, onChange func([]Service)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(s.Path())
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	slog.Info("registry: watching for changes", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			services, err := s.List()
			if err != nil {
				slog.Error("registry: reload failed", "path", target, "err", err)
				continue
			}
			slog.Info("registry: reloaded", "path", target, "services", len(services))
			onChange(services)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("registry: watcher error", "err", err)
		}
	}
}
