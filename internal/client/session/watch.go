package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch notifies subscribers of session changes made by other processes
// sharing the database file at dbPath. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, dbPath string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer w.Close()

	dir, base := filepath.Split(filepath.Clean(dbPath))
	if dir == "" {
		dir = "."
	}
	// SQLite rewrites the -wal and -journal siblings rather than the main file
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	s.mu.Lock()
	gen, err := readGeneration(ctx, s.repo)
	if err == nil {
		s.generation = gen
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("read generation: %w", err)
	}

	s.log.Debug(ctx, "watching session database", "path", dbPath, "generation", gen)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			s.checkGeneration(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn(ctx, "session watcher", "error", err)
		}
	}
}

// checkGeneration notifies when the stored generation differs from the last
// one this store wrote or saw.
func (s *Store) checkGeneration(ctx context.Context) {
	s.mu.Lock()
	gen, err := readGeneration(ctx, s.repo)
	changed := err == nil && gen != s.generation
	if changed {
		s.generation = gen
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn(ctx, "read generation", "error", err)
		return
	}
	if changed {
		s.log.Info(ctx, "session changed by another process", "generation", gen)
		s.notify()
	}
}
