package snapshot

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"pax-advisor/internal/logger"
)

// Watch refreshes the store index whenever new snapshot files land in the
// history directory, until ctx is cancelled. Events are debounced so a burst of
// writes from one ETL run triggers a single rescan. onChange (optional) runs
// after each successful refresh. A history directory that does not exist yet
// is picked up once the ETL creates it.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	root := filepath.Clean(s.dir)
	if err := watchTree(w, root); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(ev.Name)
			inTree := within(root, name)
			if ev.Has(fsnotify.Create) && isDir(name) {
				switch {
				case inTree:
					// fsnotify is not recursive: watch every partition directory (year=/month=).
					if err := addDirs(w, name); err != nil {
						logger.Warn("WATCH", err.Error())
					}
				case within(name, root):
					if err := watchTree(w, root); err != nil {
						logger.Warn("WATCH", err.Error())
					}
					if isDir(root) {
						pending = true
						timer.Reset(debounce)
					}
					continue
				}
			}
			if !inTree {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !isDir(name) && !strings.EqualFold(filepath.Ext(name), ".parquet") {
				continue
			}
			pending = true
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("WATCH", err.Error())

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := s.Refresh(); err != nil {
				logger.Warn("WATCH", fmt.Sprintf("Refresh failed: %v", err))
				continue
			}
			logger.Info("WATCH", fmt.Sprintf("Snapshot index refreshed (%d files)", len(s.Files())))
			if onChange != nil {
				onChange()
			}
		}
	}
}

// watchTree watches root and its partitions, or the deepest existing ancestor
// of root when root is missing.
func watchTree(w *fsnotify.Watcher, root string) error {
	if isDir(root) {
		return addDirs(w, root)
	}
	parent := existingAncestor(root)
	if err := w.Add(parent); err != nil {
		return fmt.Errorf("watch %s: %w", parent, err)
	}
	logger.Info("WATCH", fmt.Sprintf("%s does not exist yet, waiting in %s", root, parent))
	return nil
}

func existingAncestor(path string) string {
	for {
		parent := filepath.Dir(path)
		if parent == path || isDir(parent) {
			return parent
		}
		path = parent
	}
}

// within reports whether path is base or below it.
func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func addDirs(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
