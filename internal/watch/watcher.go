// Package watch reports debounced changes under an archive folder.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/lookback/internal/storage"
)

// DefaultDebounce coalesces bursts of file events such as an export unzip.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is called once per quiet period after relevant changes.
type ChangeFunc func(ctx context.Context)

// Watch starts an fsnotify watcher on root and calls onChange after a burst
// of metadata or media changes settles for debounce. It blocks until ctx is
// cancelled.
//
// New directories created at runtime are added to the watch list. Hidden
// files, including in-progress atomic writes, are ignored.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, onChange ChangeFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			logger.Debug("watcher: change settled", slog.String("root", root))
			onChange(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if hidden(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					schedule()
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := storage.Classify(ev.Name); !ok {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// addDirsRecursive adds root and all its non-hidden subdirectories.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
