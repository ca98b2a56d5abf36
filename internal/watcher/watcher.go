// Package watcher reloads the store when the persistence file is changed by
// something other than this process.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/jotter/internal/checksum"
)

// DefaultDebounce coalesces the burst of events an editor or sync tool emits.
const DefaultDebounce = 200 * time.Millisecond

// ReloadFunc reloads the store from disk.
type ReloadFunc func(ctx context.Context) error

// Watch watches the directory holding file and calls reload after external
// changes to file, until ctx is cancelled. Changes whose digest matches the
// tracker's last known digest (our own writes) are ignored.
//
// The directory is watched rather than the file because atomic writes
// replace the file, which drops a watch placed on the file itself.
func Watch(ctx context.Context, file string, tracker *checksum.Tracker, reload ReloadFunc, logger *slog.Logger, debounce time.Duration) error {
	file, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(file)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("path", file))

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
			check(ctx, file, tracker, reload, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func check(ctx context.Context, file string, tracker *checksum.Tracker, reload ReloadFunc, logger *slog.Logger) {
	sum, err := checksum.File(file)
	if errors.Is(err, fs.ErrNotExist) {
		// Reloading a missing file would empty the store; keep memory as is
		// and let the next sync recreate the file.
		logger.Warn("watcher: data file removed externally", slog.String("path", file))
		return
	}
	if err != nil {
		logger.Warn("watcher: checksum failed", slog.String("path", file), slog.String("error", err.Error()))
		return
	}
	if tracker.Matches(file, sum) {
		return
	}

	if err := reload(ctx); err != nil {
		logger.Error("watcher: reload failed", slog.String("path", file), slog.String("error", err.Error()))
		return
	}
	tracker.Set(file, sum)
	logger.Info("watcher: reloaded after external change", slog.String("path", file))
}
