package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce absorbs the burst of events an editor emits for one save.
const debounce = 200 * time.Millisecond

// Watch reloads filename into a value from newT after every change and passes
// it to onChange. newT supplies the defaults the file may omit. A file that
// fails to load or validate is logged and skipped; the previous configuration
// stays in effect. Watch blocks until ctx is done.
//
// The parent directory is watched so that editors which replace the file by
// rename are still seen.
func Watch[T any](ctx context.Context, filename string, logger *slog.Logger, newT func() *T, onChange func(*T)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(filename)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("config: watching", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("config: watcher stopped")
			return nil

		case <-fire:
			fire = nil
			next := newT()
			if err := Load(abs, next); err != nil {
				logger.Warn("config: reload rejected", slog.String("error", err.Error()))
				continue
			}
			logger.Info("config: reloaded", slog.String("path", abs))
			onChange(next)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("config: watch error", slog.String("error", watchErr.Error()))
		}
	}
}
