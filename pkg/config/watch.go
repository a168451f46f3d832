package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultWatchDelay is the debounce applied to bursts of writes.
const DefaultWatchDelay = 200 * time.Millisecond

// Watcher calls a function whenever one file is written.
type Watcher struct {
	path   string
	delay  time.Duration
	logger zerolog.Logger
}

// NewWatcher creates a watcher for path. A zero delay disables debouncing.
func NewWatcher(path string, delay time.Duration, logger zerolog.Logger) *Watcher {
	return &Watcher{path: filepath.Clean(path), delay: delay, logger: logger}
}

// Watch calls fn whenever the file at path is written, until ctx is done.
func Watch(ctx context.Context, path string, fn func()) error {
	return NewWatcher(path, DefaultWatchDelay, zerolog.Nop()).Run(ctx, fn)
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are still seen.
func (w *Watcher) Run(ctx context.Context, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.logger.Info().Str("path", w.path).Msg("Watching file")

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
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
			if filepath.Clean(event.Name) != w.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("File changed")

			if w.delay <= 0 {
				fn()
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.delay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			fn()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}
