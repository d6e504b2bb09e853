package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce batches the bursts of events editors emit for one save.
const watchDebounce = 150 * time.Millisecond

// RunWatch traces opts.Path now and again after every change until ctx is done.
// Runtime failures are reported and do not stop the watcher.
func RunWatch(ctx context.Context, rt *Runtime, opts TraceOptions, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so the directory is watched rather than the file.
	abs, err := filepath.Abs(opts.Path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", opts.Path, err)
	}

	logger := rt.Logger.With("path", opts.Path)
	logger.Info("Starting Watcher")
	printSystemMessage(out, "Watching '%s'.", opts.Path)

	run := func() {
		if err := traceFile(ctx, rt.Engine, opts, out); err != nil {
			printSystemMessage(out, "%v", err)
		}
	}
	run()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("Change detected", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			printSystemMessage(out, "Change detected in '%s'.", opts.Path)
			run()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "err", err)
		}
	}
}
