// Package watch re-runs a system's analysis whenever its layout file changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/danielpatrickdp/ecc-analyzer/internal/system"
)

// Options configures Run.
type Options struct {
	// Debounce is how long to wait for more writes before reloading.
	Debounce time.Duration
}

// DefaultOptions returns a 100ms debounce window.
func DefaultOptions() Options {
	return Options{Debounce: 100 * time.Millisecond}
}

// Handler receives the outcome of each reload. err is set when the file
// could not be loaded; the system then keeps its previous layout.
type Handler func(rep system.Report, err error)

// #region run
// Run watches path until ctx is done. Each burst of changes reloads the
// layout into sys and passes the new analysis to fn. The directory is
// watched rather than the file so editors that replace the file by rename
// are still seen.
func Run(ctx context.Context, sys *system.System, path string, opts Options, fn Handler) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !relevant(ev.Op) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(opts.Debounce)
			} else {
				timer.Reset(opts.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := sys.Load(abs); err != nil {
				fn(system.Report{}, err)
				continue
			}
			fn(sys.Analyze())

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}

// #endregion run

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}
