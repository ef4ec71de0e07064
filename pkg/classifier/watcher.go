package classifier

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads a local bundle into h whenever the file changes, until ctx
// is done. Events are debounced by settle; a bundle that fails to load is
// logged and the previous model stays in service. Watching s3:// paths is
// not supported.
func (l *Loader) Watch(ctx context.Context, loc string, h *Holder, settle time.Duration) error {
	if strings.HasPrefix(loc, "s3://") {
		return fmt.Errorf("classifier: cannot watch %s", loc)
	}
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("classifier: watch: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors and atomic writers replace the file.
	abs, err := filepath.Abs(loc)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("classifier: watch %s: %w", loc, err)
	}

	log := l.logger()
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
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("model watcher error", "error", err)
		case <-fire:
			fire = nil
			e, err := l.Load(ctx, abs)
			if err != nil {
				log.Error("model reload failed, keeping current model", "path", loc, "error", err)
				continue
			}
			h.Store(e)
		}
	}
}
