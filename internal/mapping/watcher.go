package mapping

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a Source must stay quiet before it is mapped.
const DefaultDebounce = 500 * time.Millisecond

// Watch starts an fsnotify watcher on the sources directory under root and
// maps Sources as they appear or their dump files change, until ctx is
// cancelled. Events are debounced so that a Source still being extracted is
// mapped once it settles. Completion is reported through Options.OnSource.
func (e *Executor) Watch(ctx context.Context, root string, debounce time.Duration) error {
	ws, err := e.open(root)
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

	sourcesDir := ws.sources.Root()
	if err := w.Add(sourcesDir); err != nil {
		return err
	}
	srcs, err := ws.sources.Sources()
	if err != nil {
		return err
	}
	for _, src := range srcs {
		if err := w.Add(src.Path); err != nil {
			return err
		}
	}

	e.logger.Info("watcher: started", slog.String("dir", sourcesDir))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func(source string) {
		pending[source] = struct{}{}
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
			e.logger.Info("watcher: stopped")
			return nil

		case <-fire:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			sort.Strings(names)
			clear(pending)
			for _, name := range names {
				if _, err := e.RunSource(ctx, root, name); err != nil {
					e.logger.Warn("watcher: map failed",
						slog.String("source", name),
						slog.String("error", err.Error()))
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(sourcesDir, ev.Name)
			if relErr != nil || rel == "." || strings.HasPrefix(rel, "..") {
				continue
			}
			parts := strings.Split(rel, string(filepath.Separator))

			if len(parts) == 1 {
				if ev.Op&fsnotify.Create == 0 {
					continue
				}
				info, statErr := os.Stat(ev.Name)
				if statErr != nil || !info.IsDir() {
					continue
				}
				if addErr := w.Add(ev.Name); addErr != nil {
					e.logger.Warn("watcher: add source dir failed",
						slog.String("path", ev.Name),
						slog.String("error", addErr.Error()))
					continue
				}
				e.logger.Debug("watcher: new source", slog.String("source", parts[0]))
				schedule(parts[0])
				continue
			}

			if len(parts) != 2 || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// Mapping outputs and temp files land in the same directory.
			if !ws.scanner.Relevant(parts[1]) {
				continue
			}
			schedule(parts[0])

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
