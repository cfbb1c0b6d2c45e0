package gen

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

func (c *Cmd) watch(ctx context.Context, w io.Writer) error {
	dir, err := c.Load.WatchDir()
	if err != nil {
		return err
	}
	outDir, err := filepath.Abs(c.Out)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	fmt.Fprintf(w, "watching %s\n", dir)

	filter := func(ev fsnotify.Event) bool {
		// Our own output must not trigger another run.
		if abs, err := filepath.Abs(filepath.Dir(ev.Name)); err == nil && abs == outDir {
			return false
		}
		return relevant(ev)
	}
	return watchLoop(ctx, watcher.Events, watcher.Errors, c.Debounce, filter,
		func() error { return c.Generate(ctx, w) },
		func(err error) { fmt.Fprintf(w, "✗ %v\n", err) })
}

// relevant reports whether ev may change the loaded types.
func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "_test.go") {
		return false
	}
	switch filepath.Ext(name) {
	case ".go", ".yaml", ".yml":
		return true
	}
	return false
}

// watchLoop calls regen once events stop arriving for debounce. Failures are
// passed to report and do not stop the loop. It returns when ctx is done or
// either channel is closed.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, debounce time.Duration,
	filter func(fsnotify.Event) bool, regen func() error, report func(error)) error {
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !filter(ev) {
				continue
			}
			timer.Reset(debounce)
			fire = timer.C
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			report(err)
		case <-fire:
			fire = nil
			if err := regen(); err != nil {
				report(err)
			}
		}
	}
}
