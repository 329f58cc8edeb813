package dsl

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/chazu/trellis/pkg/catalog"
	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the result of each reload.
type ReloadFunc func(c *catalog.Catalog, evalErrs []EvalError, err error)

// Watch reloads the catalog at path whenever it is written or replaced and
// passes the result to fn. The directory is watched rather than the file so
// editors that save by renaming over the original keep triggering reloads.
// Watch blocks until ctx is done, returning nil, or the watcher fails.
func Watch(ctx context.Context, path string, fn ReloadFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("dsl: watch: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("dsl: watch %s: %w", path, err)
	}

	l := NewLoader()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			fn(l.LoadFile(ctx, target))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("dsl: watch %s: %w", path, err)
		}
	}
}
