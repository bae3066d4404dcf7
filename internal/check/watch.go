package check

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a watch run starts.
const DefaultDebounce = 500 * time.Millisecond

// skipDirs are never watched.
var skipDirs = map[string]bool{
	".git":         true,
	".gauntlet":    true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
}

// Watch re-runs the fast path whenever files under the project change,
// waiting for debounce of quiet first. Every run is reported to onResult.
// It blocks until ctx is cancelled.
func (o *Orchestrator) Watch(ctx context.Context, opts Options, debounce time.Duration, onResult func(*Result, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := addTree(w, o.root); err != nil {
		return err
	}

	opts.Full = false
	opts.FeatureID = ""
	opts.ChangedFiles = nil

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ignoredPath(o.root, event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// New directories must be watched too.
				_ = addTree(w, event.Name)
			}
			o.logger.Log("[watch] %s %s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			result, err := o.Run(ctx, opts)
			onResult(result, err)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			o.logger.Log("[watch] watcher error: %v", err)
		}
	}
}

// addTree watches root and every directory below it that is not skipped.
// A root that is a regular file is ignored.
func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func ignoredPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	dir := rel
	for dir != "." && dir != "" && dir != string(filepath.Separator) {
		if skipDirs[filepath.Base(dir)] {
			return true
		}
		dir = filepath.Dir(dir)
	}
	return false
}
