package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/merchant-intake/constants"
)

type WatchOptions struct {
	SkipHidden bool
	MaxBytes   int64

	// InitialScan analyzes files already present before watching.
	InitialScan bool

	// Debounce coalesces bursts of create/write events for the same file.
	Debounce time.Duration
}

// WatchDirectory analyzes files as they appear under root (recursively) and
// emits one FileResult per distinct content. The channel closes when ctx is
// done or the watcher fails.
func WatchDirectory(ctx context.Context, a Analyzer, root string, category constants.DocumentCategory, opts WatchOptions, logger *slog.Logger) (<-chan FileResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		return nil, errors.New("root is required")
	}
	if !category.Valid() {
		return nil, fmt.Errorf("unknown document category %q", category)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	var existing []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if opts.SkipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if opts.InitialScan && AllowedExt(filepath.Ext(path)) {
			existing = append(existing, path)
		}
		return nil
	})
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}

	out := make(chan FileResult, 64)
	go func() {
		defer close(out)
		defer w.Close()

		seen := map[string]bool{}
		emit := func(path string) bool {
			res := analyzeFile(ctx, a, path, category, opts.MaxBytes, seen)
			if res.Duplicate {
				logger.Debug("ingest.watch.duplicate", "path", path)
				return true
			}
			logger.Info("ingest.watch.analyzed", "path", path, "outcome", res.Outcome, "error", res.Err)
			select {
			case out <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range existing {
			if !emit(p) {
				return
			}
		}

		pending := map[string]struct{}{}
		timer := time.NewTimer(opts.Debounce)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if opts.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if e.Has(fsnotify.Create) {
					if st, err := os.Stat(e.Name); err == nil && st.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("ingest.watch.add_dir.failed", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
					continue
				}
				if !AllowedExt(filepath.Ext(e.Name)) {
					continue
				}
				pending[e.Name] = struct{}{}
				timer.Reset(opts.Debounce)
			case <-timer.C:
				for p := range pending {
					delete(pending, p)
					if !emit(p) {
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.failed", "root", root, "error", err)
			}
		}
	}()
	return out, nil
}
