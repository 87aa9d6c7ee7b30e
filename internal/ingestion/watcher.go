package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultDebounce is the quiet period after the last change before a batch
// of changed files is processed.
const DefaultDebounce = 2 * time.Second

// BatchResult reports one processed batch of changes.
type BatchResult struct {
	Indexed []string
	Removed []string
	Failed  []string
}

// WatchOptions tunes Watch.
type WatchOptions struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// OnBatch, if set, is called after every processed batch.
	OnBatch func(BatchResult)
}

// Watch monitors dir for bundle changes and re-indexes them. Removed files
// have their graphs deleted. Blocks until the context is cancelled.
func (p *Pipeline) Watch(ctx context.Context, dir string, opts WatchOptions) error {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	matcher, err := loadMatcher(dir)
	if err != nil {
		return fmt.Errorf("loading ignore rules: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, dir, dir, matcher); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop()

	p.log().Info("watching for changes", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, dir, event.Name, matcher); err != nil {
						p.log().Warn("watching new directory", "dir", event.Name, "err", err)
					}
					continue
				}
			}

			if !shouldWatchFile(event.Name, dir, matcher) {
				continue
			}
			relPath, err := filepath.Rel(dir, event.Name)
			if err != nil {
				continue
			}
			changed[filepath.ToSlash(relPath)] = true
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log().Error("watch error", "err", err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}
			result := p.processChanges(ctx, dir, changed)
			changed = make(map[string]bool)
			if opts.OnBatch != nil {
				opts.OnBatch(result)
			}
		}
	}
}

// addTree watches root and every directory below it that is not ignored.
func addTree(watcher *fsnotify.Watcher, dir, root string, matcher gitignore.Matcher) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && shouldSkipDir(d.Name(), path, dir, matcher) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// processChanges re-indexes changed bundles and drops the graphs of deleted
// ones.
func (p *Pipeline) processChanges(ctx context.Context, dir string, changed map[string]bool) BatchResult {
	paths := make([]string, 0, len(changed))
	for relPath := range changed {
		paths = append(paths, relPath)
	}
	sort.Strings(paths)

	var result BatchResult
	for _, relPath := range paths {
		absPath := filepath.Join(dir, filepath.FromSlash(relPath))

		info, err := os.Stat(absPath)
		if os.IsNotExist(err) {
			n, err := p.RemoveFile(ctx, relPath)
			if err != nil {
				p.log().Error("removing graphs", "file", relPath, "err", err)
				result.Failed = append(result.Failed, relPath)
				continue
			}
			if n > 0 {
				p.log().Info("removed", "file", relPath)
				result.Removed = append(result.Removed, relPath)
			}
			continue
		}
		if err != nil || info.IsDir() {
			continue
		}

		entry, err := newFileEntry(dir, absPath)
		if err != nil {
			p.log().Error("reading", "file", relPath, "err", err)
			result.Failed = append(result.Failed, relPath)
			continue
		}
		res, err := p.IndexFile(ctx, entry)
		if err != nil {
			p.log().Error("re-indexing", "file", relPath, "err", err)
			result.Failed = append(result.Failed, relPath)
			continue
		}
		p.log().Info("re-indexed", "file", relPath, "graph", res.GraphID)
		result.Indexed = append(result.Indexed, relPath)
	}
	return result
}

// shouldWatchFile checks if a file should be watched.
func shouldWatchFile(path, dir string, matcher gitignore.Matcher) bool {
	relPath, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	if matcher.Match(splitPath(relPath), false) {
		return false
	}
	return isBundleFile(path)
}
