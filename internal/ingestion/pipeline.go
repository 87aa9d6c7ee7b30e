package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Benny93/lexigraph/internal/document"
	"github.com/Benny93/lexigraph/internal/indexer"
	"github.com/Benny93/lexigraph/internal/logger"
	"github.com/Benny93/lexigraph/internal/storage"
)

// PipelineResult summarizes a directory run.
type PipelineResult struct {
	Files        int
	Indexed      int
	Failed       int
	Nodes        int
	Edges        int
	DurationSecs float64
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Pipeline indexes document bundles into a store, one graph per file.
type Pipeline struct {
	Indexer *indexer.Indexer
	Store   *storage.Store
	Logger  *log.Logger
}

func (p *Pipeline) log() *log.Logger {
	if p.Logger == nil {
		return logger.Nop()
	}
	return p.Logger
}

// IndexDirectory walks dir and indexes every bundle found. A file that fails
// to decode or index is logged and counted, and the run continues.
func (p *Pipeline) IndexDirectory(ctx context.Context, dir string, progress ProgressCallback) (*PipelineResult, error) {
	start := time.Now()
	report := func(phase string, v float64) {
		if progress != nil {
			progress(phase, v)
		}
	}

	report("Walking files", 0.0)
	entries, err := WalkDocuments(dir)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	report("Walking files", 1.0)

	result := &PipelineResult{Files: len(entries)}

	report("Indexing documents", 0.0)
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.IndexFile(ctx, entry)
		if err != nil {
			result.Failed++
			p.log().Warn("skipping document", "file", entry.RelPath, "err", err)
		} else {
			result.Indexed++
			result.Nodes += res.Nodes
			result.Edges += res.Edges
		}
		report("Indexing documents", float64(i+1)/float64(len(entries)))
	}
	report("Indexing documents", 1.0)

	result.DurationSecs = time.Since(start).Seconds()
	return result, nil
}

// IndexFile indexes one bundle into a fresh graph named after its relative
// path. Older graphs with the same name are deleted once the new graph is
// saved.
func (p *Pipeline) IndexFile(ctx context.Context, entry FileEntry) (*indexer.Result, error) {
	bundle, err := document.ReadBundle(entry.Path)
	if err != nil {
		return nil, err
	}

	previous, err := p.graphsNamed(ctx, entry.RelPath)
	if err != nil {
		return nil, err
	}

	res, err := p.Indexer.Index(ctx, indexer.Request{
		Name:      entry.RelPath,
		Document:  bundle.Document,
		FileIndex: bundle.FileIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("indexing %s: %w", entry.RelPath, err)
	}

	for _, id := range previous {
		if err := p.Store.Delete(ctx, id); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// RemoveFile deletes every graph named after relPath and returns how many
// were removed.
func (p *Pipeline) RemoveFile(ctx context.Context, relPath string) (int, error) {
	ids, err := p.graphsNamed(ctx, relPath)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := p.Store.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (p *Pipeline) graphsNamed(ctx context.Context, name string) ([]string, error) {
	infos, err := p.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, info := range infos {
		if info.Name == name {
			ids = append(ids, info.ID)
		}
	}
	return ids, nil
}

// IndexPath indexes a directory of bundles or a single bundle file. A single
// file's graph is named after its base name.
func (p *Pipeline) IndexPath(ctx context.Context, path string, progress ProgressCallback) (*PipelineResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("accessing %s: %w", path, err)
	}
	if info.IsDir() {
		return p.IndexDirectory(ctx, path, progress)
	}

	start := time.Now()
	entry, err := newFileEntry(filepath.Dir(path), path)
	if err != nil {
		return nil, err
	}
	res, err := p.IndexFile(ctx, entry)
	if err != nil {
		return nil, err
	}
	return &PipelineResult{
		Files:        1,
		Indexed:      1,
		Nodes:        res.Nodes,
		Edges:        res.Edges,
		DurationSecs: time.Since(start).Seconds(),
	}, nil
}

// ExtendGraph indexes the bundle at path into the existing graph ref.
func (p *Pipeline) ExtendGraph(ctx context.Context, ref, path string) (*indexer.Result, error) {
	id, err := p.Store.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	bundle, err := document.ReadBundle(path)
	if err != nil {
		return nil, err
	}
	return p.Indexer.Index(ctx, indexer.Request{
		GraphID:   id,
		Document:  bundle.Document,
		FileIndex: bundle.FileIndex,
	})
}
