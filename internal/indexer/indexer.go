// Package indexer materialises segmented documents into lexical graphs.
//
// Element processing runs on a bounded worker pool. Every task returns its
// own Batch; batches are merged into the graph in one single-threaded pass
// after all tasks succeed, followed by exactly one save. A failing task
// aborts the call before anything is merged.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/lexigraph/internal/document"
	"github.com/Benny93/lexigraph/internal/graph"
	"github.com/Benny93/lexigraph/internal/logger"
	"github.com/Benny93/lexigraph/internal/storage"
	"github.com/Benny93/lexigraph/internal/tokenizer"
)

// ErrEmptyRequest is returned when a request carries neither a document nor
// a file outline.
var ErrEmptyRequest = errors.New("nothing to index")

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Request describes one indexing call.
type Request struct {
	// GraphID selects an existing graph to extend. Empty creates a new graph.
	GraphID string

	// Name is the human-facing name of a new graph. Defaults to the
	// document or outline filename.
	Name string

	Document  *document.Document
	FileIndex *document.FileIndex
}

// Result summarizes an indexing call.
type Result struct {
	GraphID  string        `json:"graph_id"`
	Name     string        `json:"name"`
	Elements int           `json:"elements"`
	Nodes    int           `json:"nodes"`
	Edges    int           `json:"edges"`
	Duration time.Duration `json:"duration"`
}

// Indexer builds graphs into a Store.
type Indexer struct {
	store     *storage.Store
	tokenizer tokenizer.Tokenizer
	workers   int
	timeout   time.Duration
	evict     bool
	logger    *log.Logger
	progress  ProgressCallback
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithTokenizer replaces the default tokenizer.
func WithTokenizer(tok tokenizer.Tokenizer) Option {
	return func(ix *Indexer) { ix.tokenizer = tok }
}

// WithWorkers bounds the worker pool. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithTimeout sets a deadline around the worker phase. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(ix *Indexer) { ix.timeout = d }
}

// WithEvictAfterSave drops the graph from the cache after each save.
func WithEvictAfterSave(evict bool) Option {
	return func(ix *Indexer) { ix.evict = evict }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressCallback) Option {
	return func(ix *Indexer) { ix.progress = fn }
}

// DefaultWorkers is the default size of the worker pool.
func DefaultWorkers() int {
	return 4 * runtime.NumCPU()
}

// New creates an Indexer writing into store.
func New(store *storage.Store, opts ...Option) *Indexer {
	ix := &Indexer{
		store:     store,
		tokenizer: tokenizer.New(),
		workers:   DefaultWorkers(),
		evict:     true,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func (ix *Indexer) report(phase string, progress float64) {
	if ix.progress != nil {
		ix.progress(phase, progress)
	}
}

// Index builds the request's outline and elements into a graph and saves it.
func (ix *Indexer) Index(ctx context.Context, req Request) (*Result, error) {
	result, err := ix.index(ctx, req)
	if err != nil {
		indexTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	indexTotal.WithLabelValues("success").Inc()
	indexDuration.Observe(result.Duration.Seconds())
	return result, nil
}

func (ix *Indexer) index(ctx context.Context, req Request) (*Result, error) {
	if req.Document == nil && req.FileIndex == nil {
		return nil, ErrEmptyRequest
	}
	start := time.Now()

	batches, elements, err := ix.build(ctx, req)
	if err != nil {
		return nil, err
	}

	var g *graph.Graph
	id := req.GraphID
	created := id == ""
	if created {
		g = ix.store.Create(requestName(req))
		id = g.ID()
	}

	unlock := ix.store.Lock(id)
	defer unlock()

	if !created {
		g, err = ix.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	ix.report("Merging", 0.0)
	for _, b := range batches {
		g.Apply(b.Nodes, b.Edges)
	}
	ix.report("Merging", 1.0)

	ix.report("Saving", 0.0)
	if err := ix.store.Save(ctx, g); err != nil {
		return nil, err
	}
	if ix.evict {
		ix.store.Evict(id)
	}
	ix.report("Saving", 1.0)

	result := &Result{
		GraphID:  id,
		Name:     g.Name(),
		Elements: elements,
		Nodes:    g.NodeCount(),
		Edges:    g.EdgeCount(),
		Duration: time.Since(start),
	}
	ix.logger.Info("indexed graph",
		"id", result.GraphID,
		"name", result.Name,
		"elements", result.Elements,
		"nodes", result.Nodes,
		"edges", result.Edges,
		"duration", result.Duration,
	)
	return result, nil
}

func requestName(req Request) string {
	switch {
	case req.Name != "":
		return req.Name
	case req.Document != nil && req.Document.Filename != "":
		return req.Document.Filename
	case req.FileIndex != nil:
		return req.FileIndex.Filename
	}
	return ""
}

// build produces the batches of a request in document order. The outline
// and per-table setup run sequentially; paragraphs and table rows run on
// the worker pool.
func (ix *Indexer) build(ctx context.Context, req Request) ([]*Batch, int, error) {
	var (
		batches  []*Batch
		tasks    []func() *Batch
		elements int
	)

	if req.FileIndex != nil {
		ix.report("Building outline", 0.0)
		batches = append(batches, outlineBatch(req.FileIndex))
		indexElements.WithLabelValues("outline").Inc()
		ix.report("Building outline", 1.0)
	}

	if doc := req.Document; doc != nil {
		for _, el := range doc.Elements {
			switch e := el.(type) {
			case *document.Paragraph:
				tasks = append(tasks, func() *Batch {
					return paragraphBatch(ix.tokenizer, e, doc.Filename)
				})
				indexElements.WithLabelValues(string(document.KindParagraph)).Inc()
				elements++

			case *document.Table:
				node := tableNode(doc, e)
				batches = append(batches, &Batch{Nodes: []*graph.Node{node}})
				headers := newHeaderCache(ix.tokenizer, e)
				for _, row := range e.Rows {
					tasks = append(tasks, func() *Batch {
						return rowBatch(ix.tokenizer, node, headers, row)
					})
				}
				indexElements.WithLabelValues(string(document.KindTable)).Inc()
				elements++
			}
		}
	}

	results, err := ix.run(ctx, tasks)
	if err != nil {
		return nil, 0, err
	}
	return append(batches, results...), elements, nil
}

// run executes tasks on the bounded pool. Results keep task order.
func (ix *Indexer) run(ctx context.Context, tasks []func() *Batch) ([]*Batch, error) {
	if ix.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.timeout)
		defer cancel()
	}

	results := make([]*Batch, len(tasks))
	if len(tasks) == 0 {
		return results, ctx.Err()
	}

	var (
		mu   sync.Mutex
		done int
	)
	ix.report("Processing elements", 0.0)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, task := range tasks {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = task()

			mu.Lock()
			done++
			ix.report("Processing elements", float64(done)/float64(len(tasks)))
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("processing elements: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("processing elements: %w", err)
	}
	return results, nil
}
