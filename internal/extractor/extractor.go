// Package extractor answers free-text queries against a lexical graph.
//
// A query is tokenized into n-gram symbols and attached to the graph through
// a transient query node. Matching cascades from trigrams down to unigrams
// and stops at the first level that reaches content. The query node, and any
// symbol it leaves isolated, are removed before the call returns.
package extractor

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/Benny93/lexigraph/internal/graph"
	"github.com/Benny93/lexigraph/internal/logger"
	"github.com/Benny93/lexigraph/internal/storage"
	"github.com/Benny93/lexigraph/internal/symbols"
	"github.com/Benny93/lexigraph/internal/tokenizer"
)

// DefaultMaxResults is the default number of elements and symbols returned.
const DefaultMaxResults = 10

const labelLimit = 30

// Element is a ranked content node.
type Element struct {
	ID       string          `json:"id"`
	Content  string          `json:"content"`
	Type     graph.NodeType  `json:"type"`
	Metadata *graph.Metadata `json:"metadata"`
	Score    float64         `json:"score"`
}

// Symbol is a ranked symbol node.
type Symbol struct {
	ID      string         `json:"id"`
	Content string         `json:"content"`
	Type    graph.NodeType `json:"type"`
	Score   float64        `json:"score"`
}

// Result is the ranked outcome of one query.
type Result struct {
	Elements []Element `json:"elements"`
	Symbols  []Symbol  `json:"symbols"`

	// Level is the gram size the cascade stopped at, empty when nothing
	// matched.
	Level symbols.Gram `json:"level,omitempty"`
}

// Options tunes ranking.
type Options struct {
	// MaxResults bounds elements and symbols separately. Zero or less
	// disables truncation.
	MaxResults int

	Scoring Scoring
}

// Extractor runs queries against graphs held by a Store.
type Extractor struct {
	store     *storage.Store
	tokenizer tokenizer.Tokenizer
	opts      Options
	logger    *log.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTokenizer replaces the default tokenizer.
func WithTokenizer(tok tokenizer.Tokenizer) Option {
	return func(e *Extractor) { e.tokenizer = tok }
}

// WithOptions sets the ranking options.
func WithOptions(opts Options) Option {
	return func(e *Extractor) { e.opts = opts }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor reading from store.
func New(store *storage.Store, opts ...Option) *Extractor {
	e := &Extractor{
		store:     store,
		tokenizer: tokenizer.New(),
		opts:      Options{MaxResults: DefaultMaxResults, Scoring: ScoringFrequency},
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Options returns the ranking options Extract uses.
func (e *Extractor) Options() Options {
	return e.opts
}

// Extract runs query against the graph identified by ref, a graph id or
// name, using the extractor's options.
func (e *Extractor) Extract(ctx context.Context, ref, query string) (*Result, error) {
	return e.ExtractWith(ctx, ref, query, e.opts)
}

// ExtractWith runs query with explicit ranking options.
func (e *Extractor) ExtractWith(ctx context.Context, ref, query string, opts Options) (*Result, error) {
	start := time.Now()

	result, err := e.extract(ctx, ref, query, opts)
	if err != nil {
		status := "error"
		if storage.IsNotFound(err) {
			status = "not_found"
		}
		extractTotal.WithLabelValues(status, "none").Inc()
		return nil, err
	}

	level := string(result.Level)
	if level == "" {
		level = "none"
	}
	extractTotal.WithLabelValues("success", level).Inc()
	extractDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

func (e *Extractor) extract(ctx context.Context, ref, query string, opts Options) (*Result, error) {
	id, err := e.store.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	unlock := e.store.Lock(id)
	defer unlock()

	g, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tokens := e.tokenizer.Tokenize(query, true)
	syms := symbols.Generate(tokens)

	q, err := attach(g, query)
	if err != nil {
		return nil, err
	}
	defer q.release()

	q.wire(syms)

	level, symScores, elemScores := cascade(g, syms)
	if level != "" && opts.Scoring == ScoringWeighted {
		symScores, elemScores = weighted(g, q.linked, syms[symbols.Unigram])
	}

	result := &Result{
		Elements: renderElements(g, rank(elemScores, opts.MaxResults)),
		Symbols:  renderSymbols(g, rank(symScores, opts.MaxResults)),
		Level:    level,
	}

	e.logger.Debug("extracted",
		"graph", id,
		"query", q.node.Label,
		"level", level,
		"elements", len(result.Elements),
		"symbols", len(result.Symbols),
	)
	return result, nil
}

// queryNode is the transient node of one extraction call.
type queryNode struct {
	g        *graph.Graph
	node     *graph.Node
	linked   []string
	isolated map[string]bool
}

// attach adds a fresh query@temp node to g.
func attach(g *graph.Graph, query string) (*queryNode, error) {
	var id string
	for {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("generating query id: %w", err)
		}
		if !g.HasNode(id) {
			break
		}
	}

	node := g.AddNode(&graph.Node{ID: id, Type: graph.NodeQuery, Label: truncate(query, labelLimit)})
	return &queryNode{g: g, node: node, isolated: make(map[string]bool)}, nil
}

// wire links the query node to every query symbol present in the graph.
func (q *queryNode) wire(syms symbols.Symbols) {
	syms.Each(func(_ symbols.Gram, symbol string) {
		n := q.g.Node(symbol)
		if n == nil || !n.Type.IsSymbol() {
			return
		}
		q.isolated[symbol] = q.g.Degree(symbol) == 0
		q.g.AddEdge(q.node.ID, symbol, graph.EdgeUntyped)
		q.linked = append(q.linked, symbol)
	})
}

// release removes the query node and every linked symbol it leaves without
// edges. Symbols that were already isolated before the call are kept.
func (q *queryNode) release() {
	q.g.RemoveNode(q.node.ID)
	for _, symbol := range q.linked {
		if q.g.Degree(symbol) == 0 && !q.isolated[symbol] {
			q.g.RemoveNode(symbol)
		}
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func renderElements(g *graph.Graph, entries []ranked) []Element {
	out := make([]Element, 0, len(entries))
	for _, r := range entries {
		n := g.Node(r.id)
		if n == nil {
			continue
		}
		out = append(out, Element{
			ID:       n.ID,
			Content:  n.Text,
			Type:     n.Type,
			Metadata: n.Metadata.Clone(),
			Score:    r.score,
		})
	}
	return out
}

func renderSymbols(g *graph.Graph, entries []ranked) []Symbol {
	out := make([]Symbol, 0, len(entries))
	for _, r := range entries {
		n := g.Node(r.id)
		if n == nil {
			continue
		}
		out = append(out, Symbol{
			ID:      n.ID,
			Content: n.Text,
			Type:    n.Type,
			Score:   r.score,
		})
	}
	return out
}
