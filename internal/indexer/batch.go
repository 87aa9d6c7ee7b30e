package indexer

import (
	"strings"

	"github.com/Benny93/lexigraph/internal/document"
	"github.com/Benny93/lexigraph/internal/graph"
	"github.com/Benny93/lexigraph/internal/symbols"
	"github.com/Benny93/lexigraph/internal/tokenizer"
)

// Batch is the node and edge output of one unit of indexing work. Batches
// are built without touching any graph and merged afterwards.
type Batch struct {
	Nodes []*graph.Node
	Edges []*graph.Edge
}

func (b *Batch) node(n *graph.Node) {
	b.Nodes = append(b.Nodes, n)
}

func (b *Batch) edge(source, target string, t graph.EdgeType) {
	b.Edges = append(b.Edges, &graph.Edge{Source: source, Target: target, Type: t})
}

// symbols adds one node per distinct symbol and links each to owner.
func (b *Batch) symbols(owner string, syms symbols.Symbols) {
	syms.Each(func(gram symbols.Gram, symbol string) {
		b.node(&graph.Node{ID: symbol, Type: graph.SymbolType(gram)})
		b.edge(owner, symbol, graph.EdgeContains)
	})
}

// keyValue adds a key/value node pair joined by a key_value edge. It reports
// false when either side has no tokens.
func (b *Batch) keyValue(keyID, keyText, valID, valText string) bool {
	if keyID == "" || valID == "" {
		return false
	}
	b.node(&graph.Node{ID: keyID, Text: keyText, IsKey: true})
	b.node(&graph.Node{ID: valID, Text: valText, IsVal: true})
	b.edge(keyID, valID, graph.EdgeKeyValue)
	return true
}

// outlineBatch builds the file root node and one part_of-linked node per
// outline item.
func outlineBatch(idx *document.FileIndex) *Batch {
	b := &Batch{}
	b.node(&graph.Node{ID: idx.ID, Label: idx.Filename, Index: graph.IndexFileRoot})

	var walk func(item document.IndexItem, parent string)
	walk = func(item document.IndexItem, parent string) {
		b.node(&graph.Node{ID: item.ID, Label: item.Label, Index: item.Index})
		b.edge(parent, item.ID, graph.EdgePartOf)
		for _, child := range item.Children {
			walk(child, item.ID)
		}
	}
	for _, item := range idx.Nodes {
		walk(item, idx.ID)
	}
	return b
}

// paragraphBatch builds a paragraph node, its symbols, and the key/value
// pairs of its "key: value" lines.
func paragraphBatch(tok tokenizer.Tokenizer, p *document.Paragraph, filename string) *Batch {
	b := &Batch{}
	b.node(&graph.Node{
		ID:   p.ID,
		Type: graph.NodeParagraph,
		Text: p.Text,
		Metadata: &graph.Metadata{
			Index:       graph.IndexPara,
			HeadingPath: p.HeadingPath,
			Filename:    filename,
		},
	})
	b.symbols(p.ID, symbols.Generate(tok.Tokenize(p.Text, true)))

	for _, line := range strings.Split(p.Text, "\n") {
		key, val, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		keyID := symbols.MaxGram(tok.Tokenize(key, true))
		valID := symbols.MaxGram(tok.Tokenize(val, false))
		if !b.keyValue(keyID, key, valID, val) {
			continue
		}
		b.edge(p.ID, keyID, graph.EdgeContains)
		b.edge(p.ID, valID, graph.EdgeDescribes)
	}
	return b
}

// splitKeyValue splits a line on its first colon. Both sides are trimmed and
// must be non-empty.
func splitKeyValue(line string) (key, val string, ok bool) {
	key, val, found := strings.Cut(strings.TrimSpace(line), ":")
	if !found {
		return "", "", false
	}
	key, val = strings.TrimSpace(key), strings.TrimSpace(val)
	if key == "" || val == "" {
		return "", "", false
	}
	return key, val, true
}

// headerEntry is the tokenized form of one column header, computed once per
// table and shared read-only by its row tasks.
type headerEntry struct {
	label   string
	symbols symbols.Symbols
	keyID   string
}

// headerCache maps column index to header entry.
type headerCache []headerEntry

func newHeaderCache(tok tokenizer.Tokenizer, t *document.Table) headerCache {
	cols := 0
	for _, row := range t.Rows {
		cols = max(cols, len(row))
	}

	cache := make(headerCache, cols)
	for col := range cols {
		label := t.HeaderLabel(0, col)
		tokens := tok.Tokenize(label, false)
		cache[col] = headerEntry{
			label:   label,
			symbols: symbols.Generate(tokens),
			keyID:   symbols.MaxGram(tokens),
		}
	}
	return cache
}

// tableNode resolves the key, heading path and node of a table.
func tableNode(doc *document.Document, t *document.Table) *graph.Node {
	id := t.ID
	if t.CaptionRefID != "" {
		id = t.CaptionRefID
	}

	headingPath := append([]string(nil), t.HeadingPath...)
	if caption, ok := doc.Caption(t); ok {
		headingPath = append(headingPath, caption)
	}

	return &graph.Node{
		ID:   id,
		Type: graph.NodeTable,
		Text: t.HTML(),
		Metadata: &graph.Metadata{
			Index:       graph.IndexTable,
			HeadingPath: headingPath,
			Filename:    doc.Filename,
		},
	}
}

// rowBatch builds the header nodes, symbols and key/value pairs of one table
// row. Cells without a header label are skipped.
func rowBatch(tok tokenizer.Tokenizer, table *graph.Node, headers headerCache, row []string) *Batch {
	b := &Batch{}
	for col, cell := range row {
		h := headers[col]
		if h.label == "" {
			continue
		}

		b.node(&graph.Node{
			ID:   h.label,
			Type: graph.NodeHeader,
			Text: h.label,
			Metadata: &graph.Metadata{
				Index:       graph.IndexTableHeader,
				HeadingPath: table.Metadata.HeadingPath,
				Filename:    table.Metadata.Filename,
			},
		})
		b.edge(table.ID, h.label, graph.EdgePartOf)
		b.symbols(h.label, h.symbols)

		cell = strings.TrimSpace(cell)
		b.symbols(h.label, symbols.Generate(tok.Tokenize(cell, true)))
		b.keyValue(h.keyID, h.label, symbols.MaxGram(tok.Tokenize(cell, false)), cell)
	}
	return b
}
