// Package graph provides the lexical graph data model for lexigraph.
//
// It defines the node and edge types that connect document content
// (paragraphs, tables, headers) to the n-gram symbols derived from their
// text, plus the outline skeleton of the source file.
package graph

import (
	"github.com/google/uuid"

	"github.com/Benny93/lexigraph/internal/symbols"
)

// NodeType is the mutually exclusive type tag of a node.
type NodeType string

const (
	NodeParagraph NodeType = "paragraph"
	NodeTable     NodeType = "table"
	NodeHeader    NodeType = "header"
	NodeUnigram   NodeType = NodeType(symbols.Unigram)
	NodeBigram    NodeType = NodeType(symbols.Bigram)
	NodeTrigram   NodeType = NodeType(symbols.Trigram)
	NodeQuery     NodeType = "query@temp"
)

// IsSymbol reports whether t is one of the n-gram symbol types.
func (t NodeType) IsSymbol() bool {
	return symbols.IsGram(string(t))
}

// IsContent reports whether t carries retrievable text.
func (t NodeType) IsContent() bool {
	switch t {
	case NodeParagraph, NodeTable, NodeHeader:
		return true
	}
	return false
}

// SymbolType maps a gram size onto its node type.
func SymbolType(g symbols.Gram) NodeType {
	return NodeType(g)
}

// EdgeType is the relationship tag of an edge. The zero value is an untyped
// connection, used only to wire a query node to matched symbols.
type EdgeType string

const (
	EdgeUntyped   EdgeType = ""
	EdgeContains  EdgeType = "contains"
	EdgeDescribes EdgeType = "describes"
	EdgePartOf    EdgeType = "part_of"
	EdgeKeyValue  EdgeType = "key_value"
)

// IndexKind classifies the origin of a content node.
type IndexKind string

const (
	IndexPara        IndexKind = "PARA"
	IndexTable       IndexKind = "TABLE"
	IndexTableHeader IndexKind = "TABLE_HEADER"
)

// Outline markers of structural nodes.
const (
	IndexFileRoot = "file@root"
)

// Metadata describes where a content node came from.
type Metadata struct {
	Index       IndexKind `json:"index" msgpack:"index"`
	HeadingPath []string  `json:"heading_path" msgpack:"heading_path"`
	Filename    string    `json:"filename" msgpack:"filename"`
}

// Clone returns a deep copy of m. A nil m yields nil.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	c.HeadingPath = append([]string(nil), m.HeadingPath...)
	return &c
}

// Node is a node of the lexical graph.
type Node struct {
	// ID is the unique key. For symbol nodes it is the symbol string itself.
	ID string `msgpack:"id"`

	// Type is empty for outline and key/value nodes.
	Type NodeType `msgpack:"type,omitempty"`

	// Text is the raw or HTML-rendered content, or the raw key/value text.
	Text string `msgpack:"text,omitempty"`

	// Label is the display label of outline and query nodes.
	Label string `msgpack:"label,omitempty"`

	// Index is the structural marker of outline nodes (e.g. "file@root").
	Index string `msgpack:"index,omitempty"`

	// Metadata is set on content nodes.
	Metadata *Metadata `msgpack:"metadata,omitempty"`

	IsKey bool `msgpack:"is_key,omitempty"`
	IsVal bool `msgpack:"is_val,omitempty"`
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Metadata = n.Metadata.Clone()
	return &c
}

// merge folds the non-zero attributes of other into n. The type, once set,
// never changes, and a node of a different type only contributes its flags.
func (n *Node) merge(other *Node) {
	n.IsKey = n.IsKey || other.IsKey
	n.IsVal = n.IsVal || other.IsVal

	if n.Type == "" {
		n.Type = other.Type
	} else if other.Type != "" && other.Type != n.Type {
		return
	}
	if other.Text != "" {
		n.Text = other.Text
	}
	if other.Label != "" {
		n.Label = other.Label
	}
	if other.Index != "" {
		n.Index = other.Index
	}
	if other.Metadata != nil {
		n.Metadata = other.Metadata.Clone()
	}
}

// Edge is an undirected, typed connection between two nodes. Source and
// Target record the orientation of the first insertion.
type Edge struct {
	Source string   `msgpack:"source"`
	Target string   `msgpack:"target"`
	Type   EdgeType `msgpack:"type,omitempty"`
}

// Other returns the endpoint of e opposite to id.
func (e *Edge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// EdgeKey returns the canonical key of the unordered pair (a, b).
func EdgeKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// NewID generates an opaque graph identifier.
func NewID() string {
	return uuid.NewString()
}
