// Package graph provides the in-memory lexical graph for lexigraph.
//
// The graph is undirected and attributed: at most one edge joins any pair of
// nodes, and re-adding a pair updates its type. Secondary indexes on node
// type, adjacency and symbol tokens keep lookups proportional to the result
// rather than the graph.
package graph

import (
	"sync"
	"time"

	"github.com/Benny93/lexigraph/internal/symbols"
)

// Graph is the node/edge graph of one index.
//
// Removing a node cascades to every edge touching it. All methods are safe
// for concurrent use; callers that need several operations to appear atomic
// must serialise them externally (see storage.Store.Lock).
type Graph struct {
	mu        sync.RWMutex
	id        string
	name      string
	updatedAt time.Time

	nodes map[string]*Node
	edges map[string]*Edge

	// Secondary indexes, kept in sync by the add/remove helpers.
	byType map[NodeType]map[string]*Node
	adj    map[string]map[string]*Edge
	tokens map[string]map[string]struct{}
}

// New creates an empty graph with the given identifier and display name.
func New(id, name string) *Graph {
	return &Graph{
		id:     id,
		name:   name,
		nodes:  make(map[string]*Node),
		edges:  make(map[string]*Edge),
		byType: make(map[NodeType]map[string]*Node),
		adj:    make(map[string]map[string]*Edge),
		tokens: make(map[string]map[string]struct{}),
	}
}

// ID returns the opaque graph identifier.
func (g *Graph) ID() string { return g.id }

// Name returns the human-facing index name.
func (g *Graph) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.name
}

// SetName changes the human-facing index name.
func (g *Graph) SetName(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.name = name
}

// UpdatedAt returns the time of the last Touch.
func (g *Graph) UpdatedAt() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.updatedAt
}

// Touch records t as the last modification time.
func (g *Graph) Touch(t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updatedAt = t
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// CountByType returns the number of nodes of the given type.
func (g *Graph) CountByType(t NodeType) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byType[t])
}

// IterNodes returns a channel that yields all nodes.
func (g *Graph) IterNodes() <-chan *Node {
	g.mu.RLock()
	ch := make(chan *Node, len(g.nodes))
	for _, node := range g.nodes {
		ch <- node
	}
	close(ch)
	g.mu.RUnlock()
	return ch
}

// IterEdges returns a channel that yields all edges.
func (g *Graph) IterEdges() <-chan *Edge {
	g.mu.RLock()
	ch := make(chan *Edge, len(g.edges))
	for _, edge := range g.edges {
		ch <- edge
	}
	close(ch)
	g.mu.RUnlock()
	return ch
}

// AddNode inserts a node, or merges its attributes into the existing node
// with the same ID. It returns the stored node.
func (g *Graph) AddNode(node *Node) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addNode(node)
}

func (g *Graph) addNode(node *Node) *Node {
	existing, ok := g.nodes[node.ID]
	if !ok {
		stored := node.Clone()
		g.nodes[stored.ID] = stored
		g.indexNode(stored)
		return stored
	}

	wasTyped := existing.Type != ""
	existing.merge(node)
	if !wasTyped && existing.Type != "" {
		g.indexNode(existing)
	}
	return existing
}

// indexNode adds a typed node to the type and token indexes.
// Must be called with the write lock held.
func (g *Graph) indexNode(node *Node) {
	if node.Type == "" {
		return
	}
	if g.byType[node.Type] == nil {
		g.byType[node.Type] = make(map[string]*Node)
	}
	g.byType[node.Type][node.ID] = node

	if node.Type.IsSymbol() {
		for _, token := range symbols.Split(node.ID) {
			if g.tokens[token] == nil {
				g.tokens[token] = make(map[string]struct{})
			}
			g.tokens[token][node.ID] = struct{}{}
		}
	}
}

// Node returns the node with the given ID, or nil if it does not exist.
func (g *Graph) Node(id string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// HasNode reports whether a node with the given ID exists.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// NodesByType returns all nodes of the given type.
func (g *Graph) NodesByType(t NodeType) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := g.byType[t]
	result := make([]*Node, 0, len(nodes))
	for _, node := range nodes {
		result = append(result, node)
	}
	return result
}

// RemoveNode removes a node and cascade-deletes its edges.
// Returns true if the node existed and was removed.
func (g *Graph) RemoveNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return false
	}

	delete(g.nodes, id)
	if node.Type != "" {
		delete(g.byType[node.Type], id)
		if len(g.byType[node.Type]) == 0 {
			delete(g.byType, node.Type)
		}
	}
	if node.Type.IsSymbol() {
		for _, token := range symbols.Split(id) {
			delete(g.tokens[token], id)
			if len(g.tokens[token]) == 0 {
				delete(g.tokens, token)
			}
		}
	}

	for neighbor := range g.adj[id] {
		delete(g.edges, EdgeKey(id, neighbor))
		delete(g.adj[neighbor], id)
	}
	delete(g.adj, id)
	return true
}

// AddEdge connects source and target. Missing endpoints are created as bare
// nodes. If the pair is already connected, a non-empty type replaces the
// existing one. Self-loops are ignored and return nil.
func (g *Graph) AddEdge(source, target string, t EdgeType) *Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addEdge(source, target, t)
}

func (g *Graph) addEdge(source, target string, t EdgeType) *Edge {
	if source == target {
		return nil
	}

	key := EdgeKey(source, target)
	if existing, ok := g.edges[key]; ok {
		if t != EdgeUntyped {
			existing.Type = t
		}
		return existing
	}

	for _, id := range []string{source, target} {
		if _, ok := g.nodes[id]; !ok {
			g.nodes[id] = &Node{ID: id}
		}
	}

	edge := &Edge{Source: source, Target: target, Type: t}
	g.edges[key] = edge

	if g.adj[source] == nil {
		g.adj[source] = make(map[string]*Edge)
	}
	g.adj[source][target] = edge
	if g.adj[target] == nil {
		g.adj[target] = make(map[string]*Edge)
	}
	g.adj[target][source] = edge
	return edge
}

// Apply inserts a batch of nodes and then a batch of edges under a single
// lock acquisition.
func (g *Graph) Apply(nodes []*Node, edges []*Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, node := range nodes {
		g.addNode(node)
	}
	for _, edge := range edges {
		g.addEdge(edge.Source, edge.Target, edge.Type)
	}
}

// Edge returns the edge joining a and b, or nil.
func (g *Graph) Edge(a, b string) *Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[EdgeKey(a, b)]
}

// Edges returns the edges touching the node. If edgeType is provided, only
// edges of that type are returned.
func (g *Graph) Edges(id string, edgeType ...EdgeType) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	adj := g.adj[id]
	result := make([]*Edge, 0, len(adj))
	for _, edge := range adj {
		if len(edgeType) > 0 && edge.Type != edgeType[0] {
			continue
		}
		result = append(result, edge)
	}
	return result
}

// Neighbors returns the IDs of the nodes adjacent to id.
func (g *Graph) Neighbors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	adj := g.adj[id]
	result := make([]string, 0, len(adj))
	for neighbor := range adj {
		result = append(result, neighbor)
	}
	return result
}

// Degree returns the number of edges touching the node.
func (g *Graph) Degree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.adj[id])
}

// LexicalDegree returns the number of contains edges touching the node.
func (g *Graph) LexicalDegree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, edge := range g.adj[id] {
		if edge.Type == EdgeContains {
			n++
		}
	}
	return n
}

// SymbolsWithToken returns the IDs of symbol nodes whose key, split on "_",
// contains token.
func (g *Graph) SymbolsWithToken(token string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.tokens[token]
	result := make([]string, 0, len(ids))
	for id := range ids {
		result = append(result, id)
	}
	return result
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c := New(g.id, g.name)
	c.updatedAt = g.updatedAt
	for _, node := range g.nodes {
		c.addNode(node)
	}
	for _, edge := range g.edges {
		c.addEdge(edge.Source, edge.Target, edge.Type)
	}
	return c
}

// Stats returns a summary of graph size.
func (g *Graph) Stats() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := map[string]int{
		"nodes": len(g.nodes),
		"edges": len(g.edges),
	}
	for t, nodes := range g.byType {
		stats[string(t)] = len(nodes)
	}
	return stats
}

// Info is a serialisable summary of a graph.
type Info struct {
	ID        string    `json:"id" msgpack:"id"`
	Name      string    `json:"name" msgpack:"name"`
	Nodes     int       `json:"nodes" msgpack:"nodes"`
	Edges     int       `json:"edges" msgpack:"edges"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}

// Info returns the summary of the graph.
func (g *Graph) Info() Info {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return Info{
		ID:        g.id,
		Name:      g.name,
		Nodes:     len(g.nodes),
		Edges:     len(g.edges),
		UpdatedAt: g.updatedAt,
	}
}
