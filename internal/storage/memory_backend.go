package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/Benny93/lexigraph/internal/graph"
)

// MemoryBackend is an in-memory implementation of Backend for testing.
// Graphs are copied on save and on load, so the stored copy stays
// independent of any cached instance.
type MemoryBackend struct {
	mu     sync.RWMutex
	graphs map[string]*graph.Graph
	loads  int
	saves  int
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{graphs: make(map[string]*graph.Graph)}
}

// Load implements Backend.
func (m *MemoryBackend) Load(ctx context.Context, id string) (*graph.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loads++
	g, ok := m.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	return g.Clone(), nil
}

// Save implements Backend.
func (m *MemoryBackend) Save(ctx context.Context, g *graph.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	m.graphs[g.ID()] = g.Clone()
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.graphs, id)
	return nil
}

// List implements Backend.
func (m *MemoryBackend) List(ctx context.Context) ([]graph.Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]graph.Info, 0, len(m.graphs))
	for _, g := range m.graphs {
		infos = append(infos, g.Info())
	}
	sortInfos(infos)
	return infos, nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs = make(map[string]*graph.Graph)
	return nil
}

// Loads returns the number of Load calls served.
func (m *MemoryBackend) Loads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads
}

// Saves returns the number of Save calls served.
func (m *MemoryBackend) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
