// Package storage persists lexical graphs and caches them in process.
//
// A Backend is the durable copy: one graph per opaque identifier. The Store
// sits in front of it, serving a single shared graph instance per id and
// guarding mutation with a per-id lock.
package storage

import (
	"context"
	"errors"

	"github.com/Benny93/lexigraph/internal/graph"
)

// ErrGraphNotFound is returned when no graph exists for an identifier.
var ErrGraphNotFound = errors.New("graph not found")

// Backend defines the interface for durable graph storage.
//
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Load returns the stored graph with the given id, or ErrGraphNotFound.
	Load(ctx context.Context, id string) (*graph.Graph, error)

	// Save replaces the stored copy of the graph with its current state.
	Save(ctx context.Context, g *graph.Graph) error

	// Delete removes the stored graph. Deleting a missing graph is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the summaries of all stored graphs ordered by name.
	List(ctx context.Context) ([]graph.Info, error)

	// Close releases all resources held by the backend.
	Close() error
}
