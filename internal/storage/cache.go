package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/Benny93/lexigraph/internal/graph"
	"github.com/Benny93/lexigraph/internal/logger"
)

// Store caches graphs loaded from a Backend.
//
// Concurrent callers of Get for the same id receive the same *graph.Graph.
// Callers that mutate a graph, or that need a consistent view across several
// operations, must hold the id's lock from Lock for the duration.
type Store struct {
	backend Backend
	logger  *log.Logger

	mu     sync.Mutex
	graphs map[string]*graph.Graph
	locks  map[string]*idLock
	loads  singleflight.Group
}

// idLock is the lock of one graph id, counted by its holders and waiters.
type idLock struct {
	mu   sync.Mutex
	refs int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used by the store.
func WithLogger(l *log.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a cache in front of backend.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		logger:  logger.Nop(),
		graphs:  make(map[string]*graph.Graph),
		locks:   make(map[string]*idLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the durable backend of the store.
func (s *Store) Backend() Backend {
	return s.backend
}

// Lock acquires the mutual-exclusion scope of one graph id and returns the
// function that releases it. Different ids never contend. A lock entry lives
// only while some caller holds or waits for it.
func (s *Store) Lock(id string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &idLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// Get returns the cached graph for id, loading it from the backend on a miss.
func (s *Store) Get(ctx context.Context, id string) (*graph.Graph, error) {
	if g := s.cached(id); g != nil {
		cacheEvents.WithLabelValues("hit").Inc()
		return g, nil
	}
	cacheEvents.WithLabelValues("miss").Inc()

	v, err, _ := s.loads.Do(id, func() (any, error) {
		if g := s.cached(id); g != nil {
			return g, nil
		}

		g, err := s.backend.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		cacheEvents.WithLabelValues("load").Inc()
		s.logger.Debug("loaded graph", "id", id, "nodes", g.NodeCount(), "edges", g.EdgeCount())

		s.mu.Lock()
		defer s.mu.Unlock()
		// A graph created or saved while loading wins over the stored copy.
		if existing, ok := s.graphs[id]; ok {
			return existing, nil
		}
		s.graphs[id] = g
		return g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading graph %s: %w", id, err)
	}
	return v.(*graph.Graph), nil
}

func (s *Store) cached(id string) *graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graphs[id]
}

// Create returns a new empty graph with a generated id, registered in the
// cache. It is not persisted until Save.
func (s *Store) Create(name string) *graph.Graph {
	g := graph.New(graph.NewID(), name)

	s.mu.Lock()
	s.graphs[g.ID()] = g
	s.mu.Unlock()
	return g
}

// Save writes the full state of g to the backend and keeps it cached. When
// the backend write fails, g is evicted so the next Get serves the stored
// copy instead of the unsaved changes.
func (s *Store) Save(ctx context.Context, g *graph.Graph) error {
	g.Touch(time.Now().UTC())
	if err := s.backend.Save(ctx, g); err != nil {
		s.Evict(g.ID())
		return fmt.Errorf("saving graph %s: %w", g.ID(), err)
	}
	cacheEvents.WithLabelValues("save").Inc()

	s.mu.Lock()
	s.graphs[g.ID()] = g
	s.mu.Unlock()
	return nil
}

// Evict drops id from the cache. The next Get reloads it from the backend.
func (s *Store) Evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.graphs[id]; ok {
		delete(s.graphs, id)
		cacheEvents.WithLabelValues("evict").Inc()
	}
}

// Delete removes id from the cache and the backend.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.Evict(id)
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting graph %s: %w", id, err)
	}
	cacheEvents.WithLabelValues("delete").Inc()
	return nil
}

// List returns the summaries of all persisted graphs.
func (s *Store) List(ctx context.Context) ([]graph.Info, error) {
	infos, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing graphs: %w", err)
	}
	return infos, nil
}

// Resolve maps a graph id or a graph name to a graph id. Ids take
// precedence; among graphs sharing a name the most recently updated wins.
func (s *Store) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrGraphNotFound)
	}
	if g := s.cached(ref); g != nil {
		return ref, nil
	}

	infos, err := s.List(ctx)
	if err != nil {
		return "", err
	}

	var match *graph.Info
	for i := range infos {
		info := &infos[i]
		if info.ID == ref {
			return info.ID, nil
		}
		if info.Name == ref && (match == nil || info.UpdatedAt.After(match.UpdatedAt)) {
			match = info
		}
	}
	if match == nil {
		return "", fmt.Errorf("%w: %s", ErrGraphNotFound, ref)
	}
	return match.ID, nil
}

// IsNotFound reports whether err signals a missing graph.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGraphNotFound)
}
