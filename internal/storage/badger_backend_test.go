package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/lexigraph/internal/graph"
)

func setupTestBadgerBackend(t *testing.T) *BadgerBackend {
	t.Helper()

	backend := NewBadgerBackend()
	require.NoError(t, backend.InitializeInMemory())
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func sampleGraph(id, name string) *graph.Graph {
	g := graph.New(id, name)
	g.AddNode(&graph.Node{
		ID:   "p1",
		Type: graph.NodeParagraph,
		Text: "Patient received Drug A",
		Metadata: &graph.Metadata{
			Index:       graph.IndexPara,
			HeadingPath: []string{"Dosage"},
			Filename:    "leaflet.pdf",
		},
	})
	g.AddNode(&graph.Node{ID: "drug", Type: graph.NodeUnigram})
	g.AddNode(&graph.Node{ID: "drug_a", Type: graph.NodeBigram, IsKey: true})
	g.AddEdge("p1", "drug", graph.EdgeContains)
	g.AddEdge("p1", "drug_a", graph.EdgeContains)
	return g
}

func TestBadgerBackend_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "badger")

		backend := NewBadgerBackend()
		err := backend.Initialize(dbPath, false)

		assert.NoError(t, err)
		assert.NotNil(t, backend.db)
		assert.True(t, backend.initialized)

		backend.Close()
	})

	t.Run("ReadOnly", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "badger")

		backend1 := NewBadgerBackend()
		require.NoError(t, backend1.Initialize(dbPath, false))
		backend1.Close()

		backend2 := NewBadgerBackend()
		err := backend2.Initialize(dbPath, true)

		assert.NoError(t, err)
		assert.True(t, backend2.initialized)

		backend2.Close()
	})

	t.Run("InvalidPath", func(t *testing.T) {
		backend := NewBadgerBackend()
		err := backend.Initialize("/nonexistent/path/that/does/not/exist", false)

		assert.Error(t, err)
	})
}

func TestBadgerBackend_SaveLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := setupTestBadgerBackend(t)

	require.NoError(t, backend.Save(ctx, sampleGraph("g1", "leaflet")))

	loaded, err := backend.Load(ctx, "g1")
	require.NoError(t, err)

	assert.Equal(t, "g1", loaded.ID())
	assert.Equal(t, "leaflet", loaded.Name())
	assert.Equal(t, 3, loaded.NodeCount())
	assert.Equal(t, 2, loaded.EdgeCount())

	p := loaded.Node("p1")
	require.NotNil(t, p)
	assert.Equal(t, graph.NodeParagraph, p.Type)
	require.NotNil(t, p.Metadata)
	assert.Equal(t, []string{"Dosage"}, p.Metadata.HeadingPath)
	assert.Equal(t, graph.EdgeContains, loaded.Edge("drug_a", "p1").Type)
	assert.True(t, loaded.Node("drug_a").IsKey)
	assert.Equal(t, []string{"drug_a"}, loaded.SymbolsWithToken("a"))
}

func TestBadgerBackend_SaveRemovesStaleRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := setupTestBadgerBackend(t)

	g := sampleGraph("g1", "leaflet")
	require.NoError(t, backend.Save(ctx, g))

	g.RemoveNode("drug")
	require.NoError(t, backend.Save(ctx, g))

	loaded, err := backend.Load(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, loaded.HasNode("drug"))
	assert.Equal(t, 2, loaded.NodeCount())
	assert.Equal(t, 1, loaded.EdgeCount())
	assert.Equal(t, 3, storedRecords(t, backend, "g1"))
}

// storedRecords counts the node and edge records of every generation of id.
func storedRecords(t *testing.T, backend *BadgerBackend, id string) int {
	t.Helper()

	keys, err := backend.existingKeys(id)
	require.NoError(t, err)
	return len(keys)
}

// cancelAfter is a context whose Err starts reporting cancellation once it
// has been consulted allowed times.
type cancelAfter struct {
	context.Context
	allowed atomic.Int64
}

func newCancelAfter(allowed int64) *cancelAfter {
	c := &cancelAfter{Context: context.Background()}
	c.allowed.Store(allowed)
	return c
}

func (c *cancelAfter) Err() error {
	if c.allowed.Add(-1) < 0 {
		return context.Canceled
	}
	return nil
}

func TestBadgerBackend_FailedSaveKeepsPreviousState(t *testing.T) {
	t.Parallel()

	t.Run("CancelledBeforeWrite", func(t *testing.T) {
		t.Parallel()
		backend := setupTestBadgerBackend(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := backend.Save(ctx, sampleGraph("g1", "leaflet"))
		require.ErrorIs(t, err, context.Canceled)

		_, err = backend.Load(context.Background(), "g1")
		assert.ErrorIs(t, err, ErrGraphNotFound)
		assert.Zero(t, storedRecords(t, backend, "g1"))
	})

	t.Run("CancelledLargeGraph", func(t *testing.T) {
		t.Parallel()
		backend := setupTestBadgerBackend(t)

		g := graph.New("g1", "leaflet")
		g.AddNode(&graph.Node{ID: "p1", Type: graph.NodeParagraph, Text: "Drug A"})
		require.NoError(t, backend.Save(context.Background(), g))

		// Enough records for the write batch to commit some of them on its
		// own before the cancellation is seen.
		nodes := make([]*graph.Node, 0, 100_000)
		for i := range 100_000 {
			nodes = append(nodes, &graph.Node{ID: fmt.Sprintf("sym_%06d", i), Type: graph.NodeUnigram})
		}
		g.Apply(nodes, nil)

		err := backend.Save(newCancelAfter(90), g)
		require.ErrorIs(t, err, context.Canceled)

		loaded, err := backend.Load(context.Background(), "g1")
		require.NoError(t, err)
		assert.Equal(t, 1, loaded.NodeCount())
		assert.True(t, loaded.HasNode("p1"))
		assert.Equal(t, 1, storedRecords(t, backend, "g1"))

		infos, err := backend.List(context.Background())
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, 1, infos[0].Nodes)
	})

	t.Run("LaterSaveSucceeds", func(t *testing.T) {
		t.Parallel()
		backend := setupTestBadgerBackend(t)

		g := sampleGraph("g1", "leaflet")
		require.NoError(t, backend.Save(context.Background(), g))

		g.AddNode(&graph.Node{ID: "cold", Type: graph.NodeUnigram})
		require.ErrorIs(t, backend.Save(newCancelAfter(1), g), context.Canceled)
		require.NoError(t, backend.Save(context.Background(), g))

		loaded, err := backend.Load(context.Background(), "g1")
		require.NoError(t, err)
		assert.Equal(t, 4, loaded.NodeCount())
		assert.Equal(t, 6, storedRecords(t, backend, "g1"))
	})
}

func TestBadgerBackend_LoadNotFound(t *testing.T) {
	t.Parallel()

	backend := setupTestBadgerBackend(t)

	_, err := backend.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrGraphNotFound)
}

func TestBadgerBackend_GraphsIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := setupTestBadgerBackend(t)

	require.NoError(t, backend.Save(ctx, sampleGraph("g1", "one")))
	other := graph.New("g2", "two")
	other.AddNode(&graph.Node{ID: "x", Type: graph.NodeUnigram})
	require.NoError(t, backend.Save(ctx, other))

	loaded, err := backend.Load(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.NodeCount())
	assert.Equal(t, 0, loaded.EdgeCount())
}

func TestBadgerBackend_DeleteAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := setupTestBadgerBackend(t)

	require.NoError(t, backend.Save(ctx, sampleGraph("g2", "beta")))
	require.NoError(t, backend.Save(ctx, sampleGraph("g1", "alpha")))

	infos, err := backend.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, 3, infos[0].Nodes)
	assert.Equal(t, 2, infos[0].Edges)

	require.NoError(t, backend.Delete(ctx, "g1"))
	require.NoError(t, backend.Delete(ctx, "never-existed"))

	infos, err = backend.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "g2", infos[0].ID)

	_, err = backend.Load(ctx, "g1")
	assert.ErrorIs(t, err, ErrGraphNotFound)
	assert.Zero(t, storedRecords(t, backend, "g1"))
}

func TestBadgerBackend_Persistent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "badger")

	backend := NewBadgerBackend()
	require.NoError(t, backend.Initialize(dbPath, false))
	require.NoError(t, backend.Save(ctx, sampleGraph("g1", "leaflet")))
	require.NoError(t, backend.Close())

	reopened := NewBadgerBackend()
	require.NoError(t, reopened.Initialize(dbPath, true))
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.NodeCount())
}

func TestBadgerBackend_Closed(t *testing.T) {
	t.Parallel()

	backend := NewBadgerBackend()

	_, err := backend.Load(context.Background(), "g1")
	assert.Error(t, err)
	assert.NoError(t, backend.Close())
}
