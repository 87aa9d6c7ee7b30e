package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Benny93/lexigraph/internal/graph"
)

// Key prefixes for different record types. Node and edge keys are scoped by
// graph id and save generation: "n:<graph>:<gen>:<node>",
// "e:<graph>:<gen>:<edge key>".
const (
	prefixMeta = "m:" // graph summary
	prefixNode = "n:" // node data
	prefixEdge = "e:" // edge data
)

// BadgerBackend is a BadgerDB-backed Backend.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	mu          sync.RWMutex
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
// If readOnly is true, the database is opened in read-only mode.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR)

	if readOnly {
		opts = opts.WithReadOnly(true)
	}
	return b.open(opts)
}

// InitializeInMemory opens a database that lives only in memory.
func (b *BadgerBackend) InitializeInMemory() error {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR)
	return b.open(opts)
}

func (b *BadgerBackend) open(opts badger.Options) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.db = db
	b.initialized = true
	return nil
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// metaRecord is the stored summary of a graph. Generation names the set of
// node and edge records the summary refers to.
type metaRecord struct {
	graph.Info `msgpack:",inline"`
	Generation uint64 `msgpack:"generation"`
}

// checkEvery is the number of records queued between context checks.
const checkEvery = 1024

// Load implements Backend. Only records of the generation named by the meta
// record are read.
func (b *BadgerBackend) Load(ctx context.Context, id string) (*graph.Graph, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, errors.New("badger backend not initialized")
	}

	var (
		meta  metaRecord
		nodes []*graph.Node
		edges []*graph.Edge
	)

	err := b.db.View(func(txn *badger.Txn) error {
		found, err := readMeta(txn, id, &meta)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrGraphNotFound, id)
		}

		if err := scan(ctx, txn, generationPrefix(prefixNode, id, meta.Generation), func(val []byte) error {
			var node graph.Node
			if err := msgpack.Unmarshal(val, &node); err != nil {
				return fmt.Errorf("unmarshaling node: %w", err)
			}
			nodes = append(nodes, &node)
			return nil
		}); err != nil {
			return err
		}

		return scan(ctx, txn, generationPrefix(prefixEdge, id, meta.Generation), func(val []byte) error {
			var edge graph.Edge
			if err := msgpack.Unmarshal(val, &edge); err != nil {
				return fmt.Errorf("unmarshaling edge: %w", err)
			}
			edges = append(edges, &edge)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	g := graph.New(meta.ID, meta.Name)
	g.Apply(nodes, edges)
	g.Touch(meta.UpdatedAt)
	return g, nil
}

// readMeta decodes the meta record of id into meta. It reports false when
// the graph has none.
func readMeta(txn *badger.Txn, id string, meta *metaRecord) (bool, error) {
	item, err := txn.Get(metaKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting graph meta: %w", err)
	}
	if err := item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, meta)
	}); err != nil {
		return false, fmt.Errorf("unmarshaling graph meta: %w", err)
	}
	return true, nil
}

// scan calls fn with the value of every key under prefix.
func scan(ctx context.Context, txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// Save implements Backend.
//
// Records are written under a new generation that nothing refers to yet.
// The meta record is then switched to it in one transaction, and the
// records of older generations are removed. A save that fails before the
// switch leaves the previous state as the stored copy.
func (b *BadgerBackend) Save(ctx context.Context, g *graph.Graph) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return errors.New("badger backend not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	id := g.ID()
	var prev metaRecord
	if err := b.db.View(func(txn *badger.Txn) error {
		_, err := readMeta(txn, id, &prev)
		return err
	}); err != nil {
		return err
	}
	gen := prev.Generation + 1

	// Records left behind by an interrupted save of the same generation.
	if err := b.dropGeneration(id, gen); err != nil {
		return err
	}

	if err := b.writeGeneration(ctx, g, gen); err != nil {
		_ = b.dropGeneration(id, gen)
		return err
	}

	meta, err := msgpack.Marshal(metaRecord{Info: g.Info(), Generation: gen})
	if err != nil {
		_ = b.dropGeneration(id, gen)
		return fmt.Errorf("marshaling graph meta: %w", err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(id), meta)
	}); err != nil {
		_ = b.dropGeneration(id, gen)
		return fmt.Errorf("committing graph %s: %w", id, err)
	}

	// Superseded records are unreachable; a failure here is retried by the
	// next Save or Delete of the graph.
	_ = b.dropSuperseded(id, gen)
	return nil
}

// writeGeneration stores every node and edge of g under gen.
func (b *BadgerBackend) writeGeneration(ctx context.Context, g *graph.Graph, gen uint64) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	queued := 0
	set := func(key []byte, v any) error {
		if queued%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		queued++

		data, err := msgpack.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		if err := wb.Set(key, data); err != nil {
			return fmt.Errorf("setting record: %w", err)
		}
		return nil
	}

	for node := range g.IterNodes() {
		if err := set(nodeKey(g.ID(), gen, node.ID), node); err != nil {
			return err
		}
	}
	for edge := range g.IterEdges() {
		if err := set(edgeKey(g.ID(), gen, edge), edge); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing graph %s: %w", g.ID(), err)
	}
	return nil
}

// dropGeneration removes the node and edge records of one generation.
// Caller must hold the lock.
func (b *BadgerBackend) dropGeneration(id string, gen uint64) error {
	keys, err := b.keysWithPrefix(generationPrefix(prefixNode, id, gen), generationPrefix(prefixEdge, id, gen))
	if err != nil {
		return err
	}
	return b.deleteKeys(keys)
}

// dropSuperseded removes the node and edge records of every generation of id
// other than gen. Caller must hold the lock.
func (b *BadgerBackend) dropSuperseded(id string, gen uint64) error {
	keys, err := b.existingKeys(id)
	if err != nil {
		return err
	}
	nodes, edges := generationPrefix(prefixNode, id, gen), generationPrefix(prefixEdge, id, gen)
	for key := range keys {
		if strings.HasPrefix(key, string(nodes)) || strings.HasPrefix(key, string(edges)) {
			delete(keys, key)
		}
	}
	return b.deleteKeys(keys)
}

// existingKeys collects the node and edge keys of every generation stored
// for a graph. Caller must hold the lock.
func (b *BadgerBackend) existingKeys(id string) (map[string]struct{}, error) {
	return b.keysWithPrefix(scopedPrefix(prefixNode, id), scopedPrefix(prefixEdge, id))
}

func (b *BadgerBackend) keysWithPrefix(prefixes ...[]byte) (map[string]struct{}, error) {
	keys := make(map[string]struct{})

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		for _, prefix := range prefixes {
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				keys[string(it.Item().KeyCopy(nil))] = struct{}{}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing stored keys: %w", err)
	}
	return keys, nil
}

func (b *BadgerBackend) deleteKeys(keys map[string]struct{}) error {
	if len(keys) == 0 {
		return nil
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for key := range keys {
		if err := wb.Delete([]byte(key)); err != nil {
			return fmt.Errorf("deleting record: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

// Delete implements Backend. The meta record goes first, so a failure part
// way through leaves only unreachable records behind.
func (b *BadgerBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return errors.New("badger backend not initialized")
	}

	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(metaKey(id))
	}); err != nil {
		return fmt.Errorf("deleting graph meta: %w", err)
	}

	keys, err := b.existingKeys(id)
	if err != nil {
		return err
	}
	return b.deleteKeys(keys)
}

// List implements Backend.
func (b *BadgerBackend) List(ctx context.Context) ([]graph.Info, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, errors.New("badger backend not initialized")
	}

	infos := []graph.Info{}
	err := b.db.View(func(txn *badger.Txn) error {
		return scan(ctx, txn, []byte(prefixMeta), func(val []byte) error {
			var meta metaRecord
			if err := msgpack.Unmarshal(val, &meta); err != nil {
				return fmt.Errorf("unmarshaling graph meta: %w", err)
			}
			infos = append(infos, meta.Info)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortInfos(infos)
	return infos, nil
}

func sortInfos(infos []graph.Info) {
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].ID < infos[j].ID
	})
}

func metaKey(id string) []byte {
	return []byte(prefixMeta + id)
}

func scopedPrefix(prefix, id string) []byte {
	return []byte(prefix + id + ":")
}

func generationPrefix(prefix, id string, gen uint64) []byte {
	return fmt.Appendf(nil, "%s%s:%016x:", prefix, id, gen)
}

func nodeKey(id string, gen uint64, nodeID string) []byte {
	return append(generationPrefix(prefixNode, id, gen), nodeID...)
}

func edgeKey(id string, gen uint64, edge *graph.Edge) []byte {
	return append(generationPrefix(prefixEdge, id, gen), graph.EdgeKey(edge.Source, edge.Target)...)
}
