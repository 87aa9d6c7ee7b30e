package indexer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/lexigraph/internal/document"
	"github.com/Benny93/lexigraph/internal/graph"
	"github.com/Benny93/lexigraph/internal/storage"
)

func setupIndexer(t *testing.T, opts ...Option) (*Indexer, *storage.Store, *storage.MemoryBackend) {
	t.Helper()

	backend := storage.NewMemoryBackend()
	store := storage.NewStore(backend)
	return New(store, opts...), store, backend
}

func loadGraph(t *testing.T, store *storage.Store, id string) *graph.Graph {
	t.Helper()

	g, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	return g
}

func TestIndexer_Paragraph(t *testing.T) {
	t.Parallel()

	ix, store, backend := setupIndexer(t)
	doc := document.New("d1", "leaflet.pdf", &document.Paragraph{
		ID:          "p1",
		Text:        "Patient received Drug A 10mg: twice daily",
		HeadingPath: []string{"Dosage"},
	})

	result, err := ix.Index(context.Background(), Request{Document: doc})
	require.NoError(t, err)

	assert.NotEmpty(t, result.GraphID)
	assert.Equal(t, "leaflet.pdf", result.Name)
	assert.Equal(t, 1, result.Elements)
	assert.Equal(t, 20, result.Nodes)
	assert.Equal(t, 20, result.Edges)
	assert.Equal(t, 1, backend.Saves())

	g := loadGraph(t, store, result.GraphID)

	p := g.Node("p1")
	require.NotNil(t, p)
	assert.Equal(t, graph.NodeParagraph, p.Type)
	assert.Equal(t, graph.IndexPara, p.Metadata.Index)
	assert.Equal(t, []string{"Dosage"}, p.Metadata.HeadingPath)
	assert.Equal(t, "leaflet.pdf", p.Metadata.Filename)

	for _, id := range []string{"drug", "a", "10mg", "patient", "receive"} {
		require.NotNil(t, g.Node(id), id)
		assert.Equal(t, graph.NodeUnigram, g.Node(id).Type, id)
	}
	assert.Equal(t, graph.NodeBigram, g.Node("drug_a").Type)
	assert.Equal(t, graph.NodeTrigram, g.Node("receive_drug_a").Type)
	assert.Equal(t, graph.EdgeContains, g.Edge("p1", "drug_a").Type)

	key := g.Node("patient_receive_drug_a_10mg")
	require.NotNil(t, key)
	assert.True(t, key.IsKey)
	assert.Equal(t, "Patient received Drug A 10mg", key.Text)

	val := g.Node("twice_daily")
	require.NotNil(t, val)
	assert.True(t, val.IsVal)
	assert.Equal(t, graph.NodeBigram, val.Type)
	assert.Equal(t, "twice daily", val.Text)

	assert.Equal(t, graph.EdgeKeyValue, g.Edge("patient_receive_drug_a_10mg", "twice_daily").Type)
	assert.Equal(t, graph.EdgeContains, g.Edge("p1", "patient_receive_drug_a_10mg").Type)
	assert.Equal(t, graph.EdgeDescribes, g.Edge("p1", "twice_daily").Type)
}

func TestIndexer_Idempotent(t *testing.T) {
	t.Parallel()

	ix, store, _ := setupIndexer(t)
	doc := document.New("d1", "a.pdf", &document.Paragraph{ID: "p1", Text: "drug a twice daily"})

	first, err := ix.Index(context.Background(), Request{Document: doc})
	require.NoError(t, err)

	second, err := ix.Index(context.Background(), Request{GraphID: first.GraphID, Document: doc})
	require.NoError(t, err)

	assert.Equal(t, first.GraphID, second.GraphID)
	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Edges, second.Edges)
	assert.Equal(t, 10, first.Nodes)
	assert.Equal(t, 9, loadGraph(t, store, first.GraphID).LexicalDegree("p1"))
}

func TestIndexer_TableRoundTrip(t *testing.T) {
	t.Parallel()

	ix, store, _ := setupIndexer(t)
	doc := document.New("d1", "leaflet.pdf", &document.Table{
		ID:          "t1",
		HeadingPath: []string{"Dosage"},
		Headers:     [][]string{{"Dose"}},
		Rows:        [][]string{{"10mg"}},
	})

	result, err := ix.Index(context.Background(), Request{Document: doc})
	require.NoError(t, err)
	g := loadGraph(t, store, result.GraphID)

	table := g.Node("t1")
	require.NotNil(t, table)
	assert.Equal(t, graph.NodeTable, table.Type)
	assert.Contains(t, table.Text, "<th>Dose</th>")
	assert.Equal(t, graph.IndexTable, table.Metadata.Index)

	header := g.Node("Dose")
	require.NotNil(t, header)
	assert.Equal(t, graph.NodeHeader, header.Type)
	assert.Equal(t, graph.IndexTableHeader, header.Metadata.Index)
	assert.Equal(t, []string{"Dosage"}, header.Metadata.HeadingPath)

	assert.Equal(t, graph.EdgePartOf, g.Edge("t1", "Dose").Type)
	assert.Equal(t, graph.EdgeContains, g.Edge("Dose", "dose").Type)
	assert.Equal(t, graph.EdgeContains, g.Edge("Dose", "10mg").Type)
	assert.Equal(t, graph.EdgeKeyValue, g.Edge("dose", "10mg").Type)

	assert.True(t, g.Node("dose").IsKey)
	assert.True(t, g.Node("10mg").IsVal)
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 4, g.EdgeCount())
}

func TestIndexer_TableCaption(t *testing.T) {
	t.Parallel()

	ix, store, _ := setupIndexer(t)
	doc := document.New("d1", "leaflet.pdf",
		&document.Paragraph{ID: "cap1", Text: "Table 1 doses"},
		&document.Table{
			ID:           "t1",
			CaptionRefID: "cap1",
			HeadingPath:  []string{"Dosage"},
			Headers:      [][]string{{"Dose", "Frequency"}},
			Rows:         [][]string{{"10mg", "twice daily"}, {"20mg", "once"}},
		},
	)

	result, err := ix.Index(context.Background(), Request{Document: doc})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Elements)
	g := loadGraph(t, store, result.GraphID)

	table := g.Node("cap1")
	require.NotNil(t, table)
	assert.Equal(t, graph.NodeTable, table.Type)
	assert.Equal(t, []string{"Dosage", "Table 1 doses"}, table.Metadata.HeadingPath)
	assert.False(t, g.HasNode("t1"))

	assert.Equal(t, graph.EdgePartOf, g.Edge("cap1", "Frequency").Type)
	assert.Equal(t, graph.EdgeKeyValue, g.Edge("frequency", "twice_daily").Type)
	assert.Equal(t, graph.EdgeKeyValue, g.Edge("frequency", "once").Type)
	assert.Equal(t, graph.EdgeContains, g.Edge("Frequency", "twice_daily").Type)
	assert.Equal(t, graph.EdgeContains, g.Edge("Dose", "20mg").Type)
	assert.Equal(t, graph.EdgeContains, g.Edge("cap1", "dose").Type)
}

func TestIndexer_Outline(t *testing.T) {
	t.Parallel()

	ix, store, _ := setupIndexer(t)
	idx := &document.FileIndex{
		ID:       "f1",
		Filename: "leaflet.pdf",
		Nodes: []document.IndexItem{
			{ID: "s1", Label: "Intro", Index: "1", Children: []document.IndexItem{
				{ID: "s1.1", Label: "Scope", Index: "1.1"},
			}},
			{ID: "s2", Label: "Dosage", Index: "2"},
		},
	}

	result, err := ix.Index(context.Background(), Request{Name: "outline", FileIndex: idx})
	require.NoError(t, err)
	assert.Equal(t, "outline", result.Name)
	assert.Equal(t, 0, result.Elements)

	g := loadGraph(t, store, result.GraphID)
	root := g.Node("f1")
	require.NotNil(t, root)
	assert.Equal(t, graph.IndexFileRoot, root.Index)
	assert.Equal(t, "leaflet.pdf", root.Label)
	assert.Equal(t, "Scope", g.Node("s1.1").Label)

	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, graph.EdgePartOf, g.Edge("f1", "s1").Type)
	assert.Equal(t, graph.EdgePartOf, g.Edge("s1", "s1.1").Type)
}

func TestIndexer_EmptyRequest(t *testing.T) {
	t.Parallel()

	ix, _, backend := setupIndexer(t)

	_, err := ix.Index(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyRequest)
	assert.Equal(t, 0, backend.Saves())
}

func TestIndexer_UnknownGraph(t *testing.T) {
	t.Parallel()

	ix, _, _ := setupIndexer(t)
	doc := document.New("d1", "a.pdf", &document.Paragraph{ID: "p1", Text: "x"})

	_, err := ix.Index(context.Background(), Request{GraphID: "missing", Document: doc})
	assert.ErrorIs(t, err, storage.ErrGraphNotFound)
}

type slowTokenizer struct {
	delay time.Duration
}

func (s slowTokenizer) Tokenize(text string, strict bool) []string {
	time.Sleep(s.delay)
	return strings.Fields(strings.ToLower(text))
}

func TestIndexer_TimeoutAbortsBeforeSave(t *testing.T) {
	t.Parallel()

	ix, store, backend := setupIndexer(t,
		WithTokenizer(slowTokenizer{delay: 50 * time.Millisecond}),
		WithTimeout(time.Millisecond),
	)
	doc := document.New("d1", "a.pdf", &document.Paragraph{ID: "p1", Text: "drug a"})

	_, err := ix.Index(context.Background(), Request{Document: doc})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, backend.Saves())

	infos, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

var errSaveFailed = errors.New("disk full")

// failingBackend is a MemoryBackend whose saves can be switched to fail.
type failingBackend struct {
	*storage.MemoryBackend
	fail bool
}

func (f *failingBackend) Save(ctx context.Context, g *graph.Graph) error {
	if f.fail {
		return errSaveFailed
	}
	return f.MemoryBackend.Save(ctx, g)
}

func TestIndexer_FailedSaveLeavesStoredGraph(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &failingBackend{MemoryBackend: storage.NewMemoryBackend()}
	store := storage.NewStore(backend)
	ix := New(store, WithEvictAfterSave(false))

	first := document.New("d1", "a.pdf", &document.Paragraph{ID: "p1", Text: "drug alpha"})
	result, err := ix.Index(ctx, Request{Document: first})
	require.NoError(t, err)
	before := loadGraph(t, store, result.GraphID).NodeCount()

	backend.fail = true
	second := document.New("d2", "b.pdf", &document.Paragraph{ID: "p2", Text: "gamma stored cold"})
	_, err = ix.Index(ctx, Request{GraphID: result.GraphID, Document: second})
	require.ErrorIs(t, err, errSaveFailed)

	g := loadGraph(t, store, result.GraphID)
	assert.False(t, g.HasNode("p2"))
	assert.False(t, g.HasNode("gamma"))
	assert.True(t, g.HasNode("p1"))
	assert.Equal(t, before, g.NodeCount())

	backend.fail = false
	third := document.New("d3", "c.pdf", &document.Paragraph{ID: "p3", Text: "drug beta"})
	_, err = ix.Index(ctx, Request{GraphID: result.GraphID, Document: third})
	require.NoError(t, err)

	stored, err := backend.Load(ctx, result.GraphID)
	require.NoError(t, err)
	assert.True(t, stored.HasNode("p3"))
	assert.False(t, stored.HasNode("p2"))
}

func TestIndexer_EvictAfterSave(t *testing.T) {
	t.Parallel()

	doc := document.New("d1", "a.pdf", &document.Paragraph{ID: "p1", Text: "drug a"})

	t.Run("Evicts", func(t *testing.T) {
		t.Parallel()
		ix, store, backend := setupIndexer(t)
		result, err := ix.Index(context.Background(), Request{Document: doc})
		require.NoError(t, err)

		loadGraph(t, store, result.GraphID)
		assert.Equal(t, 1, backend.Loads())
	})

	t.Run("Keeps", func(t *testing.T) {
		t.Parallel()
		ix, store, backend := setupIndexer(t, WithEvictAfterSave(false))
		result, err := ix.Index(context.Background(), Request{Document: doc})
		require.NoError(t, err)

		loadGraph(t, store, result.GraphID)
		assert.Equal(t, 0, backend.Loads())
	})
}

func TestIndexer_ManyElementsBoundedPool(t *testing.T) {
	t.Parallel()

	var els []document.Element
	for i := range 50 {
		els = append(els, &document.Paragraph{
			ID:   "p" + string(rune('A'+i%26)) + string(rune('a'+i/26)),
			Text: "shared term",
		})
	}

	var (
		mu     sync.Mutex
		phases = make(map[string]float64)
	)
	ix, store, _ := setupIndexer(t, WithWorkers(3), WithProgress(func(phase string, progress float64) {
		mu.Lock()
		defer mu.Unlock()
		phases[phase] = max(phases[phase], progress)
	}))

	result, err := ix.Index(context.Background(), Request{Document: document.New("d", "a.pdf", els...)})
	require.NoError(t, err)

	g := loadGraph(t, store, result.GraphID)
	assert.Equal(t, 50, g.Degree("shared_term"))
	assert.Equal(t, 50, g.CountByType(graph.NodeParagraph))
	assert.Equal(t, 1.0, phases["Processing elements"])
	assert.Equal(t, 1.0, phases["Saving"])
}

func TestSplitKeyValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line     string
		key, val string
		ok       bool
	}{
		{"Dose: 10mg", "Dose", "10mg", true},
		{"  Time : 08:00  ", "Time", "08:00", true},
		{"no colon here", "", "", false},
		{": value", "", "", false},
		{"key:   ", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			key, val, ok := splitKeyValue(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.val, val)
		})
	}
}
