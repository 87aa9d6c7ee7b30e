package document

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBundle = `{
  "document": {
    "id": "doc-1",
    "filename": "leaflet.pdf",
    "elements": [
      {"type": "paragraph", "id": "p1", "text": "Patient received Drug A 10mg: twice daily", "heading_path": ["Dosage"]},
      {"type": "paragraph", "id": "cap1", "text": "Table 1. Dosing"},
      {"type": "table", "id": "t1", "caption_ref_id": "cap1", "heading_path": ["Dosage"],
       "headers": [["Dose", "Frequency"]], "rows": [["10mg", "twice daily"]]}
    ]
  },
  "file_index": {
    "id": "file-1",
    "filename": "leaflet.pdf",
    "nodes": [{"id": "s1", "label": "Dosage", "index": "section@outline",
               "children": [{"id": "s1.1", "label": "Adults", "index": "section@outline"}]}]
  }
}`

func TestReadBundle(t *testing.T) {
	t.Parallel()

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "leaflet.json")
		require.NoError(t, os.WriteFile(path, []byte(sampleBundle), 0o644))

		b, err := ReadBundle(path)
		require.NoError(t, err)
		require.NotNil(t, b.Document)
		require.NotNil(t, b.FileIndex)

		doc := b.Document
		assert.Equal(t, "leaflet.pdf", doc.Filename)
		require.Len(t, doc.Elements, 3)
		assert.Equal(t, KindParagraph, doc.Elements[0].Kind())
		assert.Equal(t, KindTable, doc.Elements[2].Kind())

		tbl, ok := doc.ElementByID("t1").(*Table)
		require.True(t, ok)
		caption, ok := doc.Caption(tbl)
		assert.True(t, ok)
		assert.Equal(t, "Table 1. Dosing", caption)

		assert.Len(t, b.FileIndex.Nodes[0].Children, 1)
	})

	t.Run("UnknownElementType", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"document":{"elements":[{"type":"figure","id":"f1"}]}}`), 0o644))

		_, err := ReadBundle(path)
		assert.ErrorContains(t, err, "unknown type")
	})

	t.Run("MissingID", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"document":{"elements":[{"type":"paragraph","text":"x"}]}}`), 0o644))

		_, err := ReadBundle(path)
		assert.ErrorContains(t, err, "missing id")
	})

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

		_, err := ReadBundle(path)
		assert.Error(t, err)
	})
}

func TestDocument_MarshalJSON(t *testing.T) {
	t.Parallel()

	doc := New("d", "f.txt",
		&Paragraph{ID: "p1", Text: "hello"},
		&Table{ID: "t1", Rows: [][]string{{"a"}}},
	)

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Elements, 2)
	assert.Equal(t, "hello", decoded.ElementByID("p1").(*Paragraph).Text)
	assert.Equal(t, KindTable, decoded.ElementByID("t1").Kind())
}

func TestTable_Header(t *testing.T) {
	t.Parallel()

	tbl := &Table{
		ID: "t",
		Headers: [][]string{
			{"Dose", "Dose", "Notes"},
			{"Adult", "Child", ""},
		},
		Rows: [][]string{{"10mg", "5mg", "with food"}},
	}

	assert.Equal(t, []string{"Dose", "Adult"}, tbl.Header(0, 0))
	assert.Equal(t, "Dose, Child", tbl.HeaderLabel(0, 1))
	assert.Equal(t, []string{"Notes"}, tbl.Header(0, 2))
	assert.Empty(t, tbl.Header(0, 7))
	assert.Equal(t, "10mg 5mg with food", tbl.Text())
}

func TestTable_HTML(t *testing.T) {
	t.Parallel()

	tbl := &Table{
		ID:      "t",
		Headers: [][]string{{"Dose"}},
		Rows:    [][]string{{"<10mg>"}},
	}

	assert.Equal(t,
		"<table><thead><tr><th>Dose</th></tr></thead><tbody><tr><td>&lt;10mg&gt;</td></tr></tbody></table>",
		tbl.HTML())
}
