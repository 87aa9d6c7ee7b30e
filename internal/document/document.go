// Package document defines the segmented document model consumed by the
// indexer: ordered paragraph and table elements plus an optional outline
// (table of contents) of the source file.
//
// Segmentation itself happens upstream; this package only carries its
// result and knows how to decode it from JSON.
package document

import (
	"encoding/json"
	"fmt"
	"os"
)

// ElementKind tags an element of a segmented document.
type ElementKind string

const (
	KindParagraph ElementKind = "paragraph"
	KindTable     ElementKind = "table"
)

// Element is one segment of a document.
type Element interface {
	// ElementID returns the element's identifier, unique within the document.
	ElementID() string

	// Kind returns the element kind.
	Kind() ElementKind
}

// Paragraph is a block of rendered text.
type Paragraph struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	HeadingPath []string `json:"heading_path,omitempty"`
}

// ElementID implements Element.
func (p *Paragraph) ElementID() string { return p.ID }

// Kind implements Element.
func (p *Paragraph) Kind() ElementKind { return KindParagraph }

// Document is an ordered sequence of elements from one source file.
type Document struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Elements []Element `json:"-"`

	byID map[string]Element
}

// New creates a document from elements.
func New(id, filename string, elements ...Element) *Document {
	d := &Document{ID: id, Filename: filename, Elements: elements}
	d.reindex()
	return d
}

func (d *Document) reindex() {
	d.byID = make(map[string]Element, len(d.Elements))
	for _, el := range d.Elements {
		d.byID[el.ElementID()] = el
	}
}

// ElementByID returns the element with the given id, or nil.
func (d *Document) ElementByID(id string) Element {
	if id == "" {
		return nil
	}
	if d.byID == nil {
		d.reindex()
	}
	return d.byID[id]
}

// ElementText returns the plain text of an element: a paragraph's text or
// the cell text of a table joined by spaces.
func ElementText(el Element) string {
	switch e := el.(type) {
	case *Paragraph:
		return e.Text
	case *Table:
		return e.Text()
	}
	return ""
}

// Caption resolves the text of a table's caption element, if any.
func (d *Document) Caption(t *Table) (string, bool) {
	el := d.ElementByID(t.CaptionRefID)
	if el == nil {
		return "", false
	}
	return ElementText(el), true
}

type rawElement struct {
	Type ElementKind `json:"type"`
}

type documentJSON struct {
	ID       string            `json:"id"`
	Filename string            `json:"filename"`
	Elements []json.RawMessage `json:"elements"`
}

// UnmarshalJSON decodes a document whose elements are tagged by "type".
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.ID = raw.ID
	d.Filename = raw.Filename
	d.Elements = make([]Element, 0, len(raw.Elements))

	for i, msg := range raw.Elements {
		var probe rawElement
		if err := json.Unmarshal(msg, &probe); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}

		var el Element
		switch probe.Type {
		case KindParagraph:
			el = &Paragraph{}
		case KindTable:
			el = &Table{}
		default:
			return fmt.Errorf("element %d: unknown type %q", i, probe.Type)
		}
		if err := json.Unmarshal(msg, el); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		if el.ElementID() == "" {
			return fmt.Errorf("element %d: missing id", i)
		}
		d.Elements = append(d.Elements, el)
	}

	d.reindex()
	return nil
}

// MarshalJSON encodes the document with "type"-tagged elements.
func (d *Document) MarshalJSON() ([]byte, error) {
	elements := make([]json.RawMessage, 0, len(d.Elements))
	for _, el := range d.Elements {
		body, err := json.Marshal(el)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		fields["type"], _ = json.Marshal(el.Kind())
		tagged, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		elements = append(elements, tagged)
	}
	return json.Marshal(documentJSON{ID: d.ID, Filename: d.Filename, Elements: elements})
}

// IndexItem is one entry of a file outline.
type IndexItem struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Index    string      `json:"index"`
	Children []IndexItem `json:"children,omitempty"`
}

// FileIndex is the outline skeleton of a source file.
type FileIndex struct {
	ID       string      `json:"id"`
	Filename string      `json:"filename"`
	Nodes    []IndexItem `json:"nodes"`
}

// Bundle is the on-disk unit of ingestion: a segmented document and its
// optional outline.
type Bundle struct {
	Document  *Document  `json:"document,omitempty"`
	FileIndex *FileIndex `json:"file_index,omitempty"`
}

// ReadBundle decodes a bundle from a JSON file.
func ReadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if b.Document == nil && b.FileIndex == nil {
		return nil, fmt.Errorf("%s: neither document nor file_index present", path)
	}
	return &b, nil
}
