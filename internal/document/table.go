package document

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Table is a grid of cells with one or more header rows.
//
// Headers holds the header rows top to bottom; each header row has one label
// per column. Spanning headers repeat their label across the columns they
// cover.
type Table struct {
	ID           string     `json:"id"`
	CaptionRefID string     `json:"caption_ref_id,omitempty"`
	HeadingPath  []string   `json:"heading_path,omitempty"`
	Headers      [][]string `json:"headers,omitempty"`
	Rows         [][]string `json:"rows"`
}

// ElementID implements Element.
func (t *Table) ElementID() string { return t.ID }

// Kind implements Element.
func (t *Table) Kind() ElementKind { return KindTable }

// Header returns the header terms of the cell at (row, col): the column's
// labels from every header row, top to bottom, with blanks and immediate
// repeats dropped.
func (t *Table) Header(row, col int) []string {
	var terms []string
	for _, hr := range t.Headers {
		if col >= len(hr) {
			continue
		}
		label := strings.TrimSpace(hr[col])
		if label == "" {
			continue
		}
		if len(terms) > 0 && terms[len(terms)-1] == label {
			continue
		}
		terms = append(terms, label)
	}
	return terms
}

// HeaderLabel joins the header terms of a cell into one label.
func (t *Table) HeaderLabel(row, col int) string {
	return strings.Join(t.Header(row, col), ", ")
}

// Text returns the cell text of the table joined by spaces.
func (t *Table) Text() string {
	var parts []string
	for _, row := range t.Rows {
		for _, cell := range row {
			if c := strings.TrimSpace(cell); c != "" {
				parts = append(parts, c)
			}
		}
	}
	return strings.Join(parts, " ")
}

// HTML renders the table as an HTML fragment.
func (t *Table) HTML() string {
	table := element(atom.Table)

	if len(t.Headers) > 0 {
		thead := element(atom.Thead)
		for _, hr := range t.Headers {
			thead.AppendChild(row(atom.Th, hr))
		}
		table.AppendChild(thead)
	}

	tbody := element(atom.Tbody)
	for _, r := range t.Rows {
		tbody.AppendChild(row(atom.Td, r))
	}
	table.AppendChild(tbody)

	var sb strings.Builder
	if err := html.Render(&sb, table); err != nil {
		return ""
	}
	return sb.String()
}

func row(cell atom.Atom, values []string) *html.Node {
	tr := element(atom.Tr)
	for _, v := range values {
		c := element(cell)
		c.AppendChild(&html.Node{Type: html.TextNode, Data: v})
		tr.AppendChild(c)
	}
	return tr
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}
