package output

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jonwraymond/datahub/frame"
)

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func cellNode(a atom.Atom, s string) *html.Node {
	n := element(a)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
	return n
}

// renderHTML writes a table whose first column is the reset index.
func renderHTML(f *frame.Frame) ([]byte, error) {
	table := element(atom.Table,
		html.Attribute{Key: "border", Val: "1"},
		html.Attribute{Key: "class", Val: "dataframe"},
	)

	indexName := f.Index.Name
	if indexName == "" {
		indexName = indexHeader
	}
	head := element(atom.Thead)
	hr := element(atom.Tr)
	hr.AppendChild(cellNode(atom.Th, indexName))
	for _, c := range f.Columns {
		hr.AppendChild(cellNode(atom.Th, c.Name))
	}
	head.AppendChild(hr)
	table.AppendChild(head)

	body := element(atom.Tbody)
	for row := 0; row < f.Len(); row++ {
		tr := element(atom.Tr)
		tr.AppendChild(cellNode(atom.Td, htmlText(f.Index, row)))
		for _, c := range f.Columns {
			tr.AppendChild(cellNode(atom.Td, htmlText(c, row)))
		}
		body.AppendChild(tr)
	}
	table.AppendChild(body)

	var buf bytes.Buffer
	if err := html.Render(&buf, table); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func htmlText(c *frame.Column, i int) string {
	s, ok := text(c, i)
	if !ok {
		return "NaN"
	}
	return s
}

func parseHTML(body []byte) (*frame.Frame, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil, fmt.Errorf("%w: no table", ErrMalformed)
	}

	var rows [][]string
	var header []string
	walk(table, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.Tr {
			return
		}
		var cells []string
		headerRow := true
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || (c.DataAtom != atom.Th && c.DataAtom != atom.Td) {
				continue
			}
			if c.DataAtom == atom.Td {
				headerRow = false
			}
			cells = append(cells, textContent(c))
		}
		if headerRow && header == nil {
			header = cells
			return
		}
		rows = append(rows, cells)
	})
	if header == nil {
		return nil, fmt.Errorf("%w: table has no header row", ErrMalformed)
	}

	cols := make([][]string, len(header))
	for r, cells := range rows {
		if len(cells) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d cells, header has %d", ErrMalformed, r, len(cells), len(header))
		}
		for i, s := range cells {
			cols[i] = append(cols[i], s)
		}
	}
	return buildFrame(header, cols)
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(b.String())
}
