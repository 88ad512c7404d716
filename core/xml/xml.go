// Package xml reads the XML files a project directory carries: the
// BookNames.xml table and Settings.xml. Queries are XPath.
//
// xmlquery parses with encoding/xml, which never fetches external
// entities, so project files from untrusted sources are safe to load.
package xml

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document is a parsed XML file.
type Document struct {
	root *xmlquery.Node
}

// Element is one element of a Document.
type Element struct {
	node *xmlquery.Node
}

// Parse parses an in-memory document.
func Parse(data []byte) (*Document, error) {
	return Read(bytes.NewReader(data))
}

// Read parses a document from r.
func Read(r io.Reader) (*Document, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Select returns every element matching expr, in document order.
func (d *Document) Select(expr string) ([]Element, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	var out []Element
	for _, n := range xmlquery.QuerySelectorAll(d.root, compiled) {
		if n.Type == xmlquery.ElementNode {
			out = append(out, Element{node: n})
		}
	}
	return out, nil
}

// Records selects the elements matching expr and reads the named
// attributes of each. Missing attributes are empty strings.
func (d *Document) Records(expr string, attrs ...string) ([]map[string]string, error) {
	elems, err := d.Select(expr)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(elems))
	for i, e := range elems {
		rec := make(map[string]string, len(attrs))
		for _, a := range attrs {
			rec[a] = e.Attr(a)
		}
		out[i] = rec
	}
	return out, nil
}

// ChildValues returns the trimmed text of every element directly under the
// document element, keyed by element name. Later duplicates win. This is
// the shape of Settings.xml.
func (d *Document) ChildValues() map[string]string {
	values := make(map[string]string)
	top := xmlquery.FindOne(d.root, "/*")
	if top == nil {
		return values
	}
	for child := top.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			values[child.Data] = strings.TrimSpace(child.InnerText())
		}
	}
	return values
}

// Name is the element's local name.
func (e Element) Name() string { return e.node.Data }

// Text is the concatenated text of the element and its descendants.
func (e Element) Text() string { return e.node.InnerText() }

// Attr returns an attribute value, or "" when absent.
func (e Element) Attr(name string) string { return e.node.SelectAttr(name) }
