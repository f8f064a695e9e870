package musicxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// node is a namespace-agnostic element tree. Element and attribute names
// keep only their local part so prefixed documents query the same way as
// plain ones.
type node struct {
	name     string
	attrs    map[string]string
	text     string
	children []*node
}

// parseTree reads an XML document into a node tree rooted at its document
// element.
func parseTree(data []byte) (*node, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charsetReader

	var (
		root  *node
		stack []*node
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, &ParseError{Err: errors.New("multiple document elements")}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, &ParseError{Err: errors.New("no document element")}
	}
	if len(stack) != 0 {
		return nil, &ParseError{Err: errors.New("unexpected end of document")}
	}
	return root, nil
}

// charsetReader lets the decoder accept documents declaring a non-UTF-8
// encoding. Payloads are already UTF-8 by the time they reach the decoder
// when they carried a UTF-16 byte order mark, so those labels pass through.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" || l == "utf-8" || l == "utf8" || strings.HasPrefix(l, "utf-16") {
		return input, nil
	}
	return charset.NewReaderLabel(label, input)
}

// child returns the first direct child with the given local name.
func (n *node) child(name string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// all returns every direct child with the given local name.
func (n *node) all(name string) []*node {
	if n == nil {
		return nil
	}
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// find returns the first descendant (depth-first, document order) with the
// given local name.
func (n *node) find(name string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant with the given local name in document order.
func (n *node) findAll(name string) []*node {
	if n == nil {
		return nil
	}
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
		out = append(out, c.findAll(name)...)
	}
	return out
}

// lookup is the single query used by the parser: the direct child when one
// exists, otherwise the first matching descendant.
func (n *node) lookup(name string) *node {
	if c := n.child(name); c != nil {
		return c
	}
	return n.find(name)
}

// lookupAll mirrors lookup for repeated elements.
func (n *node) lookupAll(name string) []*node {
	if cs := n.all(name); len(cs) > 0 {
		return cs
	}
	return n.findAll(name)
}

func (n *node) attr(name string) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.attrs[name])
}

// value returns the trimmed text of the element found by lookup.
func (n *node) value(name string) string {
	c := n.lookup(name)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.text)
}
