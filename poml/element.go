package poml

import (
	"sort"
	"strings"
)

// NodeKind distinguishes text nodes from element nodes.
type NodeKind int

const (
	NodeElement NodeKind = iota
	NodeText
)

// Element is a parsed markup node. A text node carries only Text; an element
// node carries a tag, attributes and ordered children (text or elements).
//
// Elements are treated as immutable once parsed. Components that need a
// modified view (stylesheet defaults, loop substitution) work on copies.
type Element struct {
	Kind     NodeKind
	Tag      string
	Attrs    []Attr
	Children []*Element
	Text     string
}

// Attr is a single attribute in document order.
type Attr struct {
	Name  string
	Value string
}

// NewText builds a text node.
func NewText(text string) *Element {
	return &Element{Kind: NodeText, Text: text}
}

// NewElement builds an element node with attributes given as name/value pairs.
func NewElement(tag string, attrs map[string]string, children ...*Element) *Element {
	el := &Element{Kind: NodeElement, Tag: tag, Children: children}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		el.Attrs = append(el.Attrs, Attr{Name: k, Value: attrs[k]})
	}
	return el
}

// IsText reports whether the node is a text node.
func (e *Element) IsText() bool {
	return e != nil && e.Kind == NodeText
}

// Attr returns the attribute value using case-insensitive name matching.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, a := range e.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when absent.
func (e *Element) AttrOr(name, def string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return def
}

// HasAttr reports whether the attribute is present.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// AttrMap returns a copy of the attributes keyed by their original names.
func (e *Element) AttrMap() map[string]string {
	out := make(map[string]string, len(e.Attrs))
	for _, a := range e.Attrs {
		out[a.Name] = a.Value
	}
	return out
}

// TextContent concatenates the text of the node and all descendants.
func (e *Element) TextContent() string {
	if e == nil {
		return ""
	}
	if e.Kind == NodeText {
		return e.Text
	}
	var b strings.Builder
	for _, c := range e.Children {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

// ElementChildren returns only the element-kind children.
func (e *Element) ElementChildren() []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Kind == NodeElement {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy of the subtree.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	cp := &Element{Kind: e.Kind, Tag: e.Tag, Text: e.Text}
	if len(e.Attrs) > 0 {
		cp.Attrs = append([]Attr(nil), e.Attrs...)
	}
	if len(e.Children) > 0 {
		cp.Children = make([]*Element, len(e.Children))
		for i, c := range e.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return cp
}

// withAttrs returns a shallow copy sharing children but owning attrs.
func (e *Element) withAttrs(attrs []Attr) *Element {
	cp := *e
	cp.Attrs = attrs
	return &cp
}

// classNames returns the whitespace separated className attribute values.
func (e *Element) classNames() []string {
	v, ok := e.Attr("className")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

// normalizeTag folds a tag name for registry lookup so that kebab, snake and
// camel spellings of the same component resolve together.
func normalizeTag(tag string) string {
	return strings.ToLower(tagFolder.Replace(strings.TrimSpace(tag)))
}

var tagFolder = strings.NewReplacer("-", "", "_", "")
