package poml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseOptions controls parsing fidelity.
type ParseOptions struct {
	// PreserveWhitespace keeps whitespace-only text nodes between elements.
	// When false they are dropped, which is what rendering expects.
	PreserveWhitespace bool
	// Lenient relaxes XML strictness (HTML entities, auto-closed void tags).
	Lenient bool
	// Validate runs structural validation after parsing.
	Validate bool
}

var defaultParseOptions = ParseOptions{}
var strictParseOptions = ParseOptions{Validate: true}

// ParseString decodes a POML document from a string.
func ParseString(body string) (*Element, error) {
	return parseWithOptions(strings.NewReader(body), defaultParseOptions)
}

// ParseStringStrict decodes a POML document with validation enabled.
func ParseStringStrict(body string) (*Element, error) {
	return parseWithOptions(strings.NewReader(body), strictParseOptions)
}

// ParseFile decodes a POML document from the given file path.
func ParseFile(path string) (*Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseWithOptions(f, defaultParseOptions)
}

// ParseReader decodes a POML document from an io.Reader.
func ParseReader(r io.Reader) (*Element, error) {
	return parseWithOptions(r, defaultParseOptions)
}

// ParseReaderWithOptions decodes a POML document with fidelity controls.
func ParseReaderWithOptions(r io.Reader, opts ParseOptions) (*Element, error) {
	return parseWithOptions(r, opts)
}

// parseWithOptions builds the element tree. A single top-level element is
// returned as the root; anything else (bare text, several siblings) is
// wrapped in a synthetic <poml> root.
func parseWithOptions(r io.Reader, opts ParseOptions) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = !opts.Lenient
	if opts.Lenient {
		dec.AutoClose = xml.HTMLAutoClose
		dec.Entity = xml.HTMLEntity
	}

	top := &Element{Kind: NodeElement, Tag: "poml"}
	stack := []*Element{top}
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, wrapXMLError(err, "parse poml")
		}
		parent := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Kind: NodeElement, Tag: qualifiedName(t.Name)}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: qualifiedName(a.Name), Value: a.Value})
			}
			parent.Children = append(parent.Children, el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 1 {
				return nil, &POMLError{Type: ErrDecode, Message: fmt.Sprintf("parse poml: unexpected </%s>", t.Name.Local)}
			}
			closed := stack[len(stack)-1]
			closed.Children = compactText(closed.Children, opts.PreserveWhitespace)
			stack = stack[:len(stack)-1]
		case xml.CharData:
			appendText(parent, string(t))
		}
	}
	if len(stack) != 1 {
		return nil, &POMLError{Type: ErrDecode, Message: "parse poml: unexpected EOF before closing <" + stack[len(stack)-1].Tag + ">"}
	}

	top.Children = compactText(top.Children, opts.PreserveWhitespace)
	root := top
	if len(top.Children) == 1 && top.Children[0].Kind == NodeElement {
		root = top.Children[0]
	}
	if opts.Validate {
		if err := Validate(root); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func qualifiedName(n xml.Name) string {
	if n.Space != "" && n.Space != "xmlns" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

// appendText merges adjacent character data (CDATA sections split tokens).
func appendText(parent *Element, text string) {
	if n := len(parent.Children); n > 0 && parent.Children[n-1].Kind == NodeText {
		parent.Children[n-1].Text += text
		return
	}
	parent.Children = append(parent.Children, NewText(text))
}

func compactText(children []*Element, preserve bool) []*Element {
	if preserve {
		return children
	}
	out := children[:0]
	for _, c := range children {
		if c.Kind == NodeText && strings.TrimSpace(c.Text) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// EncodeOptions controls XML serialization of an element tree.
type EncodeOptions struct {
	Indent        string // indentation; empty disables pretty printing
	IncludeHeader bool   // emit xml.Header when true
}

// Encode writes the element tree back to POML XML.
func (e *Element) Encode(w io.Writer) error {
	return e.EncodeWithOptions(w, EncodeOptions{Indent: "  "})
}

// EncodeWithOptions writes an element tree with configurable formatting.
func (e *Element) EncodeWithOptions(w io.Writer, opts EncodeOptions) error {
	if opts.IncludeHeader {
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
	}
	enc := xml.NewEncoder(w)
	if opts.Indent != "" {
		enc.Indent("", opts.Indent)
	}
	if err := encodeElement(enc, e); err != nil {
		return err
	}
	return enc.Flush()
}

func encodeElement(enc *xml.Encoder, e *Element) error {
	if e.Kind == NodeText {
		return enc.EncodeToken(xml.CharData(e.Text))
	}
	start := xml.StartElement{Name: xml.Name{Local: e.Tag}}
	for _, a := range e.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, c := range e.Children {
		if err := encodeElement(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// Validate checks structural rules that do not need a render pass: required
// attributes on control-flow components and at most one output schema.
func Validate(root *Element) error {
	var issues []string
	schemas := 0
	toolNames := make(map[string]struct{})
	var walk func(*Element)
	walk = func(el *Element) {
		if el.Kind != NodeElement {
			return
		}
		switch normalizeTag(el.Tag) {
		case "outputschema":
			schemas++
		case "tooldefinition", "tool":
			name := strings.TrimSpace(el.AttrOr("name", ""))
			if name == "" {
				issues = append(issues, "tool-definition name is required")
			} else if _, ok := toolNames[name]; ok {
				issues = append(issues, fmt.Sprintf("duplicate tool-definition name %q", name))
			}
			toolNames[name] = struct{}{}
		case "include":
			if strings.TrimSpace(el.AttrOr("src", "")) == "" {
				issues = append(issues, "include src is required")
			}
		case "for":
			if !el.HasAttr("variable") || !el.HasAttr("items") {
				issues = append(issues, "for requires variable and items")
			}
		case "if":
			if !el.HasAttr("condition") {
				issues = append(issues, "if requires condition")
			}
		}
		for _, c := range el.Children {
			walk(c)
		}
	}
	walk(root)
	if schemas > 1 {
		issues = append(issues, "only one output-schema is allowed")
	}
	if len(issues) == 0 {
		return nil
	}
	return &POMLError{
		Type:    ErrValidate,
		Message: "validation failed",
		Err:     &ValidationError{Issues: issues},
	}
}
