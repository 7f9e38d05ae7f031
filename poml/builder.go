package poml

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Builder provides a fluent API for constructing an element tree in code.
// Container methods (Open, If, For, List, Section) push a parent that stays
// current until End.
type Builder struct {
	root  *Element
	stack []*Element
}

// NewBuilder creates a builder with an empty <poml> root.
func NewBuilder() *Builder {
	root := NewElement("poml", nil)
	return &Builder{root: root, stack: []*Element{root}}
}

// Build returns the assembled tree. Open containers are closed implicitly.
func (b *Builder) Build() *Element {
	return b.root
}

// Render renders the assembled tree.
func (b *Builder) Render(opts Options) (Result, error) {
	return Render(b.root, opts)
}

// String encodes the tree as POML.
func (b *Builder) String() string {
	var sb strings.Builder
	if err := b.root.Encode(&sb); err != nil {
		return ""
	}
	return sb.String()
}

func (b *Builder) current() *Element {
	return b.stack[len(b.stack)-1]
}

func (b *Builder) add(el *Element) *Builder {
	cur := b.current()
	cur.Children = append(cur.Children, el)
	return b
}

// Element appends a leaf element with an optional text body.
func (b *Builder) Element(tag string, attrs map[string]string, body string) *Builder {
	el := NewElement(tag, attrs)
	if body != "" {
		el.Children = []*Element{NewText(body)}
	}
	return b.add(el)
}

// Open appends a container element and makes it current.
func (b *Builder) Open(tag string, attrs map[string]string) *Builder {
	el := NewElement(tag, attrs)
	b.add(el)
	b.stack = append(b.stack, el)
	return b
}

// End closes the current container. Calling End at the root is a no-op.
func (b *Builder) End() *Builder {
	if len(b.stack) > 1 {
		b.stack = b.stack[:len(b.stack)-1]
	}
	return b
}

// Text appends a text node.
func (b *Builder) Text(s string) *Builder {
	return b.add(NewText(s))
}

// Role appends a role block.
func (b *Builder) Role(body string) *Builder {
	return b.Element("role", nil, body)
}

// Task appends a task block.
func (b *Builder) Task(body string) *Builder {
	return b.Element("task", nil, body)
}

// Hint appends a hint block.
func (b *Builder) Hint(body string) *Builder {
	return b.Element("hint", nil, body)
}

// Paragraph appends a captioned paragraph.
func (b *Builder) Paragraph(caption, body string) *Builder {
	return b.Element("cp", map[string]string{"caption": caption}, body)
}

// List appends a list of plain items.
func (b *Builder) List(style string, items ...string) *Builder {
	b.Open("list", map[string]string{"listStyle": style})
	for _, it := range items {
		b.Element("item", nil, it)
	}
	return b.End()
}

// Section opens a nesting section.
func (b *Builder) Section() *Builder {
	return b.Open("section", nil)
}

// Let binds name to value. Non-string values are encoded as JSON bodies.
func (b *Builder) Let(name string, value any) *Builder {
	if s, ok := value.(string); ok {
		return b.Element("let", map[string]string{"name": name, "value": s}, "")
	}
	return b.Element("let", map[string]string{"name": name}, marshalAny(value))
}

// If opens a conditional block.
func (b *Builder) If(condition string) *Builder {
	return b.Open("if", map[string]string{"condition": condition})
}

// For opens a loop over items, an expression such as "{{ names }}".
func (b *Builder) For(variable, items string) *Builder {
	return b.Open("for", map[string]string{"variable": variable, "items": items})
}

// Include appends an include of src.
func (b *Builder) Include(src string) *Builder {
	return b.Element("include", map[string]string{"src": src}, "")
}

// Human appends a human message.
func (b *Builder) Human(body string) *Builder {
	return b.Element("human-msg", nil, body)
}

// Assistant appends an assistant message.
func (b *Builder) Assistant(body string) *Builder {
	return b.Element("ai-msg", nil, body)
}

// System appends a system message.
func (b *Builder) System(body string) *Builder {
	return b.Element("system-msg", nil, body)
}

// ToolDefinition appends a tool-definition with a JSON parameters body.
func (b *Builder) ToolDefinition(name, description string, parameters any) *Builder {
	attrs := map[string]string{"name": name}
	if description != "" {
		attrs["description"] = description
	}
	return b.Element("tool-definition", attrs, marshalAny(parameters))
}

// OutputSchema appends the output-schema.
func (b *Builder) OutputSchema(schema any) *Builder {
	return b.Element("output-schema", nil, marshalAny(schema))
}

// Stylesheet appends a stylesheet block.
func (b *Builder) Stylesheet(rules map[string]map[string]string) *Builder {
	return b.Element("stylesheet", nil, marshalAny(rules))
}

// Runtime appends a runtime entry from a map of attributes.
func (b *Builder) Runtime(attrs map[string]any) *Builder {
	m := make(map[string]string, len(attrs))
	for k, v := range attrs {
		m[k] = fmt.Sprint(v)
	}
	return b.Element("runtime", m, "")
}

// Meta appends a meta element carrying custom metadata attributes.
func (b *Builder) Meta(attrs map[string]string) *Builder {
	return b.Element("meta", attrs, "")
}

// OutputFormatDecl appends an output declaration for format.
func (b *Builder) OutputFormatDecl(format string) *Builder {
	return b.Element("output", map[string]string{"format": format}, "")
}

func marshalAny(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		bs, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(bs)
	}
}
