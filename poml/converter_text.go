package poml

import (
	"bytes"
	"strconv"
	"strings"

	goorg "github.com/niklasfasching/go-org/org"
	"github.com/yuin/goldmark"
	mdast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	mdtext "github.com/yuin/goldmark/text"
)

// TextFormat enumerates text-based converter targets.
type TextFormat string

const (
	FormatMarkdown TextFormat = "markdown"
	FormatOrg      TextFormat = "org"
)

// ConvertTextToPOML parses a markdown or org document into an element tree.
// Headings become captioned paragraphs nested by level; paragraphs, lists and
// code blocks map to p, list/item and code.
func ConvertTextToPOML(body string, format TextFormat) (*Element, error) {
	switch format {
	case FormatMarkdown:
		return convertMarkdownToPOML(body), nil
	case FormatOrg:
		return convertOrgToPOML(body)
	default:
		return nil, ErrNotImplemented
	}
}

// ConvertPOMLToText renders an element tree as markdown or org text.
func ConvertPOMLToText(root *Element, format TextFormat, opts Options) (string, error) {
	switch format {
	case FormatMarkdown:
		res, err := Render(root, opts)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	case FormatOrg:
		var b strings.Builder
		writeOrg(&b, root, 1)
		return strings.TrimSpace(b.String()), nil
	default:
		return "", ErrNotImplemented
	}
}

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// MarkdownToHTML converts rendered markdown for the html output format.
// Raw HTML in the input is passed through.
func MarkdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// section tracks an open heading while importing.
type section struct {
	level int
	el    *Element
}

// outline appends blocks under the innermost open heading.
type outline struct {
	root  *Element
	stack []section
}

func newOutline() *outline {
	return &outline{root: NewElement("poml", nil)}
}

func (o *outline) current() *Element {
	if len(o.stack) == 0 {
		return o.root
	}
	return o.stack[len(o.stack)-1].el
}

func (o *outline) heading(level int, caption string) {
	for len(o.stack) > 0 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	cp := NewElement("cp", map[string]string{"caption": caption})
	o.add(cp)
	o.stack = append(o.stack, section{level: level, el: cp})
}

func (o *outline) add(el *Element) {
	parent := o.current()
	parent.Children = append(parent.Children, el)
}

func convertMarkdownToPOML(body string) *Element {
	src := []byte(body)
	doc := markdownEngine.Parser().Parse(mdtext.NewReader(src))
	out := newOutline()
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *mdast.Heading:
			if text := extractText(node, src); text != "" {
				out.heading(node.Level, text)
			}
		case *mdast.List:
			out.add(markdownList(node, src))
		default:
			if el := markdownBlock(n, src); el != nil {
				out.add(el)
			}
		}
	}
	return out.root
}

func markdownBlock(n mdast.Node, src []byte) *Element {
	switch node := n.(type) {
	case *mdast.Paragraph, *mdast.TextBlock, *mdast.Blockquote:
		if text := extractText(node, src); text != "" {
			return NewElement("p", nil, NewText(text))
		}
	case *mdast.FencedCodeBlock:
		attrs := map[string]string{"inline": "false"}
		if lang := string(node.Language(src)); lang != "" {
			attrs["lang"] = lang
		}
		return NewElement("code", attrs, NewText(blockLines(node, src)))
	case *mdast.CodeBlock:
		return NewElement("code", map[string]string{"inline": "false"}, NewText(blockLines(node, src)))
	case *mdast.List:
		return markdownList(node, src)
	}
	return nil
}

func markdownList(list *mdast.List, src []byte) *Element {
	style := ListDash
	if list.IsOrdered() {
		style = ListDecimal
	}
	el := NewElement("list", map[string]string{"listStyle": style})
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		it := NewElement("item", nil)
		var text []string
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*mdast.List); ok {
				if len(text) > 0 {
					it.Children = append(it.Children, NewText(strings.Join(text, "\n")))
					text = nil
				}
				it.Children = append(it.Children, markdownList(sub, src))
				continue
			}
			if t := extractText(c, src); t != "" {
				text = append(text, t)
			}
		}
		if len(text) > 0 {
			it.Children = append(it.Children, NewText(strings.Join(text, "\n")))
		}
		el.Children = append(el.Children, it)
	}
	return el
}

func blockLines(n mdast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimRight(b.String(), "\n")
}

func extractText(n mdast.Node, src []byte) string {
	var b bytes.Buffer
	mdast.Walk(n, func(nn mdast.Node, entering bool) (mdast.WalkStatus, error) {
		if !entering {
			return mdast.WalkContinue, nil
		}
		switch tn := nn.(type) {
		case *mdast.Text:
			b.Write(tn.Segment.Value(src))
			if tn.SoftLineBreak() || tn.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *mdast.String:
			b.Write(tn.Value)
		case *mdast.AutoLink:
			b.Write(tn.Label(src))
		}
		return mdast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func convertOrgToPOML(body string) (*Element, error) {
	doc := goorg.New().Parse(strings.NewReader(body), "")
	if doc.Error != nil {
		return nil, &POMLError{Type: ErrDecode, Message: "parse org", Err: doc.Error}
	}
	out := newOutline()
	orgNodes(out, doc.Nodes)
	return out.root, nil
}

func orgNodes(out *outline, nodes []goorg.Node) {
	for _, n := range nodes {
		switch node := n.(type) {
		case goorg.Headline:
			out.heading(node.Lvl, orgText(node.Title))
			orgNodes(out, node.Children)
		case goorg.Paragraph:
			if text := orgText(node.Children); text != "" {
				out.add(NewElement("p", nil, NewText(text)))
			}
		case goorg.List:
			out.add(orgList(node))
		case goorg.Block:
			if !strings.EqualFold(node.Name, "SRC") && !strings.EqualFold(node.Name, "EXAMPLE") {
				if text := orgText(node.Children); text != "" {
					out.add(NewElement("p", nil, NewText(text)))
				}
				continue
			}
			attrs := map[string]string{"inline": "false"}
			if len(node.Parameters) > 0 {
				attrs["lang"] = node.Parameters[0]
			}
			out.add(NewElement("code", attrs, NewText(strings.TrimRight(orgRaw(node.Children), "\n"))))
		}
	}
}

func orgList(list goorg.List) *Element {
	style := ListDash
	if list.Kind == "ordered" {
		style = ListDecimal
	}
	el := NewElement("list", map[string]string{"listStyle": style})
	for _, n := range list.Items {
		li, ok := n.(goorg.ListItem)
		if !ok {
			continue
		}
		it := NewElement("item", nil)
		var text []string
		for _, c := range li.Children {
			switch cn := c.(type) {
			case goorg.List:
				if len(text) > 0 {
					it.Children = append(it.Children, NewText(strings.Join(text, "\n")))
					text = nil
				}
				it.Children = append(it.Children, orgList(cn))
			case goorg.Paragraph:
				if t := orgText(cn.Children); t != "" {
					text = append(text, t)
				}
			}
		}
		if len(text) > 0 {
			it.Children = append(it.Children, NewText(strings.Join(text, "\n")))
		}
		el.Children = append(el.Children, it)
	}
	return el
}

// orgText flattens inline org nodes into plain text.
func orgText(nodes []goorg.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch node := n.(type) {
		case goorg.Text:
			b.WriteString(node.Content)
		case goorg.LineBreak:
			b.WriteByte(' ')
		case goorg.Emphasis:
			b.WriteString(orgText(node.Content))
		case goorg.RegularLink:
			if len(node.Description) > 0 {
				b.WriteString(orgText(node.Description))
			} else {
				b.WriteString(node.URL)
			}
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func orgRaw(nodes []goorg.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		if t, ok := n.(goorg.Text); ok {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

// writeOrg emits the org form of an element tree.
func writeOrg(b *strings.Builder, el *Element, level int) {
	if el.Kind == NodeText {
		if t := strings.TrimSpace(el.Text); t != "" {
			b.WriteString(t + "\n\n")
		}
		return
	}
	switch normalizeTag(el.Tag) {
	case "cp", "role", "task", "hint", "examples", "section":
		caption := el.AttrOr("caption", defaultOrgCaption(el.Tag))
		if caption != "" {
			b.WriteString(strings.Repeat("*", level) + " " + caption + "\n\n")
		}
		for _, c := range el.Children {
			writeOrg(b, c, level+1)
		}
	case "p":
		b.WriteString(strings.TrimSpace(el.TextContent()) + "\n\n")
	case "list":
		ordered := isOrdered(strings.ToLower(el.AttrOr("listStyle", "")))
		n := 0
		for _, it := range el.ElementChildren() {
			n++
			bullet := "- "
			if ordered {
				bullet = strconv.Itoa(n) + ". "
			}
			b.WriteString(bullet + strings.TrimSpace(it.TextContent()) + "\n")
		}
		b.WriteString("\n")
	case "code":
		lang := el.AttrOr("lang", "")
		b.WriteString("#+BEGIN_SRC " + lang + "\n" + strings.Trim(el.TextContent(), "\n") + "\n#+END_SRC\n\n")
	default:
		for _, c := range el.Children {
			writeOrg(b, c, level)
		}
	}
}

func defaultOrgCaption(tag string) string {
	switch normalizeTag(tag) {
	case "role":
		return "Role"
	case "task":
		return "Task"
	case "hint":
		return "Hint"
	case "examples":
		return "Examples"
	}
	return ""
}
