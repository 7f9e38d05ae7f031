package poml

import (
	"html"
	"sort"
	"strings"
)

// applyStylesheet returns a view of el with stylesheet defaults filled in.
// Precedence is explicit attribute, then class rules (in className order),
// then the tag rule. The parsed element is not modified.
func applyStylesheet(el *Element, ctx *RenderContext) *Element {
	if len(ctx.s.stylesheet) == 0 {
		return el
	}
	attrs := append([]Attr(nil), el.Attrs...)
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		seen[strings.ToLower(a.Name)] = struct{}{}
	}
	fill := func(rule map[string]string) {
		keys := sortedKeys(rule)
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			attrs = append(attrs, Attr{Name: k, Value: rule[k]})
		}
	}
	for _, class := range el.classNames() {
		if rule, ok := ctx.s.stylesheet["."+class]; ok {
			fill(rule)
		}
	}
	if rule, ok := ctx.s.stylesheet[normalizeTag(el.Tag)]; ok {
		fill(rule)
	}
	if len(attrs) == len(el.Attrs) {
		return el
	}
	return el.withAttrs(attrs)
}

// xmlMode reports whether el renders as structured tags.
func xmlMode(el *Element, ctx *RenderContext) bool {
	return ctx.DetermineSyntax(el) == SyntaxXML
}

// renderAsXML emits <tag/> for empty content, a two-space indented block
// when content holds nested <item> markers, and an inline element otherwise.
func renderAsXML(tag, content string, attrs []Attr) string {
	var attrStr strings.Builder
	for _, a := range attrs {
		attrStr.WriteString(" ")
		attrStr.WriteString(a.Name)
		attrStr.WriteString(`="`)
		attrStr.WriteString(html.EscapeString(a.Value))
		attrStr.WriteString(`"`)
	}
	if content == "" {
		return "<" + tag + attrStr.String() + "/>"
	}
	if strings.Contains(content, "<item>") {
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			if strings.TrimSpace(line) != "" {
				lines[i] = "  " + line
			}
		}
		return "<" + tag + attrStr.String() + ">\n" + strings.Join(lines, "\n") + "\n</" + tag + ">"
	}
	return "<" + tag + attrStr.String() + ">" + content + "</" + tag + ">"
}

// renderChildren renders children in order. A blank line separates a text
// child from an element child that directly follows it.
func renderChildren(el *Element, ctx *RenderContext) (string, error) {
	var b strings.Builder
	var prev *Element
	for _, child := range el.Children {
		out, err := RenderElement(child, ctx)
		if err != nil {
			return "", err
		}
		if prev != nil && prev.Kind == NodeText && child.Kind == NodeElement && out != "" {
			b.WriteString("\n\n")
		}
		b.WriteString(out)
		prev = child
	}
	return b.String(), nil
}

// applyTextTransform applies captionTextTransform from the component's own
// rule, falling back to the cp rule.
func applyTextTransform(text string, el *Element, ctx *RenderContext) string {
	transform, ok := el.Attr("captionTextTransform")
	if !ok {
		transform, ok = ctx.StyleRule(el.Tag, "captionTextTransform")
	}
	if !ok {
		transform, _ = ctx.StyleRule("cp", "captionTextTransform")
	}
	switch strings.ToLower(strings.TrimSpace(transform)) {
	case "upper":
		return strings.ToUpper(text)
	case "lower":
		return strings.ToLower(text)
	case "capitalize":
		if text == "" {
			return text
		}
		return strings.ToUpper(text[:1]) + text[1:]
	}
	return text
}

// renderPlainText substitutes placeholders in a text node. Text without
// placeholders is returned verbatim.
func renderPlainText(el *Element, ctx *RenderContext) string {
	return ctx.Template().Substitute(el.Text)
}

// renderUnknown prefixes the children with the tag name, or keeps the tag
// in xml mode.
func renderUnknown(el *Element, ctx *RenderContext) (string, error) {
	content, err := renderChildren(el, ctx)
	if err != nil {
		return "", err
	}
	if xmlMode(el, ctx) {
		return renderAsXML(el.Tag, strings.TrimSpace(content), el.Attrs), nil
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return el.Tag + "\n\n", nil
	}
	return el.Tag + ": " + content + "\n\n", nil
}

// renderRoot renders a <poml> root; its syntax attribute sets the default
// syntax of descendants.
func renderRoot(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	if syntax, ok := el.Attr("syntax"); ok {
		ctx = ctx.WithSyntax(syntax)
	}
	out, err := renderChildren(el, ctx)
	if err != nil {
		return "", err
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
