package poml

import (
	"strconv"
	"strings"
)

// List styles. Anything unrecognized renders as dash.
const (
	ListDash     = "dash"
	ListStar     = "star"
	ListPlus     = "plus"
	ListDecimal  = "decimal"
	ListNumber   = "number"
	ListNumbered = "numbered"
	ListBullet   = "bullet"
)

// renderList opens a fresh counter for its items. The enclosing list, if
// any, keeps its own counter in the parent frame.
func renderList(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	style := strings.ToLower(strings.TrimSpace(el.AttrOr("listStyle", el.AttrOr("style", ListDash))))
	inner := ctx.withList(style)
	var b strings.Builder
	for _, child := range el.Children {
		if child.Kind == NodeText && strings.TrimSpace(child.Text) == "" {
			continue
		}
		out, err := RenderElement(child, inner)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	if xmlMode(el, ctx) {
		body := strings.TrimRight(b.String(), "\n")
		return renderAsXML("list", body, []Attr{{Name: "style", Value: style}}) + "\n", nil
	}
	return b.String(), nil
}

// renderItem emits one bullet line. Continuation lines are indented so that
// nested lists stay attached to their item.
func renderItem(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	content, err := renderChildren(el, ctx)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if xmlMode(el, ctx) {
		return "<item>" + content + "</item>\n", nil
	}
	if ctx.list == nil {
		return content, nil
	}
	ctx.list.index++
	bullet := listBullet(ctx.list.style, ctx.list.index)
	lines := strings.Split(content, "\n")
	pad := "  "
	if isOrdered(ctx.list.style) {
		pad = strings.Repeat(" ", len(bullet))
	}
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = pad + lines[i]
		}
	}
	return bullet + strings.Join(lines, "\n") + "\n", nil
}

func listBullet(style string, index int) string {
	switch style {
	case ListDecimal, ListNumber, ListNumbered:
		return strconv.Itoa(index) + ". "
	case ListStar:
		return "* "
	case ListPlus:
		return "+ "
	}
	return "- "
}

func isOrdered(style string) bool {
	switch style {
	case ListDecimal, ListNumber, ListNumbered:
		return true
	}
	return false
}
