package poml

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Whitespace policies for paragraph-like components.
const (
	WhiteSpacePre    = "pre"
	WhiteSpaceFilter = "filter"
	WhiteSpaceTrim   = "trim"
)

// shapeContent applies the whiteSpace and charLimit attributes.
func shapeContent(content string, el *Element) string {
	switch strings.ToLower(el.AttrOr("whiteSpace", WhiteSpaceFilter)) {
	case WhiteSpacePre:
	case WhiteSpaceTrim:
		content = strings.TrimSpace(content)
	default:
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimRight(line, " \t")
		}
		content = strings.TrimSpace(strings.Join(lines, "\n"))
	}
	if raw, ok := el.Attr("charLimit"); ok {
		if limit, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && limit > 0 && utf8.RuneCountInString(content) > limit {
			content = string([]rune(content)[:limit]) + "..."
		}
	}
	return content
}

func renderParagraph(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	content, err := renderChildren(el, ctx)
	if err != nil {
		return "", err
	}
	content = shapeContent(content, el)
	switch ctx.DetermineSyntax(el) {
	case SyntaxXML:
		return renderAsXML("p", content, xmlAttrs(el)) + "\n", nil
	case SyntaxHTML:
		return "<p>" + content + "</p>\n\n", nil
	}
	if content == "" {
		return "", nil
	}
	return content + "\n\n", nil
}

// inlineFormat wraps content in a markdown delimiter or an html tag.
type inlineFormat struct {
	tag  string
	md   string
	html string
}

func (f inlineFormat) Render(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	content, err := renderChildren(el, ctx)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil
	}
	switch ctx.DetermineSyntax(el) {
	case SyntaxXML:
		return renderAsXML(f.tag, content, xmlAttrs(el)), nil
	case SyntaxHTML:
		return "<" + f.html + ">" + content + "</" + f.html + ">", nil
	}
	return f.md + content + f.md, nil
}

// renderCode emits inline code, or a fenced block when inline="false" or
// the body spans lines.
func renderCode(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	content, err := renderChildren(el, ctx)
	if err != nil {
		return "", err
	}
	lang := el.AttrOr("lang", "")
	inline := !strings.Contains(strings.TrimSpace(content), "\n")
	if v, ok := el.Attr("inline"); ok {
		inline = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	switch ctx.DetermineSyntax(el) {
	case SyntaxXML:
		out := renderAsXML("code", strings.TrimSpace(content), xmlAttrs(el))
		if !inline {
			out += "\n"
		}
		return out, nil
	case SyntaxHTML:
		if inline {
			return "<code>" + strings.TrimSpace(content) + "</code>", nil
		}
		return "<pre><code>" + strings.Trim(content, "\n") + "</code></pre>\n\n", nil
	}
	if inline {
		return "`" + strings.TrimSpace(content) + "`", nil
	}
	return "```" + lang + "\n" + strings.Trim(content, "\n") + "\n```\n\n", nil
}

// renderHeader emits a heading at the current header level.
func renderHeader(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	content, err := renderChildren(el, ctx)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	level := ctx.HeaderLevel()
	switch ctx.DetermineSyntax(el) {
	case SyntaxXML:
		return renderAsXML("h", content, xmlAttrs(el)) + "\n", nil
	case SyntaxHTML:
		n := strconv.Itoa(min(level, 6))
		return "<h" + n + ">" + content + "</h" + n + ">\n\n", nil
	}
	return strings.Repeat("#", level) + " " + content + "\n\n", nil
}

// renderSection nests its children one header level deeper.
func renderSection(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	content, err := renderChildren(el, ctx.Nested())
	if err != nil {
		return "", err
	}
	if xmlMode(el, ctx) {
		return renderAsXML("section", strings.TrimSpace(content), xmlAttrs(el)) + "\n", nil
	}
	return content, nil
}

func renderBreak(el *Element, ctx *RenderContext) (string, error) {
	switch ctx.DetermineSyntax(el) {
	case SyntaxXML, SyntaxHTML:
		return "<br/>", nil
	}
	n := 1
	if raw, ok := el.Attr("newLineCount"); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && v > 0 {
			n = v
		}
	}
	return strings.Repeat("\n", n), nil
}

// renderTextBlock renders its children as a run of text, honoring
// whiteSpace and charLimit.
func renderTextBlock(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	content, err := renderChildren(el, ctx)
	if err != nil {
		return "", err
	}
	content = shapeContent(content, el)
	if xmlMode(el, ctx) {
		return renderAsXML("text", content, xmlAttrs(el)), nil
	}
	return content, nil
}
