package poml

import (
	"strings"
)

// CaptionStyle controls how a caption is joined to the block body.
type CaptionStyle string

const (
	CaptionHeader CaptionStyle = "header"
	CaptionBold   CaptionStyle = "bold"
	CaptionPlain  CaptionStyle = "plain"
	CaptionHidden CaptionStyle = "hidden"
)

// ParseCaptionStyle maps an attribute value to a CaptionStyle. Unknown values
// report false.
func ParseCaptionStyle(s string) (CaptionStyle, bool) {
	switch CaptionStyle(strings.ToLower(strings.TrimSpace(s))) {
	case CaptionHeader:
		return CaptionHeader, true
	case CaptionBold:
		return CaptionBold, true
	case CaptionPlain:
		return CaptionPlain, true
	case CaptionHidden:
		return CaptionHidden, true
	}
	return "", false
}

// FormatCaptioned joins caption and content at header level 1.
//
//	header  -> "# {caption}\n\n{content}\n\n"
//	bold    -> "**{caption}:** {content}\n\n"
//	plain   -> "{caption}: {content}\n\n"
//	hidden  -> "{content}\n\n"
//
// Any other style formats as header.
func FormatCaptioned(caption string, style CaptionStyle, content string) string {
	return formatCaptioned(caption, style, content, 1, false)
}

// formatCaptioned is FormatCaptioned with a header depth. With trimTrailing
// the closing blank line is only added as far as content lacks one.
func formatCaptioned(caption string, style CaptionStyle, content string, level int, trimTrailing bool) string {
	var b strings.Builder
	switch style {
	case CaptionBold:
		b.WriteString("**" + caption + ":** ")
	case CaptionPlain:
		b.WriteString(caption + ": ")
	case CaptionHidden:
	default:
		if level < 1 {
			level = 1
		}
		b.WriteString(strings.Repeat("#", level) + " " + caption + "\n\n")
	}
	b.WriteString(content)
	switch {
	case !trimTrailing:
		b.WriteString("\n\n")
	case strings.HasSuffix(content, "\n\n"):
	case strings.HasSuffix(content, "\n"):
		b.WriteString("\n")
	default:
		b.WriteString("\n\n")
	}
	return b.String()
}

// captioned is the shared component for caption + body blocks such as role,
// task and hint.
type captioned struct {
	tag          string
	caption      string
	style        CaptionStyle
	trimTrailing bool
}

func (c captioned) Render(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	return renderCaptionedBlock(el, ctx, c)
}

// renderCaptionedBlock renders el's children and wraps them per c, honoring
// caption and captionStyle overrides from attributes and the cp rule.
func renderCaptionedBlock(el *Element, ctx *RenderContext, c captioned) (string, error) {
	style := captionStyleFor(el, ctx, c.style)
	if xmlMode(el, ctx) {
		content, err := renderChildren(el, ctx)
		if err != nil {
			return "", err
		}
		return renderAsXML(xmlTagName(c.tag), strings.TrimSpace(content), xmlAttrs(el)) + "\n", nil
	}
	childCtx := ctx
	if style == CaptionHeader {
		childCtx = ctx.Nested()
	}
	content, err := renderChildren(el, childCtx)
	if err != nil {
		return "", err
	}
	if c.trimTrailing {
		content = strings.TrimLeft(content, " \t\r\n")
		content = strings.TrimRight(content, " \t")
	} else {
		content = strings.TrimSpace(content)
	}
	caption := c.caption
	if raw, ok := el.Attr("caption"); ok {
		caption = ctx.Template().Substitute(raw)
	}
	caption = applyTextTransform(caption, el, ctx)
	if caption == "" && style != CaptionHidden {
		style = CaptionHidden
	}
	return formatCaptioned(caption, style, content, ctx.HeaderLevel(), c.trimTrailing), nil
}

// captionStyleFor resolves the caption style: the element's captionStyle
// attribute (stylesheet defaults already merged), then the cp rule, then def.
func captionStyleFor(el *Element, ctx *RenderContext, def CaptionStyle) CaptionStyle {
	if v, ok := el.Attr("captionStyle"); ok {
		if s, ok := ParseCaptionStyle(v); ok {
			return s
		}
	}
	if v, ok := ctx.StyleRule("cp", "captionStyle"); ok {
		if s, ok := ParseCaptionStyle(v); ok {
			return s
		}
	}
	return def
}

// presentational attributes never copied onto xml tags.
var presentationalAttrs = map[string]struct{}{
	"caption":              {},
	"captionstyle":         {},
	"captiontexttransform": {},
	"captionending":        {},
	"syntax":               {},
	"classname":            {},
	"whitespace":           {},
	"charlimit":            {},
}

func xmlAttrs(el *Element) []Attr {
	var out []Attr
	for _, a := range el.Attrs {
		if _, skip := presentationalAttrs[strings.ToLower(a.Name)]; skip {
			continue
		}
		out = append(out, a)
	}
	return out
}

// xmlTagName turns a component tag into its xml element name
// (stepwise-instructions -> stepwise-instructions, OutputFormat -> output-format).
func xmlTagName(tag string) string {
	var b strings.Builder
	for i, r := range tag {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		if r == '_' {
			r = '-'
		}
		b.WriteRune(r)
	}
	return b.String()
}
