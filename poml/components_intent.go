package poml

import (
	"strings"
)

var exampleOutput = captioned{tag: "output", caption: "Output", style: CaptionBold}

// renderOutput is the output-format declaration when a format attribute is
// present, and the example output block otherwise.
func renderOutput(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	format, ok := el.Attr("format")
	if !ok {
		return renderCaptionedBlock(el, ctx, exampleOutput)
	}
	ctx.DeclareOutputFormat(ctx.Template().Substitute(format))
	return renderChildren(el, ctx)
}

// renderQA renders a question followed by an open answer caption.
func renderQA(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	content, err := renderChildren(el, ctx)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if xmlMode(el, ctx) {
		return renderAsXML("qa", content, xmlAttrs(el)) + "\n", nil
	}
	question := applyTextTransform(el.AttrOr("questionCaption", "Question"), el, ctx)
	answer := applyTextTransform(el.AttrOr("answerCaption", "Answer"), el, ctx)
	style := captionStyleFor(el, ctx, CaptionBold)
	switch style {
	case CaptionHeader:
		level := strings.Repeat("#", ctx.HeaderLevel())
		return level + " " + question + "\n\n" + content + "\n\n" + level + " " + answer + "\n\n", nil
	case CaptionPlain:
		return question + ": " + content + "\n" + answer + ":\n\n", nil
	case CaptionHidden:
		return content + "\n\n", nil
	}
	return "**" + question + ":** " + content + "\n**" + answer + ":**\n\n", nil
}

// message wraps its body as one chat turn. In chat mode the body goes to the
// message side channel and nothing is emitted inline.
type message struct {
	role    string
	caption string
}

func (m message) Render(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	if !ctx.Chat() {
		return renderCaptionedBlock(el, ctx, captioned{tag: m.role + "-msg", caption: m.caption, style: CaptionHeader})
	}
	content, err := renderChildren(el, ctx)
	if err != nil {
		return "", err
	}
	ctx.AddMessage(m.role, strings.TrimSpace(content))
	return "", nil
}
