package poml

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// renderIf renders its children when condition holds. A missing condition
// renders nothing.
func renderIf(el *Element, ctx *RenderContext) (string, error) {
	cond, ok := el.Attr("condition")
	if !ok {
		return "", nil
	}
	if !ctx.Template().EvaluateCondition(cond) {
		return "", nil
	}
	return renderChildren(el, ctx)
}

// renderFor renders its body once per element of items. Each iteration
// renders the parsed body as is, in a derived scope that binds the loop
// variable and loop = {index (1-based), length, first, last}. Loop values
// are data: placeholders inside them are not expanded.
func renderFor(el *Element, ctx *RenderContext) (string, error) {
	name, ok := el.Attr("variable")
	if !ok || strings.TrimSpace(name) == "" {
		return "", nil
	}
	raw, ok := el.Attr("items")
	if !ok {
		return "", nil
	}
	items, ok := toSlice(ctx.Template().EvaluateAttributeExpression(raw))
	if !ok {
		return "", nil
	}
	name = strings.TrimSpace(name)
	var b strings.Builder
	for i, item := range items {
		scope := ctx.Derive(Variables{
			name:   item,
			"loop": loopRecord(i+1, i, len(items)),
		})
		out, err := renderChildren(el, scope)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

func loopRecord(index, position, length int) map[string]any {
	return map[string]any{
		"index":  index,
		"length": length,
		"first":  position == 0,
		"last":   position == length-1,
	}
}

var includeForRe = regexp.MustCompile(`^\s*([A-Za-z_$][\w$]*)\s+in\s+(.+?)\s*$`)

// renderInclude renders another document in a child context. The optional
// if attribute gates the include; the optional for="v in expr" attribute
// includes once per element with loop = {index (0-based), length, first,
// last}. Missing or cyclic sources render a placeholder.
func renderInclude(el *Element, ctx *RenderContext) (string, error) {
	src, ok := el.Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return "", nil
	}
	tmpl := ctx.Template()
	if cond, ok := el.Attr("if"); ok && !tmpl.EvaluateCondition(cond) {
		return "", nil
	}
	clause, ok := el.Attr("for")
	if !ok {
		return includeOnce(ctx, tmpl.Substitute(src))
	}
	m := includeForRe.FindStringSubmatch(clause)
	if m == nil {
		ctx.Logger().Debug(LogMsgIncludeRejected, zap.String(LogFieldSrc, src), zap.String("for", clause))
		return "", nil
	}
	items, ok := toSlice(tmpl.EvaluateAttributeExpression(m[2]))
	if !ok {
		return "", nil
	}
	var b strings.Builder
	for i, item := range items {
		scope := ctx.Derive(Variables{
			m[1]:   item,
			"loop": loopRecord(i, i, len(items)),
		})
		out, err := includeOnce(scope, scope.Template().Substitute(src))
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

func includeOnce(ctx *RenderContext, src string) (string, error) {
	path := ctx.s.loader.ResolvePath(ctx.BaseDir(), src)
	release, err := ctx.enterInclude(path)
	if err != nil {
		ctx.Logger().Warn(LogMsgIncludeRejected,
			zap.String(LogFieldSrc, src),
			zap.Int(LogFieldDepth, ctx.depth),
			zap.Error(err))
		return "[Include rejected: " + src + "]", nil
	}
	defer release()
	body, err := ctx.s.loader.ReadFile(path)
	if err != nil {
		ctx.Logger().Debug(LogMsgIncludeMissing, zap.String(LogFieldSrc, src), zap.String(LogFieldPath, path), zap.Error(err))
		return "[File not found: " + src + "]", nil
	}
	root, err := ParseString(body)
	if err != nil {
		ctx.Logger().Warn(LogMsgIncludeRejected, zap.String(LogFieldSrc, src), zap.Error(err))
		return "[Include parse error: " + src + "]", nil
	}
	ctx.Logger().Debug(LogMsgIncludeResolved, zap.String(LogFieldSrc, src), zap.String(LogFieldPath, path))
	return RenderElement(root, ctx.Child(path))
}
