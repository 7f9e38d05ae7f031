package poml

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// dataFormatFor picks the serialization for a data-display component: the
// explicit syntax attribute, a raw output format, then the syntax oracle.
func dataFormatFor(el *Element, ctx *RenderContext) string {
	if v, ok := el.Attr("syntax"); ok && strings.TrimSpace(v) != "" {
		return strings.ToLower(strings.TrimSpace(v))
	}
	switch f := ctx.OutputFormat(); f {
	case OutputMarkdown:
	default:
		return f
	}
	return ctx.DetermineSyntax(el)
}

// sourcePlaceholder logs a failed source and returns the inline placeholder.
func sourcePlaceholder(ctx *RenderContext, el *Element, src string, err error) string {
	ctx.Logger().Debug(LogMsgSourceUnavailable, zap.String(LogFieldTag, el.Tag), zap.String(LogFieldSrc, src), zap.Error(err))
	if isNotFound(err) {
		return "[File not found: " + src + "]\n\n"
	}
	return "[Unable to read " + src + "]\n\n"
}

// renderTable serializes records from the records attribute, a src file, or
// a JSON body. Malformed data renders as an empty table.
func renderTable(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	td, placeholder := tableSource(el, ctx)
	if placeholder != "" {
		return placeholder, nil
	}
	if raw, ok := el.Attr("columns"); ok {
		td.columns = parseColumns(ctx.Template().Substitute(raw))
	}
	if raw, ok := el.Attr("maxRecords"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n >= 0 && n < len(td.records) {
			td.records = td.records[:n]
		}
	}
	format := dataFormatFor(el, ctx)
	out, err := ctx.s.serializer.Serialize(td.records, td.columns, format)
	if err != nil {
		ctx.Logger().Warn(LogMsgDataRejected, zap.String(LogFieldTag, el.Tag), zap.String(LogFieldFormat, format), zap.Error(err))
		out, _ = DefaultSerializer{}.Serialize(td.records, td.columns, TableMarkdown)
	}
	return out + "\n\n", nil
}

func tableSource(el *Element, ctx *RenderContext) (tableData, string) {
	tmpl := ctx.Template()
	var value any
	switch {
	case el.HasAttr("records"):
		raw, _ := el.Attr("records")
		value = tmpl.EvaluateAttributeExpression(raw)
		if s, ok := value.(string); ok {
			value, _ = parseLooseJSONValue(s)
		}
	case el.HasAttr("src"):
		raw, _ := el.Attr("src")
		src := tmpl.Substitute(raw)
		path := ctx.s.loader.ResolvePath(ctx.BaseDir(), src)
		body, err := ctx.s.loader.ReadFile(path)
		if err != nil {
			return tableData{}, sourcePlaceholder(ctx, el, src, err)
		}
		format := dataFormat(path, el.AttrOr("parser", ""))
		if format == TableCSV || format == TableTSV {
			td, err := parseTable(body, format)
			if err != nil {
				ctx.Logger().Warn(LogMsgDataRejected, zap.String(LogFieldSrc, src), zap.Error(err))
				return tableData{}, ""
			}
			return td, ""
		}
		v, err := decodeData(body, format)
		if err != nil {
			ctx.Logger().Warn(LogMsgDataRejected, zap.String(LogFieldSrc, src), zap.Error(err))
			return tableData{}, ""
		}
		value = v
	default:
		body := strings.TrimSpace(stripCDATA(el.TextContent()))
		if body == "" {
			return tableData{}, ""
		}
		v, ok := parseLooseJSONValue(tmpl.Substitute(body))
		if !ok {
			ctx.Logger().Warn(LogMsgDataRejected, zap.String(LogFieldTag, el.Tag))
			return tableData{}, ""
		}
		value = v
	}
	td, ok := tableFromValue(value)
	if !ok && value != nil {
		ctx.Logger().Warn(LogMsgDataRejected, zap.String(LogFieldTag, el.Tag))
	}
	return td, ""
}

// parseColumns accepts a JSON array or a comma separated list.
func parseColumns(raw string) []string {
	if v, ok := parseLooseJSONValue(raw); ok {
		if items, ok := toSlice(v); ok {
			out := make([]string, 0, len(items))
			for _, it := range items {
				if m, ok := it.(map[string]any); ok {
					out = append(out, Stringify(m["field"]))
					continue
				}
				out = append(out, Stringify(it))
			}
			return out
		}
	}
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// renderObject serializes the data attribute (or a JSON body) as json, yaml
// or xml.
func renderObject(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	tmpl := ctx.Template()
	var value any
	if raw, ok := el.Attr("data"); ok {
		value = tmpl.EvaluateAttributeExpression(raw)
		if s, ok := value.(string); ok {
			if v, ok := parseLooseJSONValue(s); ok {
				value = v
			}
		}
	} else {
		body := strings.TrimSpace(stripCDATA(el.TextContent()))
		if v, ok := parseLooseJSONValue(tmpl.Substitute(body)); ok {
			value = v
		} else {
			value = body
		}
	}
	format := dataFormatFor(el, ctx)
	out, err := encodeValue(value, format, "obj")
	if err != nil {
		ctx.Logger().Warn(LogMsgDataRejected, zap.String(LogFieldTag, el.Tag), zap.Error(err))
		return "", nil
	}
	switch format {
	case SyntaxMarkdown, TableJSON:
		return "```json\n" + out + "\n```\n\n", nil
	case TableYAML:
		return "```yaml\n" + out + "\n```\n\n", nil
	}
	return out + "\n", nil
}

// renderDocument embeds a text document read through the loader. Binary
// formats are not extracted.
func renderDocument(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	raw, ok := el.Attr("src")
	if !ok {
		return renderTextBlock(el, ctx)
	}
	src := ctx.Template().Substitute(raw)
	switch strings.ToLower(filepath.Ext(src)) {
	case ".pdf", ".docx", ".doc":
		return "[Unsupported document: " + src + "]\n\n", nil
	}
	path := ctx.s.loader.ResolvePath(ctx.BaseDir(), src)
	body, err := ctx.s.loader.ReadFile(path)
	if err != nil {
		return sourcePlaceholder(ctx, el, src, err), nil
	}
	if ext := strings.ToLower(filepath.Ext(src)); ext == ".html" || ext == ".htm" {
		body = htmlToText(body)
	}
	body = shapeContent(body, el)
	if xmlMode(el, ctx) {
		return renderAsXML("document", body, xmlAttrs(el)) + "\n", nil
	}
	return body + "\n\n", nil
}

// renderImage renders alt text and source reference; pixel data is never read.
func renderImage(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	src := ctx.Template().Substitute(el.AttrOr("src", ""))
	alt := ctx.Template().Substitute(el.AttrOr("alt", ""))
	switch ctx.DetermineSyntax(el) {
	case SyntaxXML:
		return renderAsXML("img", "", xmlAttrs(el)), nil
	case SyntaxHTML:
		return `<img src="` + html.EscapeString(src) + `" alt="` + html.EscapeString(alt) + `"/>`, nil
	}
	if src == "" {
		return alt, nil
	}
	return "![" + alt + "](" + src + ")", nil
}

func renderAudio(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	src := ctx.Template().Substitute(el.AttrOr("src", ""))
	if xmlMode(el, ctx) {
		return renderAsXML("audio", "", xmlAttrs(el)), nil
	}
	if alt, ok := el.Attr("alt"); ok {
		return alt, nil
	}
	return "[Audio: " + src + "]", nil
}

// renderWebpage embeds the visible text of a local HTML page. A selector
// attribute keeps only elements with that tag name or id.
func renderWebpage(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	raw := el.AttrOr("src", el.AttrOr("url", ""))
	src := ctx.Template().Substitute(raw)
	if src == "" {
		return "", nil
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return "[Webpage: " + src + "]\n\n", nil
	}
	body, err := ctx.s.loader.ReadFile(ctx.s.loader.ResolvePath(ctx.BaseDir(), src))
	if err != nil {
		return sourcePlaceholder(ctx, el, src, err), nil
	}
	var text string
	if sel, ok := el.Attr("selector"); ok && strings.TrimSpace(sel) != "" {
		text = selectHTMLText(body, strings.TrimSpace(sel))
	} else {
		text = htmlToText(body)
	}
	if xmlMode(el, ctx) {
		return renderAsXML("webpage", text, xmlAttrs(el)) + "\n", nil
	}
	return text + "\n\n", nil
}

// renderFolder lists a directory tree through a loader implementing DirLister.
func renderFolder(el *Element, ctx *RenderContext) (string, error) {
	el = applyStylesheet(el, ctx)
	src := ctx.Template().Substitute(el.AttrOr("src", "."))
	lister, ok := ctx.s.loader.(DirLister)
	if !ok {
		return "[Folder listing unavailable: " + src + "]\n\n", nil
	}
	maxDepth := 3
	if raw, ok := el.Attr("maxDepth"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			maxDepth = n
		}
	}
	var filter *regexp.Regexp
	if raw, ok := el.Attr("filter"); ok {
		re, err := regexp.Compile(raw)
		if err != nil {
			ctx.Logger().Warn(LogMsgDataRejected, zap.String(LogFieldTag, el.Tag), zap.Error(err))
		} else {
			filter = re
		}
	}
	root := ctx.s.loader.ResolvePath(ctx.BaseDir(), src)
	var b strings.Builder
	if err := listFolder(&b, lister, root, 0, maxDepth, filter); err != nil {
		return sourcePlaceholder(ctx, el, src, err), nil
	}
	tree := strings.TrimRight(b.String(), "\n")
	if xmlMode(el, ctx) {
		return renderAsXML("folder", tree, xmlAttrs(el)) + "\n", nil
	}
	return filepath.Base(filepath.Clean(src)) + "/\n" + tree + "\n\n", nil
}

func listFolder(b *strings.Builder, lister DirLister, dir string, depth, maxDepth int, filter *regexp.Regexp) error {
	entries, err := lister.ListDir(dir)
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		if e.IsDir {
			b.WriteString(indent + "- " + e.Name + "/\n")
			if depth+1 < maxDepth {
				if err := listFolder(b, lister, filepath.Join(dir, e.Name), depth+1, maxDepth, filter); err != nil {
					return err
				}
			}
			continue
		}
		if filter != nil && !filter.MatchString(e.Name) {
			continue
		}
		b.WriteString(indent + "- " + e.Name + "\n")
	}
	return nil
}
