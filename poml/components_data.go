package poml

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// renderLet binds a variable in the current scope. The value comes from the
// value attribute, a src file, or the element body; type coerces it. A let
// without a name merges an object value into the scope.
func renderLet(el *Element, ctx *RenderContext) (string, error) {
	tmpl := ctx.Template()
	name := strings.TrimSpace(el.AttrOr("name", ""))
	var value any
	switch {
	case el.HasAttr("value"):
		raw, _ := el.Attr("value")
		if inner, ok := singlePlaceholder(strings.TrimSpace(raw)); ok {
			value = tmpl.Evaluate(inner)
		} else {
			value = tmpl.Substitute(raw)
		}
	case el.HasAttr("src"):
		src, _ := el.Attr("src")
		v, err := loadData(ctx, tmpl.Substitute(src))
		if err != nil {
			ctx.Logger().Warn(LogMsgDataRejected, zap.String(LogFieldSrc, src), zap.Error(err))
			return "", nil
		}
		value = v
	default:
		body := strings.TrimSpace(stripCDATA(el.TextContent()))
		if inner, ok := singlePlaceholder(body); ok {
			value = tmpl.Evaluate(inner)
		} else if v, ok := parseLooseJSONValue(tmpl.Substitute(body)); ok {
			value = v
		} else {
			value = tmpl.Substitute(body)
		}
	}
	if typ, ok := el.Attr("type"); ok {
		value = coerceType(value, typ)
	}
	if name != "" {
		ctx.SetVariable(name, value)
		return "", nil
	}
	if obj, ok := value.(map[string]any); ok {
		for k, v := range obj {
			ctx.SetVariable(k, v)
		}
	}
	return "", nil
}

// coerceType converts value to a declared let type. Values that do not
// convert are returned unchanged.
func coerceType(value any, typ string) any {
	s, isString := value.(string)
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "string":
		return Stringify(value)
	case "integer", "int":
		if isString {
			if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return n
			}
		}
		if f, ok := toNumber(value); ok {
			return int64(f)
		}
	case "number", "float":
		if isString {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
		if f, ok := toNumber(value); ok {
			return f
		}
	case "boolean", "bool":
		if isString {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
		return Truthy(value)
	case "object", "array", "json":
		if isString {
			if v, ok := parseLooseJSONValue(s); ok {
				return v
			}
		}
	}
	return value
}

// loadData reads src through the loader and decodes it by extension: JSON,
// YAML, or plain text.
func loadData(ctx *RenderContext, src string) (any, error) {
	path := ctx.s.loader.ResolvePath(ctx.BaseDir(), src)
	body, err := ctx.s.loader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeData(body, dataFormat(path, ""))
}

func dataFormat(path, declared string) string {
	if declared != "" && declared != "auto" {
		return strings.ToLower(declared)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".csv":
		return "csv"
	case ".tsv":
		return "tsv"
	case ".jsonl":
		return "jsonl"
	}
	return "text"
}

// decodeData parses body per format.
func decodeData(body, format string) (any, error) {
	switch format {
	case "json":
		var v any
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return nil, err
		}
		return v, nil
	case "yaml":
		var v any
		if err := yaml.Unmarshal([]byte(body), &v); err != nil {
			return nil, err
		}
		return normalizeYAML(v), nil
	case "jsonl":
		var rows []any
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var v any
			if err := json.Unmarshal([]byte(line), &v); err != nil {
				return nil, err
			}
			rows = append(rows, v)
		}
		return rows, nil
	case "csv", "tsv":
		return parseDelimited(body, format)
	}
	return body, nil
}

// normalizeYAML converts map[any]any nodes into map[string]any so decoded
// YAML behaves like decoded JSON in templates.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			val[k] = normalizeYAML(inner)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeYAML(inner)
		}
		return out
	case []any:
		for i, inner := range val {
			val[i] = normalizeYAML(inner)
		}
		return val
	}
	return v
}

// renderMeta sets variables, toggles components, and records every other
// attribute as custom metadata.
func renderMeta(el *Element, ctx *RenderContext) (string, error) {
	for _, a := range el.Attrs {
		switch strings.ToLower(a.Name) {
		case "variables":
			v, ok := parseLooseJSONValue(a.Value)
			obj, isObj := v.(map[string]any)
			if !ok || !isObj {
				ctx.Logger().Warn(LogMsgDataRejected, zap.String(LogFieldTag, el.Tag))
				continue
			}
			for k, val := range obj {
				ctx.SetVariable(k, val)
			}
		case "components":
			for _, part := range strings.Split(a.Value, ",") {
				part = strings.TrimSpace(part)
				switch {
				case strings.HasPrefix(part, "-"):
					ctx.DisableComponent(part[1:])
				case strings.HasPrefix(part, "+"):
					ctx.EnableComponent(part[1:])
				}
			}
		default:
			ctx.SetMetadata(a.Name, ctx.Template().Substitute(a.Value))
		}
	}
	return "", nil
}

// renderStylesheet merges JSON rules of the form
// {"selector": {"attr": "value"}}. Malformed bodies are ignored.
func renderStylesheet(el *Element, ctx *RenderContext) (string, error) {
	body := strings.TrimSpace(stripCDATA(el.TextContent()))
	v, ok := parseLooseJSONValue(body)
	obj, isObj := v.(map[string]any)
	if !ok || !isObj {
		ctx.Logger().Warn(LogMsgStylesheetRejected, zap.Int(LogFieldLength, len(body)))
		return "", nil
	}
	rules := make(map[string]map[string]string, len(obj))
	for sel, raw := range obj {
		attrs, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		rule := make(map[string]string, len(attrs))
		for k, val := range attrs {
			rule[k] = Stringify(val)
		}
		rules[sel] = rule
	}
	ctx.MergeStylesheet(rules)
	return "", nil
}

// renderOutputSchema records the response schema. Malformed JSON and a
// second schema abort the render.
func renderOutputSchema(el *Element, ctx *RenderContext) (string, error) {
	schema, err := schemaBody(el, ctx)
	if err != nil {
		return "", schemaError(el.Tag, err)
	}
	if schema == nil {
		return "", schemaError(el.Tag, fmt.Errorf("%w: empty body", ErrInvalidSchemaJSON))
	}
	if err := ctx.SetResponseSchema(schema); err != nil {
		return "", renderError(el.Tag, err)
	}
	return "", nil
}

// schemaBody decodes a JSON body or a single {{expr}} evaluating to an
// object. An empty body yields nil.
func schemaBody(el *Element, ctx *RenderContext) (any, error) {
	body := strings.TrimSpace(stripCDATA(el.TextContent()))
	if body == "" {
		return nil, nil
	}
	if inner, ok := singlePlaceholder(body); ok {
		v := ctx.Template().Evaluate(inner)
		switch v.(type) {
		case map[string]any, []any:
			return v, nil
		}
		return nil, fmt.Errorf("%w: %s does not evaluate to an object", ErrInvalidSchemaJSON, body)
	}
	v, ok := parseLooseJSONValue(body)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchemaJSON, truncate(body, 40))
	}
	return v, nil
}

func renderToolDefinition(el *Element, ctx *RenderContext) (string, error) {
	name := strings.TrimSpace(el.AttrOr("name", ""))
	if name == "" {
		return "", schemaError(el.Tag, fmt.Errorf("%w: tool name is required", ErrInvalidSchemaJSON))
	}
	params, err := schemaBody(el, ctx)
	if err != nil {
		return "", schemaError(el.Tag, err)
	}
	ctx.AddTool(ToolDefinition{
		Name:        name,
		Description: ctx.Template().Substitute(el.AttrOr("description", "")),
		Parameters:  params,
	})
	return "", nil
}

// renderRuntime records model parameters; keys become snake_case and values
// are decoded as numbers or JSON where possible.
func renderRuntime(el *Element, ctx *RenderContext) (string, error) {
	for _, a := range el.Attrs {
		ctx.SetRuntime(normalizeRuntimeKey(a.Name), parseRuntimeValue(ctx.Template().Substitute(a.Value)))
	}
	return "", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
