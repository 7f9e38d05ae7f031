package poml

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Variables maps binding names to values (string, number, bool, slice, map).
type Variables map[string]any

// clone copies the top-level bindings. Values are shared; they are never
// mutated by the renderer.
func (v Variables) clone() Variables {
	out := make(Variables, len(v)+2)
	for k, val := range v {
		out[k] = val
	}
	return out
}

// TemplateEngine evaluates {{ }} placeholders and conditions against a fixed
// set of variable bindings. It never mutates the bindings.
type TemplateEngine struct {
	vars Variables
}

// NewTemplateEngine builds an evaluator over vars.
func NewTemplateEngine(vars Variables) TemplateEngine {
	return TemplateEngine{vars: vars}
}

var (
	placeholderRe       = regexp.MustCompile(`\{\{(.*?)\}\}`)
	singlePlaceholderRe = regexp.MustCompile(`^\{\{(.*)\}\}$`)
)

// Substitute replaces every {{expr}} with the string form of its value.
// Expressions that do not resolve render as the empty string.
func (t TemplateEngine) Substitute(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		inner := m[2 : len(m)-2]
		return Stringify(t.Evaluate(inner))
	})
}

// Evaluate parses and evaluates a single expression (no surrounding braces).
func (t TemplateEngine) Evaluate(expr string) any {
	return parseExpression(expr).eval(t)
}

// EvaluateAttributeExpression resolves an attribute value that is either a
// single {{expr}} placeholder or a bare expression such as a variable path.
// Unbound names evaluate to nil.
func (t TemplateEngine) EvaluateAttributeExpression(raw string) any {
	s := strings.TrimSpace(raw)
	if inner, ok := singlePlaceholder(s); ok {
		return t.Evaluate(inner)
	}
	return t.Evaluate(s)
}

// EvaluateCondition decides a conditional. Placeholders are substituted
// first; the result is then a literal true/false, a comparison whose
// operands are coerced independently, or a value coerced to boolean.
// Substituted text is never looked up again as a variable path.
func (t TemplateEngine) EvaluateCondition(cond string) bool {
	raw := strings.TrimSpace(cond)
	s := strings.TrimSpace(t.Substitute(raw))
	switch s {
	case "true":
		return true
	case "false", "":
		return false
	}
	if left, op, right, ok := splitComparison(s); ok {
		return compareValues(parseOperand(left, true).eval(t), parseOperand(right, true).eval(t), op)
	}
	if s == raw {
		return Truthy(t.Evaluate(s))
	}
	return substitutedTruth(s)
}

// substitutedTruth types text produced by substitution: literals parse,
// anything else is a plain string. A leading ! negates.
func substitutedTruth(s string) bool {
	if rest, ok := strings.CutPrefix(s, "!"); ok {
		return !substitutedTruth(strings.TrimSpace(rest))
	}
	if v, ok := parseLiteral(s); ok {
		return Truthy(v)
	}
	return Truthy(s)
}

func (t TemplateEngine) lookup(segs []pathSegment) (any, bool) {
	if len(segs) == 0 || segs[0].isIdx && segs[0].key == "" {
		return nil, false
	}
	current, ok := t.vars[segs[0].key]
	if !ok {
		return nil, false
	}
	for _, seg := range segs[1:] {
		current, ok = step(current, seg)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func singlePlaceholder(s string) (string, bool) {
	m := singlePlaceholderRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	if strings.Contains(m[1], "{{") || strings.Contains(m[1], "}}") {
		return "", false
	}
	return m[1], true
}

// Truthy coerces a value to boolean: nil, false, zero numbers, the empty
// string, the string "false" and empty slices are false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false"
	}
	if n, ok := toNumber(v); ok {
		return n != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Stringify renders a value for substitution into text.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	if n, ok := toNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		bs, err := json.Marshal(v)
		if err == nil {
			return string(bs)
		}
	}
	return strings.TrimSpace(stringOf(v))
}

func stringOf(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(bs)
}

// toSlice converts any slice or array value into []any.
func toSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
