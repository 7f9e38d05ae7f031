package poml

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// exprNode is one node of the small expression grammar used by conditions
// and {{ }} placeholders:
//
//	expression := comparison | "!" expression | operand
//	comparison := operand op operand      op ∈ {>, <, >=, <=, ==, !=}
//	operand    := literal | path | template
//
// A template operand still contains {{ }} placeholders; it is substituted
// first and the resulting text is coerced as a literal.
type exprNode interface {
	eval(t TemplateEngine) any
}

type literalExpr struct {
	value any
}

type pathExpr struct {
	raw      string
	segments []pathSegment
	// operand marks a comparison operand: bound numeric strings are coerced
	// like literals, and an unbound path compares as its raw text so
	// `status == active` compares to "active".
	operand bool
}

type templateExpr struct {
	raw string
}

type notExpr struct {
	operand exprNode
}

type compareExpr struct {
	op          string
	left, right exprNode
}

type pathSegment struct {
	key   string
	index int
	isIdx bool
}

func (n literalExpr) eval(TemplateEngine) any { return n.value }

func (n pathExpr) eval(t TemplateEngine) any {
	if v, ok := t.lookup(n.segments); ok {
		if str, isStr := v.(string); isStr && n.operand {
			return coerceLiteral(str)
		}
		return v
	}
	if n.operand {
		return n.raw
	}
	return nil
}

func (n templateExpr) eval(t TemplateEngine) any {
	return coerceLiteral(t.Substitute(n.raw))
}

func (n notExpr) eval(t TemplateEngine) any {
	return !Truthy(n.operand.eval(t))
}

func (n compareExpr) eval(t TemplateEngine) any {
	return compareValues(n.left.eval(t), n.right.eval(t), n.op)
}

var (
	intLiteralRe   = regexp.MustCompile(`^-?\d+$`)
	floatLiteralRe = regexp.MustCompile(`^-?\d*\.\d+$`)
	pathRe         = regexp.MustCompile(`^[A-Za-z_$][\w$]*(?:\.[\w$]+|\[\s*(?:\d+|'[^']*'|"[^"]*")\s*\])*$`)
)

var comparisonOps = []string{">=", "<=", "==", "!=", ">", "<"}

func parseExpression(src string) exprNode {
	s := strings.TrimSpace(src)
	if left, op, right, ok := splitComparison(s); ok {
		return compareExpr{op: op, left: parseOperand(left, true), right: parseOperand(right, true)}
	}
	if strings.HasPrefix(s, "!") {
		return notExpr{operand: parseExpression(s[1:])}
	}
	return parseOperand(s, false)
}

func parseOperand(src string, comparison bool) exprNode {
	s := strings.TrimSpace(src)
	if strings.Contains(s, "{{") {
		return templateExpr{raw: s}
	}
	if v, ok := parseLiteral(s); ok {
		return literalExpr{value: v}
	}
	if pathRe.MatchString(s) {
		return pathExpr{raw: s, segments: parsePath(s), operand: comparison}
	}
	return literalExpr{value: s}
}

// parseLiteral recognizes numbers, booleans, null, quoted strings and JSON
// arrays/objects.
func parseLiteral(s string) (any, bool) {
	switch s {
	case "":
		return "", true
	case "true":
		return true, true
	case "false":
		return false, true
	case "null", "nil", "undefined":
		return nil, true
	}
	if intLiteralRe.MatchString(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	if floatLiteralRe.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		if v, ok := parseLooseJSONValue(s); ok {
			return v, true
		}
	}
	return nil, false
}

// coerceLiteral applies literal coercion to substituted text: integers and
// floats become numbers, everything else stays a string.
func coerceLiteral(s string) any {
	trimmed := strings.TrimSpace(s)
	if intLiteralRe.MatchString(trimmed) {
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
	}
	if floatLiteralRe.MatchString(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	}
	return s
}

// splitComparison finds the first comparison operator outside placeholders,
// quotes and brackets. The left operand must be non-empty.
func splitComparison(s string) (string, string, string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			continue
		case '{', '[', '(':
			depth++
			continue
		case '}', ']', ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > 0 || i == 0 {
			continue
		}
		for _, op := range comparisonOps {
			if strings.HasPrefix(s[i:], op) {
				left := strings.TrimSpace(s[:i])
				right := strings.TrimSpace(s[i+len(op):])
				if left == "" || right == "" {
					return "", "", "", false
				}
				return left, op, right, true
			}
		}
	}
	return "", "", "", false
}

func parsePath(s string) []pathSegment {
	var segs []pathSegment
	i := 0
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return segs
			}
			inner := strings.TrimSpace(s[i+1 : i+end])
			i += end + 1
			if n, err := strconv.Atoi(inner); err == nil {
				segs = append(segs, pathSegment{index: n, isIdx: true})
			} else {
				segs = append(segs, pathSegment{key: strings.Trim(inner, `'"`)})
			}
		default:
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				j++
			}
			key := s[i:j]
			if n, err := strconv.Atoi(key); err == nil {
				segs = append(segs, pathSegment{key: key, index: n, isIdx: true})
			} else {
				segs = append(segs, pathSegment{key: key})
			}
			i = j
		}
	}
	return segs
}

// step resolves one path segment against a value of any map/slice/struct shape.
func step(current any, seg pathSegment) (any, bool) {
	if current == nil {
		return nil, false
	}
	rv := reflect.ValueOf(current)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		key := seg.key
		if seg.isIdx && key == "" {
			key = strconv.Itoa(seg.index)
		}
		val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !val.IsValid() {
			if key == "length" {
				return int64(rv.Len()), true
			}
			return nil, false
		}
		return val.Interface(), true
	case reflect.Slice, reflect.Array:
		if !seg.isIdx {
			if seg.key == "length" {
				return int64(rv.Len()), true
			}
			return nil, false
		}
		if seg.index < 0 || seg.index >= rv.Len() {
			return nil, false
		}
		return rv.Index(seg.index).Interface(), true
	case reflect.String:
		if seg.key == "length" {
			return int64(len([]rune(rv.String()))), true
		}
	case reflect.Struct:
		if seg.isIdx {
			return nil, false
		}
		f := rv.FieldByNameFunc(func(name string) bool { return strings.EqualFold(name, seg.key) })
		if f.IsValid() && f.CanInterface() {
			return f.Interface(), true
		}
	}
	return nil, false
}

// toNumber reports the float value of any numeric kind.
func toNumber(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func compareValues(left, right any, op string) bool {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		switch op {
		case ">":
			return ln > rn
		case "<":
			return ln < rn
		case ">=":
			return ln >= rn
		case "<=":
			return ln <= rn
		case "==":
			return ln == rn
		case "!=":
			return ln != rn
		}
		return false
	}
	lb, lIsBool := left.(bool)
	rb, rIsBool := right.(bool)
	if lIsBool && rIsBool {
		switch op {
		case "==":
			return lb == rb
		case "!=":
			return lb != rb
		}
	}
	ls, rs := Stringify(left), Stringify(right)
	switch op {
	case ">":
		return ls > rs
	case "<":
		return ls < rs
	case ">=":
		return ls >= rs
	case "<=":
		return ls <= rs
	case "==":
		return ls == rs
	case "!=":
		return ls != rs
	}
	return false
}
