package poml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateCondition(t *testing.T) {
	engine := NewTemplateEngine(Variables{
		"n":      2,
		"status": "active",
		"flag":   false,
		"list":   []any{"a"},
		"empty":  []any{},
		"user":   map[string]any{"age": float64(30)},
		"a":      "10",
		"c":      "3 > 5",
	})
	cases := []struct {
		cond string
		want bool
	}{
		{"true", true},
		{"false", false},
		{"", false},
		{"5 > 3", true},
		{"3 >= 5", false},
		{"2 == 2.0", true},
		{"{{x}}", false},
		{"{{n}}", true},
		{"{{n}} > 1", true},
		{"n != 2", false},
		{"status == active", true},
		{"status == 'active'", true},
		{"{{flag}}", false},
		{"!flag", true},
		{"{{list}}", true},
		{"{{empty}}", false},
		{"user.age >= 18", true},
		{"missing == missing", true},
		{"a > 9", true},
		{"{{a}} > 9", true},
		{"a == 10.0", true},
		{"{{c}}", false},
		{"{{status}}", true},
		{"!{{list}}", false},
		{"!{{flag}}", true},
	}
	for _, tc := range cases {
		t.Run(tc.cond, func(t *testing.T) {
			assert.Equal(t, tc.want, engine.EvaluateCondition(tc.cond))
		})
	}
}

func TestSubstitute(t *testing.T) {
	engine := NewTemplateEngine(Variables{
		"name":  "Ada",
		"count": float64(3),
		"user":  map[string]any{"tags": []any{"x", "y"}},
	})
	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"Hello {{name}}!", "Hello Ada!"},
		{"{{ name }}", "Ada"},
		{"n={{count}}", "n=3"},
		{"{{user.tags[1]}}", "y"},
		{"{{user.tags.length}}", "2"},
		{"[{{missing}}]", "[]"},
		{"{{user.tags}}", `["x","y"]`},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, engine.Substitute(tc.in))
		})
	}
}

func TestEvaluateAttributeExpression(t *testing.T) {
	engine := NewTemplateEngine(Variables{"items": []any{1, 2}})
	assert.Equal(t, []any{1, 2}, engine.EvaluateAttributeExpression("{{ items }}"))
	assert.Equal(t, []any{1, 2}, engine.EvaluateAttributeExpression("items"))
	assert.Nil(t, engine.EvaluateAttributeExpression("{{ nope }}"))
	assert.Equal(t, []any{"a", "b"}, engine.EvaluateAttributeExpression(`["a", "b"]`))
}

func TestTruthy(t *testing.T) {
	var nilPtr *int
	falsy := []any{nil, false, 0, 0.0, "", "false", []any{}, nilPtr}
	for _, v := range falsy {
		assert.False(t, Truthy(v), "%#v", v)
	}
	truthy := []any{true, 1, -2.5, "x", []string{"a"}, map[string]any{}}
	for _, v := range truthy {
		assert.True(t, Truthy(v), "%#v", v)
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "42", Stringify(int64(42)))
	assert.Equal(t, "1.5", Stringify(1.5))
	assert.Equal(t, `{"a":1}`, Stringify(map[string]any{"a": 1}))
}

func TestTemplateDoesNotMutateVariables(t *testing.T) {
	vars := Variables{"a": 1}
	engine := NewTemplateEngine(vars)
	engine.Substitute("{{a}} {{b}}")
	engine.EvaluateCondition("{{b}} == 1")
	assert.Equal(t, Variables{"a": 1}, vars)
}
