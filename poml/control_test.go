package poml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIf(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"true literal", `<poml><if condition="true"><p>yes</p></if></poml>`, "yes"},
		{"false literal", `<poml><if condition="false"><p>yes</p></if></poml>`, ""},
		{"comparison", `<poml><if condition="5 > 3"><p>yes</p></if></poml>`, "yes"},
		{"unbound placeholder", `<poml><if condition="{{x}}"><p>yes</p></if></poml>`, ""},
		{"missing condition", `<poml><if><p>yes</p></if></poml>`, ""},
		{"variable", `<poml><let name="ok" value="true"/><if condition="{{ok}}"><p>yes</p></if></poml>`, "yes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, render(t, tc.doc, Options{}).Text)
		})
	}
}

func TestForLoop(t *testing.T) {
	doc := `<poml><list><for variable="n" items="{{ names }}"><item>{{loop.index}}/{{loop.length}} {{n}}</item></for></list></poml>`
	res := render(t, doc, Options{Variables: Variables{"names": []any{"a", "b", "c"}}})
	assert.Equal(t, "- 1/3 a\n- 2/3 b\n- 3/3 c", res.Text)
}

func TestForLoopFirstLast(t *testing.T) {
	doc := `<poml><for variable="x" items="[1, 2, 3]"><if condition="{{loop.first}}"><p>first {{x}}</p></if><if condition="{{loop.last}}"><p>last {{x}}</p></if></for></poml>`
	assert.Equal(t, "first 1\n\nlast 3", render(t, doc, Options{}).Text)
}

func TestForScopeDoesNotLeak(t *testing.T) {
	doc := `<poml>
  <for variable="n" items="[1, 2]"><let name="inner" value="set"/><p>{{n}}</p></for>
  <p>after [{{n}}] [{{inner}}]</p>
</poml>`
	assert.Equal(t, "1\n\n2\n\nafter [] []", render(t, doc, Options{}).Text)
}

func TestForRestoresShadowedVariable(t *testing.T) {
	doc := `<poml>
  <for variable="n" items="[1, 2]"><p>{{n}}</p></for>
  <p>n is {{n}}</p>
</poml>`
	res := render(t, doc, Options{Variables: Variables{"n": "outer"}})
	assert.Equal(t, "1\n\n2\n\nn is outer", res.Text)
}

func TestNestedForLoops(t *testing.T) {
	doc := `<poml><for variable="a" items="[1, 2]"><for variable="b" items="['x', 'y']"><p>{{a}}{{b}}</p></for></for></poml>`
	assert.Equal(t, "1x\n\n1y\n\n2x\n\n2y", render(t, doc, Options{}).Text)
}

func TestForLoopValuesAreNotTemplates(t *testing.T) {
	doc := `<poml><for variable="n" items="{{ names }}"><p>{{n}}</p></for></poml>`
	res := render(t, doc, Options{Variables: Variables{"names": []any{"{{secret}}"}, "secret": "hidden"}})
	assert.Equal(t, "{{secret}}", res.Text)

	doc = `<poml><for variable="n" items="{{ names }}"><img src="{{n}}" alt="x"/></for></poml>`
	res = render(t, doc, Options{Variables: Variables{"names": []any{"{{secret}}.png"}, "secret": "hidden"}})
	assert.Equal(t, "![x]({{secret}}.png)", res.Text)
}

func TestForLoopCaption(t *testing.T) {
	doc := `<poml><for variable="s" items="['a', 'b']"><cp caption="Step {{loop.index}}">{{s}}</cp></for></poml>`
	assert.Equal(t, "# Step 1\n\na\n\n# Step 2\n\nb", render(t, doc, Options{}).Text)
}

func TestForNonListRendersNothing(t *testing.T) {
	doc := `<poml><for variable="n" items="{{ missing }}"><p>{{n}}</p></for><p>done</p></poml>`
	assert.Equal(t, "done", render(t, doc, Options{}).Text)
}

func TestForDirectContext(t *testing.T) {
	ctx := NewRenderContext(Options{})
	ctx.SetVariable("n", "kept")
	el := NewElement("for", map[string]string{"variable": "n", "items": "[1]"}, NewText("{{n}}"))
	out, err := RenderElement(el, ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", out)
	v, ok := ctx.Variable("n")
	require.True(t, ok)
	assert.Equal(t, "kept", v)
}

func TestInclude(t *testing.T) {
	loader := MapLoader{
		"main.poml":         `<poml><role>Main</role><include src="parts/task.poml"/></poml>`,
		"parts/task.poml":   `<task>Do {{what}}<include src="detail.poml"/></task>`,
		"parts/detail.poml": `<hint>Detail</hint>`,
		"loop.poml":         `<poml><include src="a.poml"/></poml>`,
		"a.poml":            `<poml><p>A</p><include src="a.poml"/></poml>`,
		"broken.poml":       `<poml><p>unclosed</poml>`,
		"each.poml":         `<p>{{loop.index}}:{{v}}</p>`,
		"conditional.poml":  `<poml><include src="each.poml" if="{{show}}"/></poml>`,
	}
	opts := Options{Loader: loader, Variables: Variables{"what": "it"}}

	t.Run("nested relative", func(t *testing.T) {
		res := render(t, `<poml><include src="main.poml"/></poml>`, opts)
		assert.Equal(t, "# Role\n\nMain\n\n# Task\n\nDo it\n\n**Hint:** Detail", res.Text)
	})
	t.Run("missing", func(t *testing.T) {
		res := render(t, `<poml><include src="nope.poml"/></poml>`, opts)
		assert.Equal(t, "[File not found: nope.poml]", res.Text)
	})
	t.Run("cycle", func(t *testing.T) {
		res := render(t, `<poml><include src="loop.poml"/></poml>`, opts)
		assert.Equal(t, "A\n\n[Include rejected: a.poml]", res.Text)
	})
	t.Run("parse error", func(t *testing.T) {
		res := render(t, `<poml><include src="broken.poml"/></poml>`, opts)
		assert.Equal(t, "[Include parse error: broken.poml]", res.Text)
	})
	t.Run("for clause", func(t *testing.T) {
		res := render(t, `<poml><include src="each.poml" for="v in ['x', 'y']"/></poml>`, opts)
		assert.Equal(t, "0:x\n\n1:y", res.Text)
	})
	t.Run("if clause", func(t *testing.T) {
		res := render(t, `<poml><include src="conditional.poml"/></poml>`, Options{Loader: loader, Variables: Variables{"show": false}})
		assert.Equal(t, "", res.Text)
	})
	t.Run("depth limit", func(t *testing.T) {
		res := render(t, `<poml><include src="main.poml"/></poml>`, Options{Loader: loader, MaxIncludeDepth: 1})
		assert.Contains(t, res.Text, "[Include rejected: parts/task.poml]")
	})
}

func TestIncludeSharesSideChannels(t *testing.T) {
	loader := MapLoader{
		"schema.poml": `<poml><output-schema>{"type": "object"}</output-schema><human-msg>hi</human-msg></poml>`,
	}
	res := render(t, `<poml><include src="schema.poml"/></poml>`, Options{Loader: loader})
	assert.Equal(t, map[string]any{"type": "object"}, res.ResponseSchema)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, ChatMessage{Role: "human", Content: "hi"}, res.Messages[0])
}

func TestIncludeFromFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.poml", `<poml><include src="sub/part.poml"/></poml>`)
	writeFile(t, dir, "sub/part.poml", `<p>from disk</p>`)
	res, err := RenderFile(dir+"/main.poml", Options{})
	require.NoError(t, err)
	assert.Equal(t, "from disk", res.Text)
}
