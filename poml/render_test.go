package poml

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegistry(t *testing.T) {
	reg := NewComponentRegistry()
	shout := ComponentFunc(func(el *Element, ctx *RenderContext) (string, error) {
		return strings.ToUpper(el.TextContent()), nil
	})
	require.NoError(t, reg.Register("shout", shout, "yell"))

	err := reg.Register("Yell", shout)
	assert.True(t, errors.Is(err, ErrComponentExists))

	_, ok := reg.Lookup("SHOUT")
	assert.True(t, ok)
	assert.Equal(t, []string{"shout", "yell"}, reg.List())

	res := render(t, `<yell>hey</yell>`, Options{Registry: reg})
	assert.Equal(t, "HEY", res.Text)

	res = render(t, `<poml><yell>hey</yell></poml>`, Options{Registry: reg})
	assert.Equal(t, "poml: HEY", res.Text)
}

func TestDefaultRegistryCoversBuiltins(t *testing.T) {
	for _, tag := range []string{"role", "task", "list", "item", "if", "for", "include", "let", "output-schema", "table", "human-msg"} {
		_, ok := DefaultRegistry.Lookup(tag)
		assert.True(t, ok, tag)
	}
	_, ok := DefaultRegistry.Lookup("OutputSchema")
	assert.True(t, ok)
}

func TestUnknownTagFallback(t *testing.T) {
	assert.Equal(t, "widget: body", render(t, `<poml><widget>body</widget></poml>`, Options{}).Text)
	assert.Equal(t, "<widget kind=\"x\">body</widget>", render(t, `<poml syntax="xml"><widget kind="x">body</widget></poml>`, Options{}).Text)
}

func TestPlainTextIdempotent(t *testing.T) {
	text := "Just some text, with punctuation: {not a placeholder}."
	res := render(t, `<poml>`+text+`</poml>`, Options{})
	assert.Equal(t, text, res.Text)

	again := render(t, `<poml>`+res.Text+`</poml>`, Options{})
	assert.Equal(t, res.Text, again.Text)
}

func TestInlineFormatting(t *testing.T) {
	cases := []struct {
		doc  string
		want string
	}{
		{`<poml><p>A <b>bold</b> word</p></poml>`, "A\n\n**bold** word"},
		{`<poml><p><i>it</i></p></poml>`, "*it*"},
		{`<poml><p><s>gone</s></p></poml>`, "~~gone~~"},
		{`<poml><p syntax="html"><b>x</b></p></poml>`, "<p><b>x</b></p>"},
		{`<poml><code>x := 1</code></poml>`, "`x := 1`"},
		{`<poml><code lang="go" inline="false">x := 1</code></poml>`, "```go\nx := 1\n```"},
		{`<poml><section><h>Title</h></section></poml>`, "## Title"},
		{`<poml><p>a<br newLineCount="2"/>b</p></poml>`, "a\n\n\n\nb"},
		{`<poml><text whiteSpace="pre">  keep  </text></poml>`, "keep"},
		{`<poml><p charLimit="3">abcdef</p></poml>`, "abc..."},
	}
	for _, tc := range cases {
		t.Run(tc.doc, func(t *testing.T) {
			assert.Equal(t, tc.want, render(t, tc.doc, Options{}).Text)
		})
	}
}

func TestHTMLOutputFormat(t *testing.T) {
	res := render(t, `<poml><output format="html"/><task>Do <b>it</b></task></poml>`, Options{})
	assert.Equal(t, OutputHTML, res.OutputFormat)
	assert.Contains(t, res.Text, "<h1")
	assert.Contains(t, res.Text, "Task</h1>")
	assert.Contains(t, res.Text, "<strong>it</strong>")
}

func TestDocumentSyntaxOverride(t *testing.T) {
	res := render(t, `<poml><role>a</role></poml>`, Options{Syntax: "XML"})
	assert.Equal(t, "<role>a</role>", res.Text)
}

func TestRenderLogsCompletion(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	render(t, `<poml><widget>x</widget></poml>`, Options{Logger: zap.New(core)})
	assert.Equal(t, 1, logs.FilterMessage(LogMsgUnknownTag).Len())
	assert.Equal(t, 1, logs.FilterMessage(LogMsgRenderComplete).Len())
}

func TestDisabledComponentLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	res := render(t, `<poml><hint>x</hint></poml>`, Options{Logger: zap.New(core), DisabledComponents: []string{"hint"}})
	assert.Equal(t, "", res.Text)
	entries := logs.FilterMessage(LogMsgComponentDisabled).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hint", entries[0].ContextMap()[LogFieldTag])
}

func TestRenderFileMissing(t *testing.T) {
	_, err := RenderFile(t.TempDir()+"/absent.poml", Options{})
	assert.Error(t, err)
}

func TestRenderContextFrames(t *testing.T) {
	ctx := NewRenderContext(Options{Variables: Variables{"a": 1}})
	assert.Equal(t, 1, ctx.HeaderLevel())
	assert.Equal(t, 2, ctx.Nested().HeaderLevel())
	assert.Equal(t, 1, ctx.HeaderLevel())

	child := ctx.Derive(Variables{"b": 2})
	_, ok := ctx.Variable("b")
	assert.False(t, ok)
	v, ok := child.Variable("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	inc := ctx.Nested().Child("dir/part.poml")
	assert.Equal(t, 1, inc.HeaderLevel())
	assert.Equal(t, "dir", inc.BaseDir())

	assert.True(t, ctx.DeclareOutputFormat("Markdown"))
	assert.Equal(t, OutputMarkdown, ctx.OutputFormat())
	assert.False(t, ctx.DeclareOutputFormat("json"))

	require.NoError(t, ctx.SetResponseSchema(map[string]any{}))
	assert.ErrorIs(t, ctx.SetResponseSchema(map[string]any{}), ErrDuplicateResponseSchema)
}
