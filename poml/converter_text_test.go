package poml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownToPOML(t *testing.T) {
	md := "# Title\n\nIntro text.\n\n## Sub\n\n1. one\n2. two\n\n```go\nx := 1\n```\n\n# Next\n\nTail.\n"
	root, err := ConvertTextToPOML(md, FormatMarkdown)
	require.NoError(t, err)

	top := root.ElementChildren()
	require.Len(t, top, 2)
	assert.Equal(t, "Title", top[0].AttrOr("caption", ""))
	assert.Equal(t, "Next", top[1].AttrOr("caption", ""))

	title := top[0].ElementChildren()
	require.Len(t, title, 2)
	assert.Equal(t, "p", title[0].Tag)
	assert.Equal(t, "Intro text.", title[0].TextContent())

	sub := title[1].ElementChildren()
	require.Len(t, sub, 2)
	assert.Equal(t, ListDecimal, sub[0].AttrOr("listStyle", ""))
	require.Len(t, sub[0].ElementChildren(), 2)
	assert.Equal(t, "two", sub[0].ElementChildren()[1].TextContent())
	assert.Equal(t, "go", sub[1].AttrOr("lang", ""))
	assert.Equal(t, "x := 1", sub[1].TextContent())
}

func TestMarkdownNestedList(t *testing.T) {
	root, err := ConvertTextToPOML("- a\n  - b\n- c\n", FormatMarkdown)
	require.NoError(t, err)
	list := root.ElementChildren()[0]
	items := list.ElementChildren()
	require.Len(t, items, 2)
	nested := items[0].ElementChildren()
	require.Len(t, nested, 1)
	assert.Equal(t, "list", nested[0].Tag)
	assert.Equal(t, "b", nested[0].TextContent())
}

func TestMarkdownRoundTripRenders(t *testing.T) {
	root, err := ConvertTextToPOML("# Title\n\nIntro.\n\n## Sub\n\nMore.\n", FormatMarkdown)
	require.NoError(t, err)
	out, err := ConvertPOMLToText(root, FormatMarkdown, Options{})
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nIntro.\n\n## Sub\n\nMore.", out)
}

func TestOrgToPOML(t *testing.T) {
	org := "* Goals\nShip it.\n** Steps\n- first\n- second\n"
	root, err := ConvertTextToPOML(org, FormatOrg)
	require.NoError(t, err)

	top := root.ElementChildren()
	require.Len(t, top, 1)
	assert.Equal(t, "Goals", top[0].AttrOr("caption", ""))
	kids := top[0].ElementChildren()
	require.Len(t, kids, 2)
	assert.Equal(t, "Ship it.", kids[0].TextContent())
	assert.Equal(t, "Steps", kids[1].AttrOr("caption", ""))
	list := kids[1].ElementChildren()[0]
	assert.Equal(t, "list", list.Tag)
	assert.Len(t, list.ElementChildren(), 2)
}

func TestPOMLToOrg(t *testing.T) {
	root, err := ParseString(`<poml><role>Helper</role><cp caption="Plan"><list listStyle="decimal"><item>a</item><item>b</item></list><code lang="sh">ls</code></cp></poml>`)
	require.NoError(t, err)
	out, err := ConvertPOMLToText(root, FormatOrg, Options{})
	require.NoError(t, err)
	assert.Equal(t, "* Role\n\nHelper\n\n* Plan\n\n1. a\n2. b\n\n#+BEGIN_SRC sh\nls\n#+END_SRC", out)
}

func TestTextFormatUnknown(t *testing.T) {
	_, err := ConvertTextToPOML("x", TextFormat("rst"))
	assert.True(t, errors.Is(err, ErrNotImplemented))
	_, err = ConvertPOMLToText(NewElement("poml", nil), TextFormat("rst"), Options{})
	assert.True(t, errors.Is(err, ErrNotImplemented))
}

func TestMarkdownToHTML(t *testing.T) {
	out, err := MarkdownToHTML("# Hi\n\n~~old~~ <b>raw</b>")
	require.NoError(t, err)
	assert.Contains(t, out, `<h1 id="hi">Hi</h1>`)
	assert.Contains(t, out, "<del>old</del>")
	assert.Contains(t, out, "<b>raw</b>")
}
