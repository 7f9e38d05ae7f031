package poml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCaptioned(t *testing.T) {
	cases := []struct {
		style CaptionStyle
		want  string
	}{
		{CaptionHeader, "# Role\n\nDo X\n\n"},
		{CaptionBold, "**Role:** Do X\n\n"},
		{CaptionPlain, "Role: Do X\n\n"},
		{CaptionHidden, "Do X\n\n"},
		{CaptionStyle("unknown"), "# Role\n\nDo X\n\n"},
	}
	for _, tc := range cases {
		t.Run(string(tc.style), func(t *testing.T) {
			assert.Equal(t, tc.want, FormatCaptioned("Role", tc.style, "Do X"))
		})
	}
}

func TestFormatCaptionedTrailing(t *testing.T) {
	assert.Equal(t, "## Steps\n\n1. a\n\n", formatCaptioned("Steps", CaptionHeader, "1. a\n", 2, true))
	assert.Equal(t, "## Steps\n\n1. a\n\n", formatCaptioned("Steps", CaptionHeader, "1. a\n\n", 2, true))
	assert.Equal(t, "## Steps\n\n1. a\n\n", formatCaptioned("Steps", CaptionHeader, "1. a", 2, true))
}

func TestParseCaptionStyle(t *testing.T) {
	s, ok := ParseCaptionStyle(" Bold ")
	require.True(t, ok)
	assert.Equal(t, CaptionBold, s)

	_, ok = ParseCaptionStyle("fancy")
	assert.False(t, ok)
}

func render(t *testing.T, body string, opts Options) Result {
	t.Helper()
	res, err := RenderString(body, opts)
	require.NoError(t, err)
	return res
}

func TestCaptionedComponents(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"role", `<poml><role>Do X</role></poml>`, "# Role\n\nDo X"},
		{"hint bold", `<poml><hint>Be brief</hint></poml>`, "**Hint:** Be brief"},
		{"style attr", `<poml><role captionStyle="plain">Do X</role></poml>`, "Role: Do X"},
		{"caption attr", `<poml><task caption="Goal">Win</task></poml>`, "# Goal\n\nWin"},
		{"empty caption hides", `<poml><cp>body</cp></poml>`, "body"},
		{"text transform", `<poml><role captionTextTransform="upper">x</role></poml>`, "# ROLE\n\nx"},
		{"nested headers", `<poml><cp caption="Outer"><cp caption="Inner">body</cp></cp></poml>`, "# Outer\n\n## Inner\n\nbody"},
		{"text then child", `<poml><task>Intro<hint>Careful</hint></task></poml>`, "# Task\n\nIntro\n\n**Hint:** Careful"},
		{"xml syntax", `<poml syntax="xml"><role>Be kind</role></poml>`, "<role>Be kind</role>"},
		{"qa", `<poml><qa>Why?</qa></poml>`, "**Question:** Why?\n**Answer:**"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, render(t, tc.doc, Options{}).Text)
		})
	}
}

func TestStylesheetPrecedence(t *testing.T) {
	doc := `<poml>
  <stylesheet>{"role": {"captionStyle": "plain"}, ".loud": {"captionStyle": "bold"}}</stylesheet>
  <role>a</role>
  <role className="loud">b</role>
  <role className="loud" captionStyle="hidden">c</role>
</poml>`
	assert.Equal(t, "Role: a\n\n**Role:** b\n\nc", render(t, doc, Options{}).Text)
}

func TestStylesheetCaptionedParagraphRule(t *testing.T) {
	doc := `<poml>
  <stylesheet>{"cp": {"captionStyle": "bold"}}</stylesheet>
  <task>Win</task>
</poml>`
	assert.Equal(t, "**Task:** Win", render(t, doc, Options{}).Text)
}

func TestMalformedStylesheetIgnored(t *testing.T) {
	doc := `<poml><stylesheet>not json</stylesheet><role>a</role></poml>`
	assert.Equal(t, "# Role\n\na", render(t, doc, Options{}).Text)
}

func TestXMLTagName(t *testing.T) {
	assert.Equal(t, "output-format", xmlTagName("OutputFormat"))
	assert.Equal(t, "stepwise-instructions", xmlTagName("stepwise_instructions"))
	assert.Equal(t, "role", xmlTagName("role"))
}

func TestRenderAsXML(t *testing.T) {
	assert.Equal(t, "<p/>", renderAsXML("p", "", nil))
	assert.Equal(t, `<p a="x&amp;y">hi</p>`, renderAsXML("p", "hi", []Attr{{Name: "a", Value: "x&y"}}))
	assert.Equal(t, "<list>\n  <item>a</item>\n  <item>b</item>\n</list>", renderAsXML("list", "<item>a</item>\n<item>b</item>", nil))
}
