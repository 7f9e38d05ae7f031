package poml

import (
	"bytes"
	"testing"
)

const benchDoc = `<poml>
  <stylesheet>{"hint": {"captionStyle": "plain"}}</stylesheet>
  <let name="steps">["parse", "render", "convert"]</let>
  <role>Bench role</role>
  <task>Do a thing for {{ user.name }}</task>
  <list listStyle="decimal">
    <for variable="s" items="{{ steps }}"><item>{{ loop.index }} {{ s }}</item></for>
  </list>
  <if condition="{{ user.admin }}"><hint>Admins may skip review.</hint></if>
  <human-msg>Hello</human-msg>
  <ai-msg>Hi</ai-msg>
  <tool-definition name="calc">{"type":"object"}</tool-definition>
  <output-schema>{"type":"object"}</output-schema>
  <runtime temperature="0.3"/>
</poml>`

var benchVars = Variables{"user": map[string]any{"name": "Ada", "admin": true}}

func BenchmarkParseString(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := ParseString(benchDoc); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncode(b *testing.B) {
	root, err := ParseString(benchDoc)
	if err != nil {
		b.Fatalf("parse: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if err := root.Encode(&buf); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRender(b *testing.B) {
	root, err := ParseString(benchDoc)
	if err != nil {
		b.Fatalf("parse: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Render(root, Options{Variables: benchVars}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkConvertOpenAIChat(b *testing.B) {
	res, err := RenderString(benchDoc, Options{Variables: benchVars})
	if err != nil {
		b.Fatalf("render: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Convert(res, FormatOpenAIChat); err != nil {
			b.Fatal(err)
		}
	}
}
