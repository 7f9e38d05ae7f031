package poml

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConverterRegistry(t *testing.T) {
	ctx := context.Background()
	doc := `<poml><task>Greet {{name}}.</task></poml>`
	opts := map[string]any{"variables": map[string]any{"name": "Ada"}}

	out, err := DefaultConverterRegistry.Convert(ctx, "poml", "markdown", doc, opts)
	require.NoError(t, err)
	assert.Equal(t, "# Task\n\nGreet Ada.", out)

	out, err = DefaultConverterRegistry.Convert(ctx, "POML", "HTML", doc, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "Task</h1>")
	assert.Contains(t, out, "<p>Greet Ada.</p>")

	out, err = DefaultConverterRegistry.Convert(ctx, "poml", "result", []byte(doc), opts)
	require.NoError(t, err)
	res, ok := out.(Result)
	require.True(t, ok)
	assert.Equal(t, "# Task\n\nGreet Ada.", res.Text)

	out, err = DefaultConverterRegistry.Convert(ctx, "poml", "openai_chat", doc, opts)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"role": "user", "content": "# Task\n\nGreet Ada."}}, out.(map[string]any)["messages"])

	out, err = DefaultConverterRegistry.Convert(ctx, "poml", "org", doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "* Task\n\nGreet {{name}}.", out)
}

func TestConverterRegistryImports(t *testing.T) {
	out, err := DefaultConverterRegistry.Convert(context.Background(), "markdown", "poml", "# Title\n\nBody.", map[string]any{"indent": "\t"})
	require.NoError(t, err)
	root, err := ParseString(out.(string))
	require.NoError(t, err)
	cp := root.ElementChildren()[0]
	assert.Equal(t, "Title", cp.AttrOr("caption", ""))

	_, err = DefaultConverterRegistry.Convert(context.Background(), "org", "poml", 42, nil)
	assert.Error(t, err)
}

func TestConverterRegistryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DefaultConverterRegistry.Convert(ctx, "poml", "markdown", "<poml/>", nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConverterRegistryRegister(t *testing.T) {
	reg := NewConverterRegistry()
	upper := basicConverter{from: "text", to: "upper", fn: func(_ context.Context, input any, _ map[string]any) (any, error) {
		s, err := textInput(input)
		if err != nil {
			return nil, err
		}
		return s + "!", nil
	}}
	require.NoError(t, reg.Register(upper))
	assert.True(t, errors.Is(reg.Register(upper), ConverterExistsError))
	assert.Error(t, reg.Register(nil))

	out, err := reg.Convert(context.Background(), "Text", "Upper", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)

	_, err = reg.Convert(context.Background(), "text", "lower", "hi", nil)
	assert.Error(t, err)
	assert.Equal(t, []ConverterDescriptor{{From: "text", To: "upper"}}, reg.List())
}

func TestDefaultConverterList(t *testing.T) {
	list := DefaultConverterRegistry.List()
	assert.Contains(t, list, ConverterDescriptor{From: "poml", To: "dict"})
	assert.Contains(t, list, ConverterDescriptor{From: "org", To: "poml"})
}
