package poml

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Converter turns input of one format into another (e.g., markdown -> poml,
// poml -> openai_chat).
type Converter interface {
	From() string
	To() string
	Convert(ctx context.Context, input any, opts map[string]any) (any, error)
}

// ConverterDescriptor names one registered from -> to mapping.
type ConverterDescriptor struct {
	From string
	To   string
}

func (d ConverterDescriptor) String() string { return d.From + "->" + d.To }

func descriptorOf(from, to string) ConverterDescriptor {
	return ConverterDescriptor{From: strings.ToLower(from), To: strings.ToLower(to)}
}

// ConverterExistsError indicates a duplicate registration attempt.
var ConverterExistsError = errors.New("converter already registered")

// ConverterRegistry maps format pairs to converters. It is safe for
// concurrent use.
type ConverterRegistry struct {
	mu         sync.RWMutex
	converters map[ConverterDescriptor]Converter
}

// NewConverterRegistry builds an empty registry.
func NewConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{converters: make(map[ConverterDescriptor]Converter)}
}

// Register adds conv. A second converter for the same pair fails with
// ConverterExistsError.
func (r *ConverterRegistry) Register(conv Converter) error {
	if conv == nil {
		return errors.New("converter is nil")
	}
	key := descriptorOf(conv.From(), conv.To())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.converters[key]; dup {
		return fmt.Errorf("%w: %s", ConverterExistsError, key)
	}
	r.converters[key] = conv
	return nil
}

// List returns the registered pairs ordered by source then target.
func (r *ConverterRegistry) List() []ConverterDescriptor {
	r.mu.RLock()
	out := make([]ConverterDescriptor, 0, len(r.converters))
	for d := range r.converters {
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Convert runs the converter registered for from -> to.
func (r *ConverterRegistry) Convert(ctx context.Context, from, to string, input any, opts map[string]any) (any, error) {
	key := descriptorOf(from, to)
	r.mu.RLock()
	conv, ok := r.converters[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no converter for %s", key)
	}
	return conv.Convert(ctx, input, opts)
}

// DefaultConverterRegistry holds the built-in converters.
var DefaultConverterRegistry = newDefaultConverterRegistry()

func newDefaultConverterRegistry() *ConverterRegistry {
	reg := NewConverterRegistry()
	for _, conv := range builtinConverters() {
		if err := reg.Register(conv); err != nil {
			panic(err)
		}
	}
	return reg
}

type convertFunc func(ctx context.Context, input any, opts map[string]any) (any, error)

type basicConverter struct {
	from string
	to   string
	fn   convertFunc
}

func (c basicConverter) From() string { return c.from }
func (c basicConverter) To() string   { return c.to }
func (c basicConverter) Convert(ctx context.Context, input any, opts map[string]any) (any, error) {
	return c.fn(ctx, input, opts)
}

// fromResult adapts a function of the render Result into a poml converter.
func fromResult(to string, fn func(Result) (any, error)) basicConverter {
	return basicConverter{from: "poml", to: to, fn: func(ctx context.Context, input any, opts map[string]any) (any, error) {
		res, err := renderInput(ctx, input, opts)
		if err != nil {
			return nil, err
		}
		return fn(res)
	}}
}

func builtinConverters() []Converter {
	convs := []Converter{
		fromResult("result", func(res Result) (any, error) { return res, nil }),
		fromResult("markdown", func(res Result) (any, error) { return res.Text, nil }),
		fromResult("html", func(res Result) (any, error) {
			if res.OutputFormat == OutputHTML {
				return res.Text, nil
			}
			return MarkdownToHTML(res.Text)
		}),
		basicConverter{from: "poml", to: "org", fn: func(_ context.Context, input any, _ map[string]any) (any, error) {
			root, err := elementInput(input)
			if err != nil {
				return nil, err
			}
			return ConvertPOMLToText(root, FormatOrg, Options{})
		}},
	}
	for _, f := range []Format{FormatMessageDict, FormatDict, FormatOpenAIChat, FormatLangChain} {
		format := f
		convs = append(convs, fromResult(string(format), func(res Result) (any, error) {
			return Convert(res, format)
		}))
	}
	for _, f := range []TextFormat{FormatMarkdown, FormatOrg} {
		convs = append(convs, importConverter(f))
	}
	return convs
}

// importConverter parses markdown or org text and encodes it as POML. The
// "indent" option overrides the two-space default.
func importConverter(format TextFormat) basicConverter {
	return basicConverter{from: string(format), to: "poml", fn: func(_ context.Context, input any, opts map[string]any) (any, error) {
		body, err := textInput(input)
		if err != nil {
			return nil, fmt.Errorf("%s->poml converter: %w", format, err)
		}
		root, err := ConvertTextToPOML(body, format)
		if err != nil {
			return nil, err
		}
		indent, _ := opts["indent"].(string)
		if indent == "" {
			indent = "  "
		}
		var sb strings.Builder
		if err := root.EncodeWithOptions(&sb, EncodeOptions{Indent: indent}); err != nil {
			return nil, err
		}
		return sb.String(), nil
	}}
}

func textInput(input any) (string, error) {
	switch v := input.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return "", fmt.Errorf("expects string or []byte, got %T", input)
}

func elementInput(input any) (*Element, error) {
	if el, ok := input.(*Element); ok {
		return el, nil
	}
	body, err := textInput(input)
	if err != nil {
		return nil, fmt.Errorf("poml converter expects string, []byte, or *Element, got %T", input)
	}
	return ParseString(body)
}

// renderInput renders input with render options read from opts:
// "variables" (map[string]any), "syntax", "base_dir", "source_path".
func renderInput(ctx context.Context, input any, opts map[string]any) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	root, err := elementInput(input)
	if err != nil {
		return Result{}, err
	}
	var ro Options
	if v, ok := opts["variables"].(map[string]any); ok {
		ro.Variables = v
	}
	ro.Syntax, _ = opts["syntax"].(string)
	ro.BaseDir, _ = opts["base_dir"].(string)
	ro.SourcePath, _ = opts["source_path"].(string)
	return Render(root, ro)
}
