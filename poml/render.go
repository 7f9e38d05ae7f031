package poml

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxIncludeDepth bounds nested includes.
const DefaultMaxIncludeDepth = 16

// Options configures a render pass. The zero value renders Markdown with
// chat messages collected into Result.Messages.
type Options struct {
	// Syntax is the document default syntax (markdown, html, xml).
	Syntax string
	// OutputFormat preselects the output format; a document declaration
	// is then ignored.
	OutputFormat string
	// InlineMessages renders message components as captioned blocks instead
	// of collecting them.
	InlineMessages bool
	// Variables seeds the root scope.
	Variables Variables
	// SourcePath is the file being rendered; includes resolve against it.
	SourcePath string
	// BaseDir roots relative paths when SourcePath is empty.
	BaseDir string
	// DisabledComponents are tags rendered as no-ops.
	DisabledComponents []string
	// MaxIncludeDepth defaults to DefaultMaxIncludeDepth.
	MaxIncludeDepth int

	Registry   *ComponentRegistry
	Loader     Loader
	Serializer Serializer
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = DefaultRegistry
	}
	if o.Loader == nil {
		o.Loader = FileLoader{Root: o.BaseDir}
	}
	if o.Serializer == nil {
		o.Serializer = DefaultSerializer{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.MaxIncludeDepth <= 0 {
		o.MaxIncludeDepth = DefaultMaxIncludeDepth
	}
	o.Syntax = strings.ToLower(strings.TrimSpace(o.Syntax))
	return o
}

// Result is the text of a render pass plus its side channels.
type Result struct {
	Text           string            `json:"text"`
	Messages       []ChatMessage     `json:"messages,omitempty"`
	Tools          []ToolDefinition  `json:"tools,omitempty"`
	ResponseSchema any               `json:"response_schema,omitempty"`
	OutputFormat   string            `json:"output_format,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Runtime        map[string]any    `json:"runtime,omitempty"`
}

// Render walks root and returns the rendered text and side channels. Only
// document errors (a second response schema, malformed schema JSON) fail the
// pass; missing sources and unknown tags render inline.
func Render(root *Element, opts Options) (Result, error) {
	ctx := NewRenderContext(opts)
	text, err := RenderElement(root, ctx)
	if err != nil {
		return Result{}, err
	}
	text = strings.TrimSpace(text)
	if ctx.OutputFormat() == OutputHTML {
		text, err = MarkdownToHTML(text)
		if err != nil {
			return Result{}, &POMLError{Type: ErrRender, Message: "html output", Err: err}
		}
	}
	ctx.Logger().Debug(LogMsgRenderComplete,
		zap.Int(LogFieldLength, len(text)),
		zap.String(LogFieldFormat, ctx.OutputFormat()),
		zap.String(LogFieldPath, ctx.SourcePath()))
	return ctx.result(text), nil
}

// RenderString parses body and renders it.
func RenderString(body string, opts Options) (Result, error) {
	root, err := ParseString(body)
	if err != nil {
		return Result{}, err
	}
	return Render(root, opts)
}

// RenderFile parses and renders path; relative includes resolve against
// its directory.
func RenderFile(path string, opts Options) (Result, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	if opts.SourcePath == "" {
		opts.SourcePath = path
	}
	if opts.BaseDir == "" {
		opts.BaseDir = filepath.Dir(path)
	}
	return RenderString(string(body), opts)
}
