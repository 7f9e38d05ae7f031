package poml

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Syntax names understood by the syntax oracle.
const (
	SyntaxMarkdown = "markdown"
	SyntaxHTML     = "html"
	SyntaxXML      = "xml"
)

// Output formats. The zero value renders Markdown.
const (
	OutputMarkdown = ""
	OutputHTML     = "html"
	OutputCSV      = "csv"
	OutputTSV      = "tsv"
	OutputText     = "text"
	OutputJSON     = "json"
	OutputYAML     = "yaml"
	OutputXML      = "xml"
)

// ChatMessage is one entry of the structured chat side channel.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes a tool/function registered by a document.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// session holds state shared by every frame of one render pass, including
// frames of included documents. Side channels are append-only.
type session struct {
	stylesheet     map[string]map[string]string
	outputFormat   string
	formatSet      bool
	messages       []ChatMessage
	tools          []ToolDefinition
	responseSchema any
	schemaSet      bool
	metadata       map[string]string
	runtime        map[string]any
	disabled       map[string]struct{}
	chat           bool
	defaultSyntax  string

	registry    *ComponentRegistry
	loader      Loader
	serializer  Serializer
	logger      *zap.Logger
	maxDepth    int
	includeSeen map[string]int
}

// listState is the counter of the innermost enclosing list.
type listState struct {
	style string
	index int
}

// RenderContext is the per-frame view of a render pass. Frames are copied
// when descending into a scope (header nesting, lists, syntax overrides), so
// restoring the outer state happens by returning to the parent frame.
// Variables are shared by frames of one scope; loop and include scopes get
// a cloned binding set so their locals never leak to siblings.
//
// A RenderContext must not be shared by concurrent renders.
type RenderContext struct {
	s           *session
	vars        Variables
	headerLevel int
	list        *listState
	syntax      string
	sourcePath  string
	depth       int
}

// NewRenderContext builds the root frame for a render pass.
func NewRenderContext(opts Options) *RenderContext {
	opts = opts.withDefaults()
	s := &session{
		stylesheet:    make(map[string]map[string]string),
		metadata:      make(map[string]string),
		runtime:       make(map[string]any),
		disabled:      make(map[string]struct{}),
		chat:          !opts.InlineMessages,
		defaultSyntax: opts.Syntax,
		registry:      opts.Registry,
		loader:        opts.Loader,
		serializer:    opts.Serializer,
		logger:        opts.Logger,
		maxDepth:      opts.MaxIncludeDepth,
		includeSeen:   make(map[string]int),
	}
	if opts.OutputFormat != "" {
		s.outputFormat = strings.ToLower(opts.OutputFormat)
		s.formatSet = true
	}
	for _, tag := range opts.DisabledComponents {
		s.disabled[normalizeTag(tag)] = struct{}{}
	}
	vars := make(Variables, len(opts.Variables))
	for k, v := range opts.Variables {
		vars[k] = v
	}
	return &RenderContext{
		s:           s,
		vars:        vars,
		headerLevel: 1,
		sourcePath:  opts.SourcePath,
	}
}

func (c *RenderContext) frame() *RenderContext {
	cp := *c
	return &cp
}

// Nested returns a frame one header level deeper.
func (c *RenderContext) Nested() *RenderContext {
	f := c.frame()
	f.headerLevel++
	return f
}

// WithSyntax returns a frame whose descendants default to syntax.
func (c *RenderContext) WithSyntax(syntax string) *RenderContext {
	f := c.frame()
	f.syntax = strings.ToLower(strings.TrimSpace(syntax))
	return f
}

// withList returns a frame inside a fresh list counter.
func (c *RenderContext) withList(style string) *RenderContext {
	f := c.frame()
	f.list = &listState{style: style}
	return f
}

// Derive returns a frame with a cloned variable scope plus bindings. The
// parent's bindings are untouched.
func (c *RenderContext) Derive(bindings Variables) *RenderContext {
	f := c.frame()
	f.vars = c.vars.clone()
	for k, v := range bindings {
		f.vars[k] = v
	}
	return f
}

// Child forks a context for an included document: a copy of the current
// variables, a new source path, and the same shared registries.
func (c *RenderContext) Child(sourcePath string) *RenderContext {
	f := c.Derive(nil)
	f.sourcePath = sourcePath
	f.headerLevel = 1
	f.list = nil
	f.depth = c.depth + 1
	return f
}

// Template returns an evaluator over the frame's variables.
func (c *RenderContext) Template() TemplateEngine {
	return NewTemplateEngine(c.vars)
}

// SetVariable binds name in the frame's current scope.
func (c *RenderContext) SetVariable(name string, value any) {
	c.vars[name] = value
}

// Variable returns the binding for name.
func (c *RenderContext) Variable(name string) (any, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// HeaderLevel is the current heading depth (>= 1).
func (c *RenderContext) HeaderLevel() int { return c.headerLevel }

// SourcePath is the file being rendered; relative includes resolve against it.
func (c *RenderContext) SourcePath() string { return c.sourcePath }

// BaseDir is the directory of the current source path.
func (c *RenderContext) BaseDir() string {
	if c.sourcePath == "" {
		return ""
	}
	return filepath.Dir(c.sourcePath)
}

// Logger returns the pass logger.
func (c *RenderContext) Logger() *zap.Logger { return c.s.logger }

// DetermineSyntax is the syntax oracle: the element's own syntax attribute,
// then the nearest enclosing override, then the document default. An xml
// output format implies xml syntax.
func (c *RenderContext) DetermineSyntax(el *Element) string {
	if v, ok := el.Attr("syntax"); ok && strings.TrimSpace(v) != "" {
		return strings.ToLower(strings.TrimSpace(v))
	}
	if c.syntax != "" {
		return c.syntax
	}
	if c.s.defaultSyntax != "" {
		return c.s.defaultSyntax
	}
	if c.s.outputFormat == OutputXML {
		return SyntaxXML
	}
	return SyntaxMarkdown
}

// OutputFormat returns the declared output format ("" for Markdown).
func (c *RenderContext) OutputFormat() string { return c.s.outputFormat }

// DeclareOutputFormat sets the output format once; later declarations are
// ignored and reported false.
func (c *RenderContext) DeclareOutputFormat(format string) bool {
	if c.s.formatSet {
		c.s.logger.Warn(LogMsgOutputFormatIgnored,
			zap.String(LogFieldFormat, format),
			zap.String(LogFieldCurrent, c.s.outputFormat))
		return false
	}
	c.s.outputFormat = strings.ToLower(strings.TrimSpace(format))
	if c.s.outputFormat == "markdown" {
		c.s.outputFormat = OutputMarkdown
	}
	c.s.formatSet = true
	return true
}

// Chat reports whether message components feed the chat side channel.
func (c *RenderContext) Chat() bool { return c.s.chat }

// AddMessage appends to the chat side channel.
func (c *RenderContext) AddMessage(role, content string) {
	c.s.messages = append(c.s.messages, ChatMessage{Role: role, Content: content})
}

// AddTool appends to the tool registry.
func (c *RenderContext) AddTool(tool ToolDefinition) {
	c.s.tools = append(c.s.tools, tool)
}

// SetResponseSchema records the response schema. A second call fails with
// ErrDuplicateResponseSchema.
func (c *RenderContext) SetResponseSchema(schema any) error {
	if c.s.schemaSet {
		return ErrDuplicateResponseSchema
	}
	c.s.responseSchema = schema
	c.s.schemaSet = true
	return nil
}

// SetMetadata records a custom metadata entry.
func (c *RenderContext) SetMetadata(key, value string) {
	c.s.metadata[key] = value
}

// SetRuntime records a runtime parameter.
func (c *RenderContext) SetRuntime(key string, value any) {
	c.s.runtime[key] = value
}

// DisableComponent makes dispatch skip tag.
func (c *RenderContext) DisableComponent(tag string) {
	c.s.disabled[normalizeTag(tag)] = struct{}{}
}

// EnableComponent reverses DisableComponent.
func (c *RenderContext) EnableComponent(tag string) {
	delete(c.s.disabled, normalizeTag(tag))
}

// IsDisabled reports whether dispatch treats tag as a no-op.
func (c *RenderContext) IsDisabled(tag string) bool {
	_, ok := c.s.disabled[normalizeTag(tag)]
	return ok
}

// MergeStylesheet merges rules into the stylesheet. Selectors are tag names
// or .className; later rules for the same selector/attribute overwrite.
func (c *RenderContext) MergeStylesheet(rules map[string]map[string]string) {
	for sel, attrs := range rules {
		key := stylesheetKey(sel)
		existing, ok := c.s.stylesheet[key]
		if !ok {
			existing = make(map[string]string, len(attrs))
			c.s.stylesheet[key] = existing
		}
		for k, v := range attrs {
			existing[strings.ToLower(k)] = v
		}
	}
}

// StyleRule returns the stylesheet attribute for selector.
func (c *RenderContext) StyleRule(selector, attr string) (string, bool) {
	rule, ok := c.s.stylesheet[stylesheetKey(selector)]
	if !ok {
		return "", false
	}
	v, ok := rule[strings.ToLower(attr)]
	return v, ok
}

func stylesheetKey(selector string) string {
	sel := strings.TrimSpace(selector)
	if strings.HasPrefix(sel, ".") {
		return sel
	}
	return normalizeTag(sel)
}

// enterInclude registers path on the include stack and returns the release
// func. It fails when path is already being rendered or the depth limit is
// reached.
func (c *RenderContext) enterInclude(path string) (func(), error) {
	if c.depth >= c.s.maxDepth {
		return nil, fmt.Errorf("include depth %d exceeds limit %d", c.depth+1, c.s.maxDepth)
	}
	if c.s.includeSeen[path] > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncludeCycle, path)
	}
	c.s.includeSeen[path]++
	return func() { c.s.includeSeen[path]-- }, nil
}

func (c *RenderContext) result(text string) Result {
	res := Result{
		Text:           text,
		Messages:       append([]ChatMessage(nil), c.s.messages...),
		Tools:          append([]ToolDefinition(nil), c.s.tools...),
		ResponseSchema: c.s.responseSchema,
		OutputFormat:   c.s.outputFormat,
	}
	if len(c.s.metadata) > 0 {
		res.Metadata = make(map[string]string, len(c.s.metadata))
		for k, v := range c.s.metadata {
			res.Metadata[k] = v
		}
	}
	if len(c.s.runtime) > 0 {
		res.Runtime = make(map[string]any, len(c.s.runtime))
		for k, v := range c.s.runtime {
			res.Runtime[k] = v
		}
	}
	return res
}
