package poml

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Component renders one element kind. Implementations read the element and
// the frame, may feed side channels on the context, and return the text to
// splice into the output. Errors are reserved for malformed documents.
type Component interface {
	Render(el *Element, ctx *RenderContext) (string, error)
}

// ComponentFunc adapts a function to Component.
type ComponentFunc func(el *Element, ctx *RenderContext) (string, error)

// Render calls f.
func (f ComponentFunc) Render(el *Element, ctx *RenderContext) (string, error) {
	return f(el, ctx)
}

// ComponentRegistry maps tag names to components. Lookup folds case, dashes
// and underscores so output-format, outputFormat and OutputFormat agree.
// It is safe for concurrent use; render passes themselves are not.
type ComponentRegistry struct {
	mu         sync.RWMutex
	components map[string]Component
	names      map[string]string
}

// NewComponentRegistry builds an empty registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		components: make(map[string]Component),
		names:      make(map[string]string),
	}
}

// Register adds a component under tag and any aliases. It returns
// ErrComponentExists when one of the names is taken.
func (r *ComponentRegistry) Register(tag string, c Component, aliases ...string) error {
	if c == nil {
		return fmt.Errorf("component %q is nil", tag)
	}
	all := append([]string{tag}, aliases...)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range all {
		if _, exists := r.components[normalizeTag(name)]; exists {
			return fmt.Errorf("%w: %s", ErrComponentExists, name)
		}
	}
	for _, name := range all {
		key := normalizeTag(name)
		r.components[key] = c
		r.names[key] = name
	}
	return nil
}

// Lookup returns the component for tag.
func (r *ComponentRegistry) Lookup(tag string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[normalizeTag(tag)]
	return c, ok
}

// List returns the registered tag names sorted.
func (r *ComponentRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry is pre-populated with the built-in components.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *ComponentRegistry {
	reg := NewComponentRegistry()
	registerBuiltins(reg)
	return reg
}

// mustRegister panics on a duplicate name: built-in registration is static.
func mustRegister(reg *ComponentRegistry, tag string, c Component, aliases ...string) {
	if err := reg.Register(tag, c, aliases...); err != nil {
		panic(err)
	}
}

func registerBuiltins(reg *ComponentRegistry) {
	mustRegister(reg, "poml", ComponentFunc(renderRoot))

	mustRegister(reg, "role", captioned{tag: "role", caption: "Role", style: CaptionHeader})
	mustRegister(reg, "task", captioned{tag: "task", caption: "Task", style: CaptionHeader})
	mustRegister(reg, "hint", captioned{tag: "hint", caption: "Hint", style: CaptionBold})
	mustRegister(reg, "stepwise-instructions", captioned{tag: "stepwise-instructions", caption: "Stepwise Instructions", style: CaptionHeader, trimTrailing: true})
	mustRegister(reg, "output-format", captioned{tag: "output-format", caption: "Output Format", style: CaptionHeader})
	mustRegister(reg, "introducer", captioned{tag: "introducer", caption: "Introducer", style: CaptionHidden})
	mustRegister(reg, "cp", captioned{tag: "cp", caption: "", style: CaptionHeader, trimTrailing: true}, "captioned-paragraph")
	mustRegister(reg, "examples", captioned{tag: "examples", caption: "Examples", style: CaptionHeader, trimTrailing: true})
	mustRegister(reg, "example", captioned{tag: "example", caption: "Example", style: CaptionHidden, trimTrailing: true})
	mustRegister(reg, "input", captioned{tag: "input", caption: "Input", style: CaptionBold}, "example-input")
	mustRegister(reg, "output", ComponentFunc(renderOutput), "example-output")
	mustRegister(reg, "qa", ComponentFunc(renderQA), "question")

	mustRegister(reg, "list", ComponentFunc(renderList))
	mustRegister(reg, "item", ComponentFunc(renderItem))

	mustRegister(reg, "p", ComponentFunc(renderParagraph), "paragraph")
	mustRegister(reg, "b", inlineFormat{tag: "b", md: "**", html: "b"}, "bold")
	mustRegister(reg, "i", inlineFormat{tag: "i", md: "*", html: "i"}, "italic")
	mustRegister(reg, "u", inlineFormat{tag: "u", md: "__", html: "u"}, "underline")
	mustRegister(reg, "s", inlineFormat{tag: "s", md: "~~", html: "s"}, "strike", "strikethrough")
	mustRegister(reg, "code", ComponentFunc(renderCode))
	mustRegister(reg, "h", ComponentFunc(renderHeader), "header")
	mustRegister(reg, "section", ComponentFunc(renderSection))
	mustRegister(reg, "br", ComponentFunc(renderBreak))
	mustRegister(reg, "text", ComponentFunc(renderTextBlock))

	mustRegister(reg, "if", ComponentFunc(renderIf))
	mustRegister(reg, "for", ComponentFunc(renderFor))
	mustRegister(reg, "include", ComponentFunc(renderInclude))

	mustRegister(reg, "let", ComponentFunc(renderLet))
	mustRegister(reg, "meta", ComponentFunc(renderMeta))
	mustRegister(reg, "stylesheet", ComponentFunc(renderStylesheet))
	mustRegister(reg, "output-schema", ComponentFunc(renderOutputSchema))
	mustRegister(reg, "tool-definition", ComponentFunc(renderToolDefinition), "tool")
	mustRegister(reg, "runtime", ComponentFunc(renderRuntime))
	mustRegister(reg, "human-msg", message{role: "human", caption: "Human"}, "user-msg")
	mustRegister(reg, "ai-msg", message{role: "assistant", caption: "AI"}, "assistant-msg")
	mustRegister(reg, "system-msg", message{role: "system", caption: "System"})

	mustRegister(reg, "table", ComponentFunc(renderTable))
	mustRegister(reg, "object", ComponentFunc(renderObject), "obj")
	mustRegister(reg, "document", ComponentFunc(renderDocument), "doc")
	mustRegister(reg, "img", ComponentFunc(renderImage), "image")
	mustRegister(reg, "audio", ComponentFunc(renderAudio))
	mustRegister(reg, "webpage", ComponentFunc(renderWebpage))
	mustRegister(reg, "folder", ComponentFunc(renderFolder))
}

// RenderElement dispatches el to its component. Text nodes use the plain
// text formatter, unknown tags the fallback formatter, and disabled tags
// render nothing. A syntax attribute becomes the default for descendants.
func RenderElement(el *Element, ctx *RenderContext) (string, error) {
	if el == nil {
		return "", nil
	}
	if el.Kind == NodeText {
		return renderPlainText(el, ctx), nil
	}
	if ctx.IsDisabled(el.Tag) {
		ctx.Logger().Debug(LogMsgComponentDisabled, zap.String(LogFieldTag, el.Tag))
		return "", nil
	}
	if syntax, ok := el.Attr("syntax"); ok && strings.TrimSpace(syntax) != "" {
		ctx = ctx.WithSyntax(syntax)
	}
	comp, ok := ctx.s.registry.Lookup(el.Tag)
	if !ok {
		ctx.Logger().Debug(LogMsgUnknownTag, zap.String(LogFieldTag, el.Tag))
		return renderUnknown(el, ctx)
	}
	return comp.Render(el, ctx)
}
