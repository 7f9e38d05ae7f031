package poml

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Format names a chat payload shape a Result can be converted to.
type Format string

const (
	FormatMessageDict Format = "message_dict"
	FormatDict        Format = "dict"
	FormatOpenAIChat  Format = "openai_chat"
	FormatLangChain   Format = "langchain"
	FormatPydantic    Format = "pydantic"
)

// Convert shapes a render Result into the requested chat payload.
func Convert(res Result, format Format) (any, error) {
	switch format {
	case FormatMessageDict:
		return convertMessageDict(res), nil
	case FormatDict, FormatPydantic:
		return convertDict(res), nil
	case FormatOpenAIChat:
		return convertOpenAIChat(res), nil
	case FormatLangChain:
		return convertLangChain(res), nil
	}
	return nil, ErrNotImplemented
}

// ConvertString renders a POML string and converts it in one step.
func ConvertString(body string, format Format, opts Options) (any, error) {
	res, err := RenderString(body, opts)
	if err != nil {
		return nil, err
	}
	return Convert(res, format)
}

// conversation returns the chat turns of res. Text rendered outside message
// components becomes a leading human turn.
func conversation(res Result) []ChatMessage {
	turns := make([]ChatMessage, 0, len(res.Messages)+1)
	if text := strings.TrimSpace(res.Text); text != "" {
		turns = append(turns, ChatMessage{Role: "human", Content: text})
	}
	return append(turns, res.Messages...)
}

// speakerNames maps a chat role to its name in each payload shape. Unknown
// roles take the "human" entry.
var speakerNames = map[Format]map[string]string{
	FormatMessageDict: {"human": "human", "assistant": "ai", "system": "system"},
	FormatOpenAIChat:  {"human": "user", "assistant": "assistant", "system": "system"},
	FormatLangChain:   {"human": "human", "assistant": "ai", "system": "system"},
}

func speakerFor(format Format, role string) string {
	names := speakerNames[format]
	if name, ok := names[role]; ok {
		return name
	}
	return names["human"]
}

type messageDict struct {
	Speaker string `json:"speaker"`
	Content any    `json:"content"`
}

func convertMessageDict(res Result) []messageDict {
	var msgs []messageDict
	for _, turn := range conversation(res) {
		msgs = append(msgs, messageDict{Speaker: speakerFor(FormatMessageDict, turn.Role), Content: turn.Content})
	}
	return msgs
}

type dictOutput struct {
	Messages []messageDict  `json:"messages"`
	Schema   any            `json:"schema,omitempty"`
	Tools    []any          `json:"tools,omitempty"`
	Runtime  map[string]any `json:"runtime,omitempty"`
}

func convertDict(res Result) dictOutput {
	out := dictOutput{
		Messages: convertMessageDict(res),
		Schema:   res.ResponseSchema,
		Tools:    toolPayloads(res.Tools, false),
	}
	if len(res.Runtime) > 0 {
		out.Runtime = res.Runtime
	}
	return out
}

// convertOpenAIChat builds a chat-completions request body. Runtime
// parameters are merged at the top level.
func convertOpenAIChat(res Result) map[string]any {
	var messages []map[string]any
	for _, turn := range conversation(res) {
		messages = append(messages, map[string]any{
			"role":    speakerFor(FormatOpenAIChat, turn.Role),
			"content": turn.Content,
		})
	}
	body := map[string]any{"messages": messages}
	for k, v := range res.Runtime {
		body[k] = v
	}
	if res.ResponseSchema != nil {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "schema",
				"schema": res.ResponseSchema,
				"strict": true,
			},
		}
	}
	if tools := toolPayloads(res.Tools, true); tools != nil {
		body["tools"] = tools
	}
	return body
}

func convertLangChain(res Result) map[string]any {
	var messages []map[string]any
	for _, turn := range conversation(res) {
		messages = append(messages, map[string]any{
			"type": speakerFor(FormatLangChain, turn.Role),
			"data": map[string]any{"content": turn.Content},
		})
	}
	out := map[string]any{"messages": messages}
	if res.ResponseSchema != nil {
		out["schema"] = res.ResponseSchema
	}
	if tools := toolPayloads(res.Tools, false); tools != nil {
		out["tools"] = tools
	}
	if len(res.Runtime) > 0 {
		out["runtime"] = res.Runtime
	}
	return out
}

// toolPayloads describes each tool as a function. Nested payloads use the
// {"type": "function", "function": {...}} envelope; flat ones carry the
// type beside the name.
func toolPayloads(tools []ToolDefinition, nested bool) []any {
	if len(tools) == 0 {
		return nil
	}
	out := make([]any, 0, len(tools))
	for _, td := range tools {
		fn := map[string]any{"name": td.Name}
		if td.Description != "" {
			fn["description"] = td.Description
		}
		if td.Parameters != nil {
			fn["parameters"] = td.Parameters
		}
		if nested {
			out = append(out, map[string]any{"type": "function", "function": fn})
			continue
		}
		fn["type"] = "function"
		out = append(out, fn)
	}
	return out
}

// looseKeyRe matches an unquoted object key.
var looseKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_][\w\-]*)\s*:`)

// parseLooseJSONValue decodes body as JSON. Bodies written with single
// quotes or bare keys are accepted after quoting.
func parseLooseJSONValue(body string) (any, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, false
	}
	quoted := looseKeyRe.ReplaceAllString(strings.ReplaceAll(body, "'", `"`), `$1"$2":`)
	for _, candidate := range []string{body, quoted} {
		var v any
		if json.Unmarshal([]byte(candidate), &v) == nil {
			return v, true
		}
	}
	return nil, false
}

// normalizeRuntimeKey turns maxTokens and max-tokens into max_tokens.
func normalizeRuntimeKey(key string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case r == '-':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseRuntimeValue types a runtime attribute: integers first, then any
// JSON literal. Anything else stays a string.
func parseRuntimeValue(val string) any {
	val = strings.TrimSpace(val)
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	var v any
	if val != "" && json.Unmarshal([]byte(val), &v) == nil {
		return v
	}
	return val
}

func stripCDATA(body string) string {
	body = strings.TrimSpace(body)
	if inner, ok := strings.CutPrefix(body, "<![CDATA["); ok {
		if inner, ok = strings.CutSuffix(inner, "]]>"); ok {
			return inner
		}
	}
	return body
}
