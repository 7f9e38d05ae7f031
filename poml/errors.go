package poml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

type ErrorType string

const (
	ErrInvalidSchema ErrorType = "invalid_schema"
	ErrDecode        ErrorType = "decode_error"
	ErrValidate      ErrorType = "validation_error"
	ErrRender        ErrorType = "render_error"
)

var (
	// ErrNotImplemented signals that a conversion target is not supported.
	ErrNotImplemented = errors.New("conversion not implemented")
	// ErrDuplicateResponseSchema is raised when a document declares more than one output schema.
	ErrDuplicateResponseSchema = errors.New("response schema already defined")
	// ErrInvalidSchemaJSON is raised when a schema-defining component carries malformed JSON.
	ErrInvalidSchemaJSON = errors.New("invalid schema JSON")
	// ErrComponentExists indicates a duplicate component registration.
	ErrComponentExists = errors.New("component already registered")
	// ErrIncludeCycle marks an include that re-enters a file already on the include stack.
	ErrIncludeCycle = errors.New("include cycle detected")
)

// POMLError wraps decoding/validation/render issues with context and type.
type POMLError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ValidationError groups structural problems.
type ValidationError struct {
	Issues []string
}

func (e *POMLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *POMLError) Unwrap() error { return e.Err }

func (v *ValidationError) Error() string {
	return "poml validation failed: " + strings.Join(v.Issues, "; ")
}

func wrapXMLError(err error, context string) error {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return &POMLError{Type: ErrDecode, Message: fmt.Sprintf("%s (line %d)", context, se.Line), Err: err}
	}
	return &POMLError{Type: ErrDecode, Message: context, Err: err}
}

func renderError(tag string, err error) error {
	return &POMLError{Type: ErrRender, Message: "<" + tag + ">", Err: err}
}

func schemaError(tag string, err error) error {
	return &POMLError{Type: ErrInvalidSchema, Message: "<" + tag + ">", Err: err}
}
