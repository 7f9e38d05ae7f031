package poml

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log messages and field names used by the renderer.
const (
	LogMsgUnknownTag          = "unknown tag rendered with fallback"
	LogMsgComponentDisabled   = "component disabled, skipping"
	LogMsgIncludeResolved     = "include resolved"
	LogMsgIncludeMissing      = "include source not found"
	LogMsgIncludeRejected     = "include rejected"
	LogMsgStylesheetRejected  = "stylesheet JSON rejected"
	LogMsgDataRejected        = "data payload rejected, treating as empty"
	LogMsgOutputFormatIgnored = "output format already declared, ignoring"
	LogMsgSourceUnavailable   = "source unavailable, emitting placeholder"
	LogMsgRenderComplete      = "render complete"

	LogFieldTag     = "tag"
	LogFieldSrc     = "src"
	LogFieldPath    = "path"
	LogFieldDepth   = "depth"
	LogFieldFormat  = "format"
	LogFieldCurrent = "current"
	LogFieldLength  = "length"
)

// NewLogger builds a zap logger for level ("debug", "info", "warn", "error").
// Unknown levels fall back to warn.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.WarnLevel
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
