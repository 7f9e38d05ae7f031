package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atlas-foundry/poml-renderer/poml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile   string
	verbosity int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "poml",
		Short:         "Render POML prompt markup",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./poml.toml)")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG)")

	root.AddCommand(newRenderCmd(), newImportCmd(), newExportCmd(), newComponentsCmd())
	return root
}

func newLogger(cfg *Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	switch {
	case verbosity >= 2:
		level = "debug"
	case verbosity == 1:
		level = "info"
	}
	return poml.NewLogger(level, verbosity > 0)
}

func newRenderCmd() *cobra.Command {
	var (
		vars   []string
		format string
		syntax string
		inline bool
	)
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Render a POML file",
		Long: `Render a POML file to markdown text or a chat payload.

Formats: markdown, html, result, message_dict, dict, openai_chat, langchain.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			if cmd.Flags().Changed("format") {
				overrides["format"] = format
			}
			if cmd.Flags().Changed("syntax") {
				overrides["syntax"] = syntax
			}
			if cmd.Flags().Changed("inline-messages") {
				overrides["inline_messages"] = inline
			}
			if len(vars) > 0 {
				parsed, err := parseVars(vars)
				if err != nil {
					return err
				}
				overrides["variables"] = parsed
			}
			cfg, err := LoadConfig(cfgFile, overrides)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			opts := poml.Options{
				Syntax:          cfg.Syntax,
				InlineMessages:  cfg.InlineMessages,
				Variables:       cfg.Variables,
				BaseDir:         cfg.BaseDir,
				MaxIncludeDepth: cfg.MaxIncludeDepth,
				Logger:          logger,
			}
			if cfg.Format == "html" {
				opts.OutputFormat = poml.OutputHTML
			}
			logger.Debug("render started", zap.String(poml.LogFieldPath, args[0]), zap.String(poml.LogFieldFormat, cfg.Format))
			res, err := poml.RenderFile(args[0], opts)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res, cfg.Format)
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Set a variable (name=value, repeatable)")
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format")
	cmd.Flags().StringVar(&syntax, "syntax", "markdown", "Default syntax (markdown, html, xml)")
	cmd.Flags().BoolVar(&inline, "inline-messages", false, "Render message components inline instead of as chat turns")
	return cmd
}

func writeResult(w io.Writer, res poml.Result, format string) error {
	var payload any
	switch strings.ToLower(format) {
	case "", "markdown", "text", "html":
		_, err := fmt.Fprintln(w, res.Text)
		return err
	case "result", "json":
		payload = res
	default:
		out, err := poml.Convert(res, poml.Format(format))
		if err != nil {
			return fmt.Errorf("format %q: %w", format, err)
		}
		payload = out
	}
	bs, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(bs))
	return err
}

// convertFile runs the registered from -> to converter over a file body.
func convertFile(cmd *cobra.Command, path, from, to string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := poml.DefaultConverterRegistry.Convert(cmd.Context(), from, to, body, map[string]any{"source_path": path})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}

func newImportCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Convert a markdown or org document to POML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertFile(cmd, args[0], from, "poml")
		},
	}
	cmd.Flags().StringVar(&from, "from", string(poml.FormatMarkdown), "Source format (markdown, org)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Convert a POML file to markdown, html or org text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertFile(cmd, args[0], "poml", to)
		},
	}
	cmd.Flags().StringVar(&to, "to", string(poml.FormatOrg), "Target format (markdown, html, org)")
	return cmd
}

func newComponentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: "List registered component tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, tag := range poml.DefaultRegistry.List() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), tag); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func decodeVar(value string) any {
	var v any
	if err := json.Unmarshal([]byte(value), &v); err == nil {
		return v
	}
	return value
}
