package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atlas-foundry/poml-renderer/poml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "max_include_depth", envKey("POML_MAX_INCLUDE_DEPTH"))
	assert.Equal(t, "variables.name", envKey("POML_VAR_NAME"))
	assert.Equal(t, "syntax", envKey("POML_SYNTAX"))
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"name=Ada", "count=3", "flags=[1,2]"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", vars["name"])
	assert.Equal(t, float64(3), vars["count"])
	assert.Equal(t, []any{float64(1), float64(2)}, vars["flags"])

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "poml.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
syntax = "xml"
max_include_depth = 4

[variables]
name = "file"
`), 0o644))

	t.Setenv("POML_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path, map[string]any{"format": "openai_chat"})
	require.NoError(t, err)
	assert.Equal(t, "xml", cfg.Syntax)
	assert.Equal(t, 4, cfg.MaxIncludeDepth)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "openai_chat", cfg.Format)
	assert.Equal(t, "file", cfg.Variables["name"])
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "markdown", cfg.Syntax)
	assert.Equal(t, 16, cfg.MaxIncludeDepth)
	assert.False(t, cfg.InlineMessages)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"), nil)
	assert.Error(t, err)
}

func TestWriteResult(t *testing.T) {
	res := poml.Result{Text: "hello"}

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, res, "markdown"))
	assert.Equal(t, "hello\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResult(&buf, res, "openai_chat"))
	assert.Contains(t, buf.String(), `"role": "user"`)

	buf.Reset()
	assert.Error(t, writeResult(&buf, res, "nope"))
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "prompt.poml")
	require.NoError(t, os.WriteFile(path, []byte(`<poml><task>Greet {{name}}.</task></poml>`), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"render", path, "--var", "name=Ada"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "# Task\n\nGreet Ada.", strings.TrimSpace(out.String()))
}

func TestComponentsCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"components"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, strings.Split(out.String(), "\n"), "include")
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Intro\n\nHello there.\n"), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"import", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `caption="Intro"`)
	assert.Contains(t, out.String(), "Hello there.")
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.poml")
	require.NoError(t, os.WriteFile(path, []byte(`<poml><role>Helper</role></poml>`), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"export", path, "--to", "org"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "* Role\n\nHelper", strings.TrimSpace(out.String()))

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"export", path, "--to", "rst"})
	assert.Error(t, cmd.Execute())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
