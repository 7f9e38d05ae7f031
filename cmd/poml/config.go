package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "POML_"
	defaultConfigFile = "poml.toml"
)

// Config is the CLI configuration after layering defaults, the config
// file, POML_* environment variables and flags.
type Config struct {
	Syntax          string         `koanf:"syntax"`
	Format          string         `koanf:"format"`
	InlineMessages  bool           `koanf:"inline_messages"`
	BaseDir         string         `koanf:"base_dir"`
	MaxIncludeDepth int            `koanf:"max_include_depth"`
	LogLevel        string         `koanf:"log_level"`
	Variables       map[string]any `koanf:"variables"`
}

func defaults() map[string]any {
	return map[string]any{
		"syntax":            "markdown",
		"format":            "markdown",
		"inline_messages":   false,
		"base_dir":          "",
		"max_include_depth": 16,
		"log_level":         "warn",
	}
}

// envKey maps POML_MAX_INCLUDE_DEPTH to max_include_depth and
// POML_VAR_NAME to variables.name.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if rest, ok := strings.CutPrefix(key, "var_"); ok {
		return "variables." + rest
	}
	return key
}

// LoadConfig reads configuration. An explicit path must exist; the default
// poml.toml in the working directory is optional. overrides are applied
// last and typically come from flags.
func LoadConfig(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := path
	if configPath == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			configPath = defaultConfigFile
		}
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &cfg, nil
}

// parseVars turns k=v pairs into a variables map. Values that parse as JSON
// keep their type.
func parseVars(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid variable %q, expected name=value", p)
		}
		out[strings.TrimSpace(name)] = decodeVar(value)
	}
	return out, nil
}
