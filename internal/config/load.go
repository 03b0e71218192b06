package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skyline-23/conductor-hook/internal/platform"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileSize bounds the config file read into memory.
const MaxConfigFileSize = 1 << 20

// Load builds the effective configuration: defaults, then the file at path
// (if any), then the environment.
func Load(ctx context.Context, path string, detector platform.Detector, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		var err error
		cfg, err = LoadFile(ctx, path, detector, cfg)
		if err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the Lua, YAML or JSONC file at path onto base.
func LoadFile(ctx context.Context, path string, detector platform.Detector, base *Config) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("config file %s too large (%d bytes, max %d)", path, info.Size(), MaxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".lua":
		return NewParser(detector).ParseString(ctx, string(data), base)
	case ".yaml", ".yml":
		return parseYAML(data, base)
	case ".json", ".jsonc":
		return parseJSONC(data, base)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q (want .lua, .yaml, .yml, .json or .jsonc)", ext)
	}
}

func parseYAML(data []byte, base *Config) (*Config, error) {
	cfg := *base
	cfg.SetupArgs = append([]string(nil), base.SetupArgs...)

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{
			Message: "YAML syntax error",
			Detail:  err.Error(),
		}
	}
	return &cfg, nil
}

// parseJSONC accepts JSON with comments and trailing commas. The document is
// re-encoded as YAML so both formats share key names and strict decoding.
func parseJSONC(data []byte, base *Config) (*Config, error) {
	stripped := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(stripped)) == 0 {
		return parseYAML(nil, base)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(stripped, &doc); err != nil {
		return nil, &ParseError{
			Message: "JSON syntax error",
			Detail:  err.Error(),
		}
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encode JSON config: %w", err)
	}
	return parseYAML(out, base)
}
