package config

import (
	"context"
	"fmt"
	"time"

	"github.com/Skyline-23/conductor-hook/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// luaGlobalHook is the global table a Lua config must assign.
const luaGlobalHook = "hook"

// LuaTimeout bounds how long a Lua config may run. A looping config must
// not stall the package install.
const LuaTimeout = 2 * time.Second

// Parser evaluates Lua hook configs with platform detection.
type Parser struct {
	detector platform.Detector
	timeout  time.Duration
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the platform table undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector, timeout: LuaTimeout}
}

// ParseString evaluates luaCode and overlays the "hook" table onto a copy of
// base.
func (p *Parser) ParseString(ctx context.Context, luaCode string, base *Config) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	evalCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	L.SetContext(evalCtx)

	if err := L.DoString(luaCode); err != nil {
		if evalCtx.Err() != nil && ctx.Err() == nil {
			return nil, &ParseError{
				Message: "Lua config timed out",
				Detail:  fmt.Sprintf("still running after %s", p.timeout),
			}
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L, base)
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

func extractConfig(L *lua.LState, base *Config) (*Config, error) {
	v := L.GetGlobal(luaGlobalHook)
	table, ok := v.(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'hook' table",
			Detail:  fmt.Sprintf("expected table, got %s", v.Type()),
		}
	}

	cfg := *base
	cfg.SetupArgs = append([]string(nil), base.SetupArgs...)

	strFields := map[string]*string{
		"owner":             &cfg.Owner,
		"repo":              &cfg.Repo,
		"binary":            &cfg.Binary,
		"version":           &cfg.Version,
		"dest_dir":          &cfg.DestDir,
		"api_base_url":      &cfg.APIBaseURL,
		"download_base_url": &cfg.DownloadBaseURL,
		"user_agent":        &cfg.UserAgent,
		"keyring":           &cfg.KeyringPath,
		"cert_identity":     &cfg.CertIdentity,
		"cert_issuer":       &cfg.CertIssuer,
		"fallback_hint":     &cfg.FallbackHint,
	}
	for name, dst := range strFields {
		if err := luaString(table, name, dst); err != nil {
			return nil, err
		}
	}

	var verify string
	if err := luaString(table, "verify", &verify); err != nil {
		return nil, err
	}
	if verify != "" {
		mode, err := ParseVerifyMode(verify)
		if err != nil {
			return nil, &ParseError{Message: "invalid field 'verify'", Detail: err.Error()}
		}
		cfg.Verify = mode
	}

	switch rv := table.RawGetString("max_redirects").(type) {
	case *lua.LNilType:
	case lua.LNumber:
		cfg.MaxRedirects = int(rv)
	default:
		return nil, fieldTypeError("max_redirects", "number", rv)
	}

	switch tv := table.RawGetString("timeout").(type) {
	case *lua.LNilType:
	case lua.LNumber:
		cfg.Timeout = time.Duration(float64(tv) * float64(time.Second))
	case lua.LString:
		d, err := time.ParseDuration(string(tv))
		if err != nil {
			return nil, &ParseError{Message: "invalid field 'timeout'", Detail: err.Error()}
		}
		cfg.Timeout = d
	default:
		return nil, fieldTypeError("timeout", "duration string or seconds", tv)
	}

	switch sv := table.RawGetString("skip_setup").(type) {
	case *lua.LNilType:
	case lua.LBool:
		cfg.SkipSetup = bool(sv)
	default:
		return nil, fieldTypeError("skip_setup", "boolean", sv)
	}

	switch av := table.RawGetString("setup_args").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		var args []string
		var bad lua.LValue
		av.ForEach(func(_, value lua.LValue) {
			if s, ok := value.(lua.LString); ok {
				args = append(args, string(s))
			} else if bad == nil {
				bad = value
			}
		})
		if bad != nil {
			return nil, fieldTypeError("setup_args", "array of strings", bad)
		}
		cfg.SetupArgs = args
	default:
		return nil, fieldTypeError("setup_args", "array of strings", av)
	}

	return &cfg, nil
}

// luaString copies a string field into dst when present. Nil (including the
// result of platform.when on a false condition) leaves dst untouched.
func luaString(table *lua.LTable, name string, dst *string) error {
	switch v := table.RawGetString(name).(type) {
	case *lua.LNilType:
		return nil
	case lua.LString:
		*dst = string(v)
		return nil
	default:
		return fieldTypeError(name, "string", v)
	}
}

func fieldTypeError(name, want string, got lua.LValue) error {
	return &ParseError{
		Message: fmt.Sprintf("invalid field '%s'", name),
		Detail:  fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}
