// Package config holds the hook's settings and loads them from the sources a
// package author or CI operator can reach.
//
// # Sources
//
// Settings are layered, later sources winning:
//   - Default(): the conductor-kit release coordinates and hook behaviour
//   - an optional file named by --config or CONDUCTOR_HOOK_CONFIG
//   - environment variables (CONDUCTOR_VERSION, CONDUCTOR_NATIVE_DIR, ...)
//   - command-line flags, applied by the CLI
//
// # File formats
//
// Lua files run in a sandboxed gopher-lua VM with the read-only platform
// table injected, and must assign a global "hook" table:
//
//	hook = {
//	    version  = "0.9.2",
//	    dest_dir = platform.is_macos and "/opt/conductor" or nil,
//	    verify   = "sha256",
//	}
//
// YAML files use the same keys. JSON files (.json or .jsonc) may carry
// comments and trailing commas and are decoded through the YAML path, so
// durations are written as strings ("90s"). Unknown keys are rejected in
// both formats.
//
// # Skip gate
//
// SkipReason must be consulted before any other work. When CI or
// CONDUCTOR_SKIP_POSTINSTALL is non-empty the hook does nothing at all,
// not even reading a config file.
package config
