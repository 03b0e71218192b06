// Package testutil provides utilities for testing the hook in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// hookEnv lists every variable the hook reads from the environment.
var hookEnv = []string{
	"CI",
	"CONDUCTOR_SKIP_POSTINSTALL",
	"CONDUCTOR_VERSION",
	"CONDUCTOR_NATIVE_DIR",
	"CONDUCTOR_API_BASE",
	"CONDUCTOR_DOWNLOAD_BASE",
	"CONDUCTOR_VERIFY",
	"CONDUCTOR_KEYRING",
	"CONDUCTOR_HOOK_CONFIG",
	"GITHUB_TOKEN",
}

// SetupTestEnv isolates a test from the caller's environment.
// This ensures hook tests never:
// - skip because the suite itself runs under CI
// - pick up a developer's GITHUB_TOKEN or CONDUCTOR_* overrides
// - leave archives in the real temp directory
//
// It returns the temp root; TMPDIR points at root/tmp. Restoration is
// handled by t.Setenv and t.TempDir.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	for _, key := range hookEnv {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	scratch := filepath.Join(tmpDir, "tmp")
	if err := os.MkdirAll(scratch, 0o750); err != nil {
		t.Fatalf("failed to create test directory %s: %v", scratch, err)
	}
	t.Setenv("TMPDIR", scratch)

	return tmpDir
}

// Getenv returns a getenv function backed by vars.
func Getenv(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}
