package hook

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

func TestExecRunner(t *testing.T) {
	tests := []struct {
		name     string
		cmd      string
		args     []string
		wantCode int
		wantErr  bool
		wantOut  string
	}{
		{"success", "/bin/sh", []string{"-c", "echo hello"}, 0, false, "hello\n"},
		{"exit_code", "/bin/sh", []string{"-c", "exit 3"}, 3, false, ""},
		{"missing_binary", filepath.Join(t.TempDir(), "nope"), nil, -1, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			r := &ExecRunner{Stdout: &out, Stderr: &out}

			code, err := r.Run(context.Background(), tt.cmd, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if code != tt.wantCode {
				t.Errorf("Run() code = %d, want %d", code, tt.wantCode)
			}
			if out.String() != tt.wantOut {
				t.Errorf("output = %q, want %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusSkipped:   "skipped",
		StatusInstalled: "installed",
		StatusPlanned:   "planned",
		StatusFailed:    "failed",
		Status(42):      "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}
