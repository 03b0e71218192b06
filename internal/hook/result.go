package hook

import "time"

// Status is the outcome of a hook run.
type Status int

const (
	// StatusSkipped means the environment gate stopped the run.
	StatusSkipped Status = iota
	// StatusInstalled means the binary is in place. Setup may still have failed.
	StatusInstalled
	// StatusPlanned means a dry run resolved the release without downloading.
	StatusPlanned
	// StatusFailed means the binary could not be installed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusInstalled:
		return "installed"
	case StatusPlanned:
		return "planned"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes one hook run. Every run produces exactly one Result and
// none of them fail the surrounding package install.
type Result struct {
	Status Status

	// SkipReason is set for StatusSkipped.
	SkipReason string

	Version    string
	Platform   string // "os/arch"
	Asset      string
	BinaryPath string
	Verified   string

	// SetupExitCode is the setup command's exit code, or -1 if it could not
	// be run. SetupErr is set for spawn failures and non-zero exits.
	SetupRan      bool
	SetupExitCode int
	SetupErr      error

	// Err is set for StatusFailed.
	Err error

	Elapsed time.Duration
}

// SetupOK reports whether the setup command ran and exited 0.
func (r Result) SetupOK() bool {
	return r.SetupRan && r.SetupErr == nil && r.SetupExitCode == 0
}
