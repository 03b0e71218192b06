// Package report prints the hook's progress and outcome for the person
// running the package install.
package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/Skyline-23/conductor-hook/internal/binary"
)

// DefaultHint is printed after a failure.
const DefaultHint = "brew install Skyline-23/conductor-kit/conductor-kit"

// Reporter writes progress to out and warnings to errOut.
// It implements binary.Progress.
type Reporter struct {
	out    io.Writer
	errOut io.Writer
	hint   string

	title   lipgloss.Style
	warning lipgloss.Style
	faint   lipgloss.Style
}

var _ binary.Progress = (*Reporter)(nil)

// New creates a Reporter. Styling is dropped automatically when a writer
// is not a terminal.
func New(out, errOut io.Writer, hint string) *Reporter {
	if hint == "" {
		hint = DefaultHint
	}
	outRenderer := lipgloss.NewRenderer(out)
	errRenderer := lipgloss.NewRenderer(errOut)

	return &Reporter{
		out:     out,
		errOut:  errOut,
		hint:    hint,
		title:   outRenderer.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		warning: errRenderer.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		faint:   outRenderer.NewStyle().Faint(true),
	}
}

func (r *Reporter) println(a ...interface{}) {
	fmt.Fprintln(r.out, a...)
}

// Skipped reports a gated run.
func (r *Reporter) Skipped(reason string) {
	r.println("Skipping postinstall " + reason)
}

// Platform reports the detected platform.
func (r *Reporter) Platform(goos, goarch string) {
	r.println(fmt.Sprintf("Platform: %s, Architecture: %s", goos, goarch))
}

// Version reports the release being installed. latest is false for a
// pinned version.
func (r *Reporter) Version(version string, latest bool) {
	if latest {
		r.println("Latest version: " + version)
		return
	}
	r.println("Version: " + version)
}

// Downloading implements binary.Progress.
func (r *Reporter) Downloading(asset *binary.Asset) {
	r.println(fmt.Sprintf("Downloading %s...", asset.Name))
}

// Verifying implements binary.Progress.
func (r *Reporter) Verifying(method string) {
	r.println(fmt.Sprintf("Verifying (%s)...", method))
}

// Extracting implements binary.Progress.
func (r *Reporter) Extracting(*binary.Asset) {
	r.println("Extracting...")
}

// DryRun prints what an install would do.
func (r *Reporter) DryRun(asset *binary.Asset, destDir string, setup []string) {
	r.println(r.faint.Render("Dry run: nothing will be downloaded."))
	r.println("  URL:  " + asset.URL)
	r.println("  Dest: " + destDir)
	if len(setup) > 0 {
		r.println(fmt.Sprintf("  Then: %s %v", asset.Binary, setup))
	}
}

// Installed prints the success banner.
func (r *Reporter) Installed(version, binaryPath string) {
	r.println()
	r.println(r.title.Render(fmt.Sprintf("Conductor %s installed successfully!", version)))
	r.println("Binary: " + binaryPath)
}

// SettingUp announces the setup command.
func (r *Reporter) SettingUp() {
	r.println()
	r.println("Setting up skills and commands...")
}

// SetupDone reports the setup command's outcome. A failed setup is only a
// note; the install itself succeeded.
func (r *Reporter) SetupDone(ok bool) {
	r.println()
	if ok {
		r.println("Setup complete! You can now use conductor.")
		r.println(`Run "conductor --help" for usage information.`)
		return
	}
	r.println(`Note: Auto-install skipped. Run "conductor install" manually if needed.`)
}

// Failed prints the warning and the manual install hint.
func (r *Reporter) Failed(err error) {
	fmt.Fprintln(r.errOut)
	fmt.Fprintln(r.errOut, r.warning.Render(fmt.Sprintf("Warning: Could not download conductor binary: %v", err)))
	fmt.Fprintln(r.errOut, "You can install it manually via Homebrew:")
	fmt.Fprintln(r.errOut, "  "+r.hint)
}
