// Package hook runs the conductor postinstall sequence: environment gate,
// platform detection, release resolution, download, extraction and the
// setup command. Run never fails the surrounding package install; every
// outcome is a Result.
package hook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Skyline-23/conductor-hook/internal/binary"
	"github.com/Skyline-23/conductor-hook/internal/config"
	"github.com/Skyline-23/conductor-hook/internal/logging"
	"github.com/Skyline-23/conductor-hook/internal/platform"
	"github.com/Skyline-23/conductor-hook/internal/report"
	"github.com/Skyline-23/conductor-hook/internal/transaction"
)

// Reporter receives user-facing progress. *report.Reporter implements it.
type Reporter interface {
	binary.Progress
	Skipped(reason string)
	Platform(goos, goarch string)
	Version(version string, latest bool)
	DryRun(asset *binary.Asset, destDir string, setup []string)
	Installed(version, binaryPath string)
	SettingUp()
	SetupDone(ok bool)
	Failed(err error)
}

// Installer performs one hook run.
type Installer struct {
	cfg      *config.Config
	detector platform.Detector
	client   *http.Client
	runner   Runner
	reporter Reporter
	logger   logging.Logger
	getenv   func(string) string
	tempDir  string
}

// Option configures an Installer.
type Option func(*Installer)

// WithDetector replaces runtime platform detection.
func WithDetector(d platform.Detector) Option {
	return func(i *Installer) { i.detector = d }
}

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(i *Installer) { i.client = c }
}

// WithRunner replaces the setup command runner.
func WithRunner(r Runner) Option {
	return func(i *Installer) { i.runner = r }
}

// WithReporter replaces the stdout/stderr reporter.
func WithReporter(r Reporter) Option {
	return func(i *Installer) { i.reporter = r }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l logging.Logger) Option {
	return func(i *Installer) { i.logger = l }
}

// WithGetenv replaces os.Getenv for the skip gate.
func WithGetenv(getenv func(string) string) Option {
	return func(i *Installer) { i.getenv = getenv }
}

// WithTempDir sets where the archive is downloaded. Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(i *Installer) { i.tempDir = dir }
}

// New creates an Installer for cfg.
func New(cfg *config.Config, opts ...Option) *Installer {
	i := &Installer{cfg: cfg}
	for _, opt := range opts {
		opt(i)
	}

	if i.detector == nil {
		i.detector = platform.NewDetector()
	}
	if i.client == nil {
		i.client = &http.Client{}
	}
	if i.runner == nil {
		i.runner = InheritStdio()
	}
	if i.reporter == nil {
		i.reporter = report.New(os.Stdout, os.Stderr, cfg.FallbackHint)
	}
	if i.logger == nil {
		i.logger = logging.Nop()
	}
	if i.getenv == nil {
		i.getenv = os.Getenv
	}
	return i
}

// Run executes the hook. It returns a Result for every outcome.
func (i *Installer) Run(ctx context.Context) Result {
	start := time.Now()

	res := i.run(ctx)
	res.Elapsed = time.Since(start)

	switch res.Status {
	case StatusFailed:
		i.logger.Warn("install failed", "error", res.Err, "elapsed", res.Elapsed)
		i.reporter.Failed(res.Err)
	case StatusInstalled:
		i.logger.Info("install finished",
			"version", res.Version,
			"platform", res.Platform,
			"setup_exit_code", res.SetupExitCode,
			"elapsed", res.Elapsed,
		)
	}
	return res
}

func (i *Installer) run(ctx context.Context) Result {
	// Nothing may touch the network or filesystem before the gate.
	if reason, skip := config.SkipReason(i.getenv); skip {
		i.reporter.Skipped(reason)
		return Result{Status: StatusSkipped, SkipReason: reason}
	}

	fail := func(res Result, err error) Result {
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	var res Result

	if err := i.cfg.Validate(); err != nil {
		return fail(res, err)
	}

	info, err := i.detector.Detect(ctx)
	if err != nil {
		return fail(res, err)
	}
	res.Platform = info.String()
	i.reporter.Platform(info.OS, info.Arch)

	downloader := binary.NewDownloader(binary.DownloaderConfig{
		UserAgent:    i.cfg.UserAgent,
		MaxRedirects: i.cfg.MaxRedirects,
		Timeout:      i.cfg.Timeout,
		Token:        i.cfg.GitHubToken,
		TokenHost:    hostOf(i.cfg.APIBaseURL),
		Client:       i.client,
		Logger:       i.logger,
	})
	defer downloader.CloseIdleConnections()

	version := i.cfg.Version
	latest := version == ""
	if latest {
		resolver := binary.NewReleaseResolver(downloader, i.cfg.APIBaseURL, i.cfg.Owner, i.cfg.Repo, i.logger)
		version, err = resolver.Latest(ctx)
		if err != nil {
			return fail(res, err)
		}
	}
	res.Version = version
	i.reporter.Version(version, latest)

	asset, err := binary.NewAsset(i.cfg, info, version)
	if err != nil {
		return fail(res, err)
	}
	res.Asset = asset.Name

	destDir, err := filepath.Abs(i.cfg.DestDir)
	if err != nil {
		return fail(res, fmt.Errorf("resolve dest dir: %w", err))
	}

	var setupArgs []string
	if !i.cfg.SkipSetup {
		setupArgs = i.cfg.ExpandSetupArgs(destDir)
	}

	if i.cfg.DryRun {
		i.reporter.DryRun(asset, destDir, setupArgs)
		res.Status = StatusPlanned
		return res
	}

	installed, err := i.install(ctx, downloader, asset, destDir)
	if err != nil {
		return fail(res, err)
	}
	res.Status = StatusInstalled
	res.BinaryPath = installed.BinaryPath
	res.Verified = installed.Verified.String()
	i.reporter.Installed(version, installed.BinaryPath)

	if i.cfg.SkipSetup {
		return res
	}

	i.reporter.SettingUp()
	res.SetupRan = true
	res.SetupExitCode, res.SetupErr = i.runner.Run(ctx, installed.BinaryPath, setupArgs)
	if res.SetupErr == nil && res.SetupExitCode != 0 {
		res.SetupErr = fmt.Errorf("%s exited with status %d", filepath.Base(installed.BinaryPath), res.SetupExitCode)
	}
	if res.SetupErr != nil {
		i.logger.Warn("setup command failed", "error", res.SetupErr)
	}
	i.reporter.SetupDone(res.SetupErr == nil)

	return res
}

// install holds the dest lock while the archive is downloaded and
// extracted, and records the outcome next to the binary.
func (i *Installer) install(ctx context.Context, downloader *binary.Downloader, asset *binary.Asset, destDir string) (*binary.InstallResult, error) {
	lock, err := transaction.AcquireLock(ctx, destDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			i.logger.Warn("failed to release install lock", "path", lock.Path(), "error", err)
		}
	}()

	record := transaction.New(asset.Version, asset.OS+"/"+asset.Arch, asset.Name)
	i.saveRecord(record, destDir)

	mgr, err := binary.NewManager(binary.ManagerConfig{
		Downloader: downloader,
		Verifier:   binary.NewVerifier(i.cfg),
		TempDir:    i.tempDir,
		Logger:     i.logger,
	})
	if err != nil {
		return nil, err
	}

	installed, err := mgr.Install(ctx, asset, destDir, i.reporter)
	if err != nil {
		record.Fail(err)
		i.saveRecord(record, destDir)
		return nil, err
	}

	record.Complete(installed.BinaryPath, installed.Verified.String())
	i.saveRecord(record, destDir)
	return installed, nil
}

// saveRecord persists the install record. The record is informational, so
// failures are logged and the install continues.
func (i *Installer) saveRecord(record *transaction.Record, destDir string) {
	if err := record.Save(destDir); err != nil {
		i.logger.Warn("failed to save install record", "dir", destDir, "error", err)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
