package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skyline-23/conductor-hook/internal/config"
	"github.com/Skyline-23/conductor-hook/internal/hook"
	"github.com/Skyline-23/conductor-hook/internal/logging"
	"github.com/Skyline-23/conductor-hook/internal/platform"
	"github.com/Skyline-23/conductor-hook/internal/report"
	"github.com/Skyline-23/conductor-hook/internal/transaction"
)

// rootFlags holds command-line flags for the hook
type rootFlags struct {
	configPath string
	dest       string
	version    string
	verify     string
	keyring    string
	skipSetup  bool
	dryRun     bool
	verbose    bool
}

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// execute runs the CLI and returns the process exit code. Only usage
// errors are non-zero; once the hook starts every outcome exits 0.
func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer, getenv func(string) string) int {
	root := newRootCmd(streams{in: in, out: out, err: errOut}, getenv)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(s streams, getenv func(string) string) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "conductor-hook",
		Short: "Install the conductor binary for this platform",
		Long: `conductor-hook downloads the conductor release archive for this
platform, unpacks it into the package's native directory and runs
"conductor install --mode link --repo <dir>".

Set CI or CONDUCTOR_SKIP_POSTINSTALL to skip. Failures print a warning
and a Homebrew hint but never fail the package install.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runHook(cmd, flags, s, getenv)
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.SilenceUsage = false
		return err
	})

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "config file (.lua, .yaml, .jsonc); defaults to $"+config.EnvConfigFile)
	f.StringVar(&flags.dest, "dest", "", "directory to unpack the release into")
	f.StringVar(&flags.version, "version", "", "install this release instead of the latest")
	f.StringVar(&flags.verify, "verify", "", "archive verification: none, sha256, gpg or cosign")
	f.StringVar(&flags.keyring, "keyring", "", "OpenPGP keyring for --verify gpg")
	f.BoolVar(&flags.skipSetup, "skip-setup", false, "do not run the setup command after install")
	f.BoolVar(&flags.dryRun, "dry-run", false, "resolve the release and print the plan without downloading")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "log diagnostics to stderr")

	cmd.AddCommand(newVersionCmd(), newStatusCmd(getenv))
	return cmd
}

// runHook performs the install. Every failure is reported, never returned.
func runHook(cmd *cobra.Command, flags *rootFlags, s streams, getenv func(string) string) {
	// The gate comes before reading any config file.
	if reason, skip := config.SkipReason(getenv); skip {
		report.New(s.out, s.err, "").Skipped(reason)
		return
	}

	logger, sync, err := logging.New(flags.verbose)
	if err != nil {
		logger, sync = logging.Stderr(), func() {}
	}
	defer sync()

	cfg, err := loadConfig(cmd, flags, getenv)
	if err != nil {
		logger.Warn("configuration failed", "error", err)
		report.New(s.out, s.err, "").Failed(err)
		return
	}

	inst := hook.New(cfg,
		hook.WithRunner(&hook.ExecRunner{Stdin: s.in, Stdout: s.out, Stderr: s.err}),
		hook.WithReporter(report.New(s.out, s.err, cfg.FallbackHint)),
		hook.WithLogger(logger),
		hook.WithGetenv(getenv),
	)
	res := inst.Run(cmd.Context())
	logger.Debug("hook finished", "status", res.Status.String(), "elapsed", res.Elapsed)
}

// loadConfig applies defaults, the config file, the environment and
// finally any flags that were set explicitly.
func loadConfig(cmd *cobra.Command, flags *rootFlags, getenv func(string) string) (*config.Config, error) {
	path := flags.configPath
	if path == "" {
		path = getenv(config.EnvConfigFile)
	}

	cfg, err := config.Load(cmd.Context(), path, platform.NewDetector(), getenv)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("dest") {
		cfg.DestDir = flags.dest
	}
	if changed("version") {
		cfg.Version = strings.TrimPrefix(flags.version, "v")
	}
	if changed("verify") {
		mode, err := config.ParseVerifyMode(flags.verify)
		if err != nil {
			return nil, &config.ValidationError{Field: "verify", Message: err.Error()}
		}
		cfg.Verify = mode
	}
	if changed("keyring") {
		cfg.KeyringPath = flags.keyring
	}
	if changed("skip-setup") {
		cfg.SkipSetup = flags.skipSetup
	}
	cfg.DryRun = flags.dryRun

	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hook version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "conductor-hook %s\n", Version)
		},
	}
}

func newStatusCmd(getenv func(string) string) *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last install recorded in the native directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest == "" {
				dest = config.Default().DestDir
				if v := getenv(config.EnvNativeDir); v != "" {
					dest = v
				}
			}
			dir, err := filepath.Abs(dest)
			if err != nil {
				return err
			}

			rec, err := transaction.Load(dir)
			if err != nil {
				return fmt.Errorf("no install recorded in %s: %w", dir, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "State:    %s\n", rec.State)
			fmt.Fprintf(w, "Release:  %s\n", rec.Release)
			fmt.Fprintf(w, "Platform: %s\n", rec.Platform)
			fmt.Fprintf(w, "Asset:    %s\n", rec.Asset)
			if rec.BinaryPath != "" {
				fmt.Fprintf(w, "Binary:   %s\n", rec.BinaryPath)
			}
			if rec.Verified != "" {
				fmt.Fprintf(w, "Verified: %s\n", rec.Verified)
			}
			if rec.LastError != "" {
				fmt.Fprintf(w, "Error:    %s\n", rec.LastError)
			}
			fmt.Fprintf(w, "At:       %s\n", rec.Timestamp.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "native directory to inspect")
	return cmd
}
