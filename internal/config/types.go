package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// VerifyMode selects how a downloaded archive is checked before extraction.
type VerifyMode string

const (
	// VerifyNone extracts the archive as downloaded.
	VerifyNone VerifyMode = "none"
	// VerifySHA256 checks the archive against the release checksums file.
	VerifySHA256 VerifyMode = "sha256"
	// VerifyGPG checks a detached OpenPGP signature against a local keyring.
	VerifyGPG VerifyMode = "gpg"
	// VerifyCosign checks a sigstore bundle published next to the archive.
	VerifyCosign VerifyMode = "cosign"
)

// ParseVerifyMode parses a verification mode name. Empty means none.
func ParseVerifyMode(s string) (VerifyMode, error) {
	switch m := VerifyMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", VerifyNone:
		return VerifyNone, nil
	case VerifySHA256, VerifyGPG, VerifyCosign:
		return m, nil
	default:
		return "", fmt.Errorf("unknown verify mode %q (want none, sha256, gpg or cosign)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for YAML decoding.
func (m *VerifyMode) UnmarshalText(text []byte) error {
	parsed, err := ParseVerifyMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DestPlaceholder in SetupArgs is replaced with the destination directory.
const DestPlaceholder = "{dest}"

// Config is the complete hook configuration.
type Config struct {
	// Release coordinates
	Owner   string `yaml:"owner"`
	Repo    string `yaml:"repo"`
	Binary  string `yaml:"binary"`
	Version string `yaml:"version"` // empty resolves the latest release

	// DestDir receives the extracted archive. Relative paths are resolved
	// against the working directory, which npm sets to the package root.
	DestDir string `yaml:"dest_dir"`

	APIBaseURL      string        `yaml:"api_base_url"`
	DownloadBaseURL string        `yaml:"download_base_url"`
	UserAgent       string        `yaml:"user_agent"`
	GitHubToken     string        `yaml:"-"`
	MaxRedirects    int           `yaml:"max_redirects"`
	Timeout         time.Duration `yaml:"timeout"`

	Verify       VerifyMode `yaml:"verify"`
	KeyringPath  string     `yaml:"keyring"`
	CertIdentity string     `yaml:"cert_identity"` // SAN regexp for cosign
	CertIssuer   string     `yaml:"cert_issuer"`   // OIDC issuer for cosign

	SetupArgs []string `yaml:"setup_args"`
	SkipSetup bool     `yaml:"skip_setup"`
	DryRun    bool     `yaml:"-"`

	FallbackHint string `yaml:"fallback_hint"`
}

// Default returns the configuration of the published conductor-kit hook.
func Default() *Config {
	return &Config{
		Owner:           "Skyline-23",
		Repo:            "conductor-kit",
		Binary:          "conductor",
		DestDir:         "native",
		APIBaseURL:      "https://api.github.com",
		DownloadBaseURL: "https://github.com",
		UserAgent:       "conductor-kit-npm",
		MaxRedirects:    10,
		Timeout:         5 * time.Minute,
		Verify:          VerifyNone,
		SetupArgs:       []string{"install", "--mode", "link", "--repo", DestPlaceholder},
		FallbackHint:    "brew install Skyline-23/conductor-kit/conductor-kit",
	}
}

// ExpandSetupArgs returns SetupArgs with DestPlaceholder replaced by dest.
func (c *Config) ExpandSetupArgs(dest string) []string {
	args := make([]string, len(c.SetupArgs))
	for i, a := range c.SetupArgs {
		args[i] = strings.ReplaceAll(a, DestPlaceholder, dest)
	}
	return args
}

// Validate checks that the configuration can drive an install.
func (c *Config) Validate() error {
	required := []struct {
		field, value string
	}{
		{"owner", c.Owner},
		{"repo", c.Repo},
		{"binary", c.Binary},
		{"dest_dir", c.DestDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Message: "cannot be empty"}
		}
	}

	if strings.ContainsAny(c.Binary, `/\`) {
		return &ValidationError{Field: "binary", Message: "must be a file name, not a path"}
	}

	for field, raw := range map[string]string{"api_base_url": c.APIBaseURL, "download_base_url": c.DownloadBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return &ValidationError{Field: field, Message: fmt.Sprintf("invalid URL %q", raw)}
		}
	}

	if c.MaxRedirects < 0 {
		return &ValidationError{Field: "max_redirects", Message: "cannot be negative"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Message: "must be positive"}
	}

	switch c.Verify {
	case VerifyNone, VerifySHA256:
	case VerifyGPG:
		if c.KeyringPath == "" {
			return &ValidationError{Field: "keyring", Message: "required when verify is gpg"}
		}
	case VerifyCosign:
		if c.CertIdentity == "" || c.CertIssuer == "" {
			return &ValidationError{Field: "cert_identity", Message: "cert_identity and cert_issuer are required when verify is cosign"}
		}
	default:
		return &ValidationError{Field: "verify", Message: fmt.Sprintf("unknown mode %q", c.Verify)}
	}

	if !c.SkipSetup && len(c.SetupArgs) == 0 {
		return &ValidationError{Field: "setup_args", Message: "cannot be empty unless skip_setup is set"}
	}

	return nil
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}
