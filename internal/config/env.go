package config

import (
	"strings"
)

// Environment variables read by the hook.
const (
	EnvCI           = "CI"
	EnvSkip         = "CONDUCTOR_SKIP_POSTINSTALL"
	EnvConfigFile   = "CONDUCTOR_HOOK_CONFIG"
	EnvVersion      = "CONDUCTOR_VERSION"
	EnvNativeDir    = "CONDUCTOR_NATIVE_DIR"
	EnvAPIBase      = "CONDUCTOR_API_BASE"
	EnvDownloadBase = "CONDUCTOR_DOWNLOAD_BASE"
	EnvVerify       = "CONDUCTOR_VERIFY"
	EnvKeyring      = "CONDUCTOR_KEYRING"
	EnvGitHubToken  = "GITHUB_TOKEN"
)

// SkipReason reports whether the hook must do nothing. Any non-empty value
// counts, including "0" and "false". The reason completes the sentence
// "Skipping postinstall ...".
func SkipReason(getenv func(string) string) (string, bool) {
	if getenv(EnvCI) != "" {
		return "in CI environment", true
	}
	if getenv(EnvSkip) != "" {
		return "because " + EnvSkip + " is set", true
	}
	return "", false
}

// ApplyEnv overlays environment settings onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&cfg.Version, EnvVersion)
	set(&cfg.DestDir, EnvNativeDir)
	set(&cfg.APIBaseURL, EnvAPIBase)
	set(&cfg.DownloadBaseURL, EnvDownloadBase)
	set(&cfg.KeyringPath, EnvKeyring)
	set(&cfg.GitHubToken, EnvGitHubToken)

	if v := getenv(EnvVerify); v != "" {
		mode, err := ParseVerifyMode(v)
		if err != nil {
			return &ValidationError{Field: EnvVerify, Message: err.Error()}
		}
		cfg.Verify = mode
	}

	cfg.Version = strings.TrimPrefix(cfg.Version, "v")
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.DownloadBaseURL = strings.TrimRight(cfg.DownloadBaseURL, "/")
	return nil
}
