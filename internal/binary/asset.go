package binary

import (
	"fmt"

	"github.com/Skyline-23/conductor-hook/internal/config"
	"github.com/Skyline-23/conductor-hook/internal/platform"
)

// NewAsset builds the download coordinates for version on the given platform.
//
// Pattern (goreleaser defaults):
//
//	<base>/<owner>/<repo>/releases/download/v<ver>/<repo>_<ver>_<os>_<arch>.tar.gz
//	<base>/<owner>/<repo>/releases/download/v<ver>/<repo>_<ver>_checksums.txt
func NewAsset(cfg *config.Config, info *platform.Info, version string) (*Asset, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if info == nil {
		return nil, fmt.Errorf("platform info is required")
	}
	if version == "" {
		return nil, fmt.Errorf("version is required")
	}

	a := &Asset{
		Owner:   cfg.Owner,
		Repo:    cfg.Repo,
		Binary:  cfg.Binary,
		Version: version,
		OS:      info.OS,
		Arch:    info.Arch,
	}

	baseURL := fmt.Sprintf("%s/%s/%s/releases/download/v%s", cfg.DownloadBaseURL, cfg.Owner, cfg.Repo, version)
	a.Name = fmt.Sprintf("%s_%s_%s_%s.tar.gz", cfg.Repo, version, info.OS, info.Arch)
	a.URL = baseURL + "/" + a.Name
	a.ChecksumURL = fmt.Sprintf("%s/%s_%s_checksums.txt", baseURL, cfg.Repo, version)
	a.SignatureURL = a.URL + ".sig"
	a.BundleURL = a.URL + ".sigstore.json"

	return a, nil
}
