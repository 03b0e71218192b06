package binary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/Skyline-23/conductor-hook/internal/logging"
)

// Fetcher downloads small resources into memory.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ReleaseResolver looks up release versions through the GitHub API.
type ReleaseResolver struct {
	fetcher Fetcher
	apiBase string
	owner   string
	repo    string
	logger  logging.Logger
}

// NewReleaseResolver creates a resolver for owner/repo under apiBase.
func NewReleaseResolver(fetcher Fetcher, apiBase, owner, repo string, logger logging.Logger) *ReleaseResolver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ReleaseResolver{
		fetcher: fetcher,
		apiBase: strings.TrimRight(apiBase, "/"),
		owner:   owner,
		repo:    repo,
		logger:  logger,
	}
}

// LatestURL returns the releases/latest endpoint.
func (r *ReleaseResolver) LatestURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/releases/latest", r.apiBase, r.owner, r.repo)
}

type releaseResponse struct {
	TagName string `json:"tag_name"`
}

// Latest returns the latest release version with the leading "v" removed.
func (r *ReleaseResolver) Latest(ctx context.Context) (string, error) {
	data, err := r.fetcher.Fetch(ctx, r.LatestURL())
	if err != nil {
		return "", fmt.Errorf("fetch latest release: %w", err)
	}

	var rel releaseResponse
	if err := json.Unmarshal(data, &rel); err != nil {
		return "", fmt.Errorf("decode latest release: %w", err)
	}
	if rel.TagName == "" {
		return "", fmt.Errorf("latest release has no tag_name")
	}

	return NormalizeVersion(rel.TagName, r.logger), nil
}

// NormalizeVersion strips a single leading "v" from a tag. Tags that are
// not semantic versions are kept but logged.
func NormalizeVersion(tag string, logger logging.Logger) string {
	tag = strings.TrimSpace(tag)
	version := strings.TrimPrefix(tag, "v")
	if !semver.IsValid("v" + version) {
		if logger != nil {
			logger.Warn("release tag is not a semantic version", "tag", tag)
		}
	}
	return version
}
