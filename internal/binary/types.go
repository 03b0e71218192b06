package binary

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTooManyRedirects is returned when a request exceeds the redirect bound.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrBinaryNotFound is returned when the archive did not contain the expected binary.
	ErrBinaryNotFound = errors.New("binary not found in archive")
	// ErrIllegalPath is returned for archive entries escaping the destination.
	ErrIllegalPath = errors.New("illegal file path in archive")
)

// HTTPError is a terminal non-200 response.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// Asset identifies one platform archive of a release.
type Asset struct {
	Owner   string
	Repo    string
	Binary  string
	Version string // without leading "v"
	OS      string
	Arch    string

	Name         string // archive file name
	URL          string
	ChecksumURL  string
	SignatureURL string
	BundleURL    string
}

// VerificationMethod indicates how an archive was verified
type VerificationMethod int

const (
	// VerificationNone indicates the archive was not verified
	VerificationNone VerificationMethod = iota
	// VerificationGPG indicates GPG signature verification was used
	VerificationGPG
	// VerificationSHA256 indicates SHA256 checksum verification was used
	VerificationSHA256
	// VerificationCosign indicates sigstore bundle verification was used
	VerificationCosign
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationGPG:
		return "GPG"
	case VerificationSHA256:
		return "SHA256"
	case VerificationCosign:
		return "cosign"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}

// VerificationResult contains the outcome of a verification attempt
type VerificationResult struct {
	Method  VerificationMethod
	Success bool
	Error   error
}

// InstallResult describes a completed Manager.Install.
type InstallResult struct {
	Asset        *Asset
	BinaryPath   string
	Bytes        int64
	Verified     VerificationMethod
	DownloadTime time.Duration
}
