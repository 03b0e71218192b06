package binary

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/Skyline-23/conductor-hook/internal/config"
)

// Verifier checks a downloaded archive before it is extracted.
type Verifier struct {
	mode        config.VerifyMode
	keyringPath string
	cosign      *cosignVerifier
}

// NewVerifier creates a verifier for the mode selected in cfg.
func NewVerifier(cfg *config.Config) *Verifier {
	v := &Verifier{
		mode:        cfg.Verify,
		keyringPath: cfg.KeyringPath,
	}
	if v.mode == "" {
		v.mode = config.VerifyNone
	}
	if v.mode == config.VerifyCosign {
		v.cosign = newCosignVerifier(cfg.CertIdentity, cfg.CertIssuer, cfg.Timeout)
	}
	return v
}

// Mode returns the configured verification mode.
func (v *Verifier) Mode() config.VerifyMode {
	return v.mode
}

// MaterialURL returns the URL of the file the configured mode verifies
// against, or "" when no extra download is needed.
func (v *Verifier) MaterialURL(asset *Asset) string {
	switch v.mode {
	case config.VerifySHA256:
		return asset.ChecksumURL
	case config.VerifyGPG:
		return asset.SignatureURL
	case config.VerifyCosign:
		return asset.BundleURL
	default:
		return ""
	}
}

// Verify checks archivePath using materialPath (checksums file, detached
// signature or sigstore bundle). A failed check is returned as an error.
func (v *Verifier) Verify(ctx context.Context, archivePath, materialPath string) (*VerificationResult, error) {
	var result *VerificationResult
	var err error

	switch v.mode {
	case config.VerifyNone:
		return &VerificationResult{Method: VerificationNone, Success: true}, nil
	case config.VerifySHA256:
		result, err = v.verifySHA256(archivePath, materialPath)
	case config.VerifyGPG:
		result, err = v.verifyGPG(archivePath, materialPath)
	case config.VerifyCosign:
		result, err = v.cosign.verify(ctx, archivePath, materialPath)
	default:
		return nil, fmt.Errorf("unknown verify mode: %s", v.mode)
	}

	if err != nil {
		return result, fmt.Errorf("%s verification failed: %w", result.Method, err)
	}
	return result, nil
}

// verifyGPG verifies a file using a detached GPG signature
func (v *Verifier) verifyGPG(archivePath, signaturePath string) (*VerificationResult, error) {
	fail := func(err error) (*VerificationResult, error) {
		return &VerificationResult{Method: VerificationGPG, Success: false, Error: err}, err
	}

	keyring, err := loadKeyring(v.keyringPath)
	if err != nil {
		return fail(fmt.Errorf("load keyring: %w", err))
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fail(fmt.Errorf("open archive: %w", err))
	}
	defer archiveFile.Close()

	sig, err := os.ReadFile(signaturePath)
	if err != nil {
		return fail(fmt.Errorf("open signature: %w", err))
	}

	// Try armored first, then binary
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, archiveFile, bytes.NewReader(sig), nil)
	if err != nil {
		if _, serr := archiveFile.Seek(0, io.SeekStart); serr != nil {
			return fail(fmt.Errorf("rewind archive: %w", serr))
		}
		_, err = openpgp.CheckDetachedSignature(keyring, archiveFile, bytes.NewReader(sig), nil)
	}
	if err != nil {
		return fail(fmt.Errorf("verify signature: %w", err))
	}

	return &VerificationResult{Method: VerificationGPG, Success: true}, nil
}

// verifySHA256 verifies a file against a checksums file
func (v *Verifier) verifySHA256(archivePath, checksumPath string) (*VerificationResult, error) {
	fail := func(err error) (*VerificationResult, error) {
		return &VerificationResult{Method: VerificationSHA256, Success: false, Error: err}, err
	}

	actualChecksum, err := calculateSHA256(archivePath)
	if err != nil {
		return fail(fmt.Errorf("calculate checksum: %w", err))
	}

	expectedChecksum, err := findChecksum(checksumPath, filepath.Base(archivePath))
	if err != nil {
		return fail(fmt.Errorf("find checksum: %w", err))
	}

	if !strings.EqualFold(actualChecksum, expectedChecksum) {
		return fail(fmt.Errorf("checksum mismatch: actual %s, expected %s", actualChecksum, expectedChecksum))
	}

	return &VerificationResult{Method: VerificationSHA256, Success: true}, nil
}

// loadKeyring reads an armored or binary OpenPGP keyring.
func loadKeyring(path string) (openpgp.EntityList, error) {
	if path == "" {
		return nil, fmt.Errorf("no keyring configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// calculateSHA256 calculates the SHA256 checksum of a file
func calculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// findChecksum finds the checksum for a specific filename in a checksum file
// Format: "abc123def456  filename.tar.gz" (a leading "*" marks binary mode)
func findChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		name := strings.TrimPrefix(parts[1], "*")
		if name == filename || filepath.Base(name) == filename {
			return parts[0], nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}
