package binary

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Skyline-23/conductor-hook/internal/logging"
)

// Progress receives stage notifications from Manager.Install.
type Progress interface {
	Downloading(asset *Asset)
	Verifying(method string)
	Extracting(asset *Asset)
}

type nopProgress struct{}

func (nopProgress) Downloading(*Asset) {}
func (nopProgress) Verifying(string)   {}
func (nopProgress) Extracting(*Asset)  {}

// Manager orchestrates archive download, verification, and extraction
type Manager struct {
	downloader *Downloader
	verifier   *Verifier
	extractor  *Extractor
	tempDir    string
	logger     logging.Logger
}

// ManagerConfig holds the collaborators of a Manager
type ManagerConfig struct {
	Downloader *Downloader
	Verifier   *Verifier
	Extractor  *Extractor

	// TempDir is the parent of the per-install scratch directory.
	// Defaults to os.TempDir().
	TempDir string
	Logger  logging.Logger
}

// NewManager creates a new binary manager
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Downloader == nil {
		return nil, fmt.Errorf("Downloader is required")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("Verifier is required")
	}

	m := &Manager{
		downloader: cfg.Downloader,
		verifier:   cfg.Verifier,
		extractor:  cfg.Extractor,
		tempDir:    cfg.TempDir,
		logger:     cfg.Logger,
	}
	if m.logger == nil {
		m.logger = logging.Nop()
	}
	if m.extractor == nil {
		m.extractor = NewExtractor(m.logger)
	}
	if m.tempDir == "" {
		m.tempDir = os.TempDir()
	}
	return m, nil
}

// Install downloads asset, verifies it, extracts it into destDir and marks
// the binary executable. The downloaded archive is always removed.
func (m *Manager) Install(ctx context.Context, asset *Asset, destDir string, progress Progress) (*InstallResult, error) {
	if asset == nil {
		return nil, fmt.Errorf("asset is required")
	}
	if progress == nil {
		progress = nopProgress{}
	}
	startTime := time.Now()

	scratch, err := os.MkdirTemp(m.tempDir, "conductor-hook-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			m.logger.Warn("failed to remove temp dir", "path", scratch, "error", err)
		}
	}()

	archivePath := filepath.Join(scratch, asset.Name)
	materialURL := m.verifier.MaterialURL(asset)
	var materialPath string
	if materialURL != "" {
		materialPath = filepath.Join(scratch, path.Base(materialURL))
	}

	progress.Downloading(asset)

	var size int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := m.downloader.DownloadToFile(gctx, asset.URL, archivePath)
		if err != nil {
			return fmt.Errorf("download archive: %w", err)
		}
		size = n
		return nil
	})
	if materialURL != "" {
		g.Go(func() error {
			if _, err := m.downloader.DownloadToFile(gctx, materialURL, materialPath); err != nil {
				return fmt.Errorf("download verification material: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	downloadTime := time.Since(startTime)

	if materialURL != "" {
		progress.Verifying(string(m.verifier.Mode()))
	}
	verifyResult, err := m.verifier.Verify(ctx, archivePath, materialPath)
	if err != nil {
		return nil, fmt.Errorf("verify archive: %w", err)
	}

	progress.Extracting(asset)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("create dest dir: %w", err)
	}
	if err := m.extractor.Extract(archivePath, destDir); err != nil {
		return nil, fmt.Errorf("extract archive: %w", err)
	}

	binaryPath := filepath.Join(destDir, asset.Binary)
	info, err := os.Stat(binaryPath)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, asset.Binary)
	}

	if err := SetExecutable(binaryPath); err != nil {
		return nil, err
	}

	m.logger.Info("installed binary",
		"path", binaryPath,
		"version", asset.Version,
		"bytes", size,
		"verified", verifyResult.Method.String(),
	)

	return &InstallResult{
		Asset:        asset,
		BinaryPath:   binaryPath,
		Bytes:        size,
		Verified:     verifyResult.Method,
		DownloadTime: downloadTime,
	}, nil
}
