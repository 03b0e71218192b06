package binary

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/Skyline-23/conductor-hook/internal/config"
	"github.com/Skyline-23/conductor-hook/internal/platform"
	"github.com/Skyline-23/conductor-hook/internal/testutil"
)

type recordingProgress struct {
	stages []string
}

func (p *recordingProgress) Downloading(a *Asset) { p.stages = append(p.stages, "download "+a.Name) }
func (p *recordingProgress) Verifying(m string)   { p.stages = append(p.stages, "verify "+m) }
func (p *recordingProgress) Extracting(*Asset)    { p.stages = append(p.stages, "extract") }

type managerFixture struct {
	srv     *testutil.ReleaseServer
	cfg     *config.Config
	asset   *Asset
	tempDir string
	destDir string
}

func newManagerFixture(t *testing.T, entries []testutil.Entry) *managerFixture {
	t.Helper()

	srv := testutil.NewReleaseServer(t, "Skyline-23", "conductor-kit", "v1.0.0")
	srv.Redirect = true

	cfg := config.Default()
	cfg.DownloadBaseURL = srv.URL
	cfg.APIBaseURL = srv.URL

	asset, err := NewAsset(cfg, &platform.Info{OS: "linux", Arch: "amd64"}, "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	srv.Assets[asset.Name] = testutil.TarGz(t, entries)

	root := t.TempDir()
	return &managerFixture{
		srv:     srv,
		cfg:     cfg,
		asset:   asset,
		tempDir: filepath.Join(root, "tmp"),
		destDir: filepath.Join(root, "native"),
	}
}

func (f *managerFixture) manager(t *testing.T) *Manager {
	t.Helper()

	if err := os.MkdirAll(f.tempDir, 0755); err != nil {
		t.Fatal(err)
	}
	m, err := NewManager(ManagerConfig{
		Downloader: NewDownloader(DownloaderConfig{MaxRedirects: f.cfg.MaxRedirects}),
		Verifier:   NewVerifier(f.cfg),
		TempDir:    f.tempDir,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("%s not cleaned up: %d entries left", dir, len(entries))
	}
}

var conductorEntries = []testutil.Entry{
	{Name: "conductor", Body: "#!/bin/sh\n", Mode: 0644},
	{Name: "skills/a.md", Body: "a"},
}

func TestManagerInstall(t *testing.T) {
	f := newManagerFixture(t, conductorEntries)
	progress := &recordingProgress{}

	res, err := f.manager(t).Install(context.Background(), f.asset, f.destDir, progress)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	wantPath := filepath.Join(f.destDir, "conductor")
	if res.BinaryPath != wantPath {
		t.Errorf("BinaryPath = %q, want %q", res.BinaryPath, wantPath)
	}
	if res.Verified != VerificationNone {
		t.Errorf("Verified = %v, want None", res.Verified)
	}

	info, err := os.Stat(wantPath)
	if err != nil {
		t.Fatalf("binary missing: %v", err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("binary mode = %v, want 0755", info.Mode().Perm())
	}

	assertEmptyDir(t, f.tempDir)

	want := []string{"download " + f.asset.Name, "extract"}
	if fmt.Sprint(progress.stages) != fmt.Sprint(want) {
		t.Errorf("stages = %v, want %v", progress.stages, want)
	}
}

func TestManagerInstallSHA256(t *testing.T) {
	f := newManagerFixture(t, conductorEntries)
	f.cfg.Verify = config.VerifySHA256

	sum := sha256.Sum256(f.srv.Assets[f.asset.Name])
	f.srv.Assets[filepath.Base(f.asset.ChecksumURL)] = []byte(fmt.Sprintf("%x  %s\n", sum, f.asset.Name))

	progress := &recordingProgress{}
	res, err := f.manager(t).Install(context.Background(), f.asset, f.destDir, progress)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if res.Verified != VerificationSHA256 {
		t.Errorf("Verified = %v, want SHA256", res.Verified)
	}
	if len(progress.stages) != 3 || progress.stages[1] != "verify sha256" {
		t.Errorf("stages = %v", progress.stages)
	}
	assertEmptyDir(t, f.tempDir)
}

func TestManagerInstallChecksumMismatch(t *testing.T) {
	f := newManagerFixture(t, conductorEntries)
	f.cfg.Verify = config.VerifySHA256
	f.srv.Assets[filepath.Base(f.asset.ChecksumURL)] = []byte(fmt.Sprintf("%064x  %s\n", 0, f.asset.Name))

	_, err := f.manager(t).Install(context.Background(), f.asset, f.destDir, nil)
	if err == nil {
		t.Fatal("expected checksum mismatch")
	}
	if _, statErr := os.Stat(f.destDir); !os.IsNotExist(statErr) {
		t.Error("nothing should be extracted after failed verification")
	}
	assertEmptyDir(t, f.tempDir)
}

func TestManagerInstallHTTPError(t *testing.T) {
	f := newManagerFixture(t, conductorEntries)
	f.srv.Status = http.StatusNotFound

	_, err := f.manager(t).Install(context.Background(), f.asset, f.destDir, nil)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Install() error = %v, want HTTP 404", err)
	}
	assertEmptyDir(t, f.tempDir)
}

func TestManagerInstallMissingBinary(t *testing.T) {
	f := newManagerFixture(t, []testutil.Entry{{Name: "README.md", Body: "no binary"}})

	_, err := f.manager(t).Install(context.Background(), f.asset, f.destDir, nil)
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("Install() error = %v, want ErrBinaryNotFound", err)
	}
	assertEmptyDir(t, f.tempDir)
}

func TestManagerInstallCorruptArchive(t *testing.T) {
	f := newManagerFixture(t, conductorEntries)
	f.srv.Assets[f.asset.Name] = []byte("definitely not gzip")

	if _, err := f.manager(t).Install(context.Background(), f.asset, f.destDir, nil); err == nil {
		t.Fatal("expected extraction error")
	}
	assertEmptyDir(t, f.tempDir)
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(ManagerConfig{Verifier: NewVerifier(config.Default())}); err == nil {
		t.Error("expected error without downloader")
	}
	if _, err := NewManager(ManagerConfig{Downloader: NewDownloader(DownloaderConfig{})}); err == nil {
		t.Error("expected error without verifier")
	}
}
