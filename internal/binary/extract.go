package binary

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/Skyline-23/conductor-hook/internal/logging"
)

// Extractor unpacks release archives in-process. Every member must land
// inside the destination directory.
type Extractor struct {
	logger logging.Logger
}

// NewExtractor creates a new extractor. A nil logger discards output.
func NewExtractor(logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Extractor{logger: logger}
}

// Extract unpacks archivePath into destDir, choosing the format from the
// file name (.tar.gz, .tgz, .tar.zst, .tar.lz4, .zip).
func (e *Extractor) Extract(archivePath, destDir string) error {
	name := strings.ToLower(filepath.Base(archivePath))
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return e.ExtractTarGz(archivePath, destDir)
	case strings.HasSuffix(name, ".tar.zst"):
		return e.ExtractTarZst(archivePath, destDir)
	case strings.HasSuffix(name, ".tar.lz4"):
		return e.ExtractTarLz4(archivePath, destDir)
	case strings.HasSuffix(name, ".zip"):
		return e.ExtractZip(archivePath, destDir)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
}

// ExtractTarGz extracts a .tar.gz archive to a destination directory
func (e *Extractor) ExtractTarGz(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	return e.extractTar(tar.NewReader(gzipReader), destDir)
}

// ExtractTarZst extracts a .tar.zst archive to a destination directory
func (e *Extractor) ExtractTarZst(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	zr, err := zstd.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	return e.extractTar(tar.NewReader(zr), destDir)
}

// ExtractTarLz4 extracts a .tar.lz4 (lz4 frame format) archive.
func (e *Extractor) ExtractTarLz4(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	return e.extractTar(tar.NewReader(lz4.NewReader(archiveFile)), destDir)
}

func (e *Extractor) extractTar(tarReader *tar.Reader, destDir string) error {
	dest, err := openDest(destDir)
	if err != nil {
		return err
	}
	defer dest.Close()

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %s", ErrIllegalPath, header.Name)
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		name, err := localName(header.Name)
		if err != nil {
			return err
		}
		if name == "." {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := dest.mkdirAll(name); err != nil {
				return err
			}

		case tar.TypeReg:
			if err := dest.writeFile(name, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := dest.symlink(header.Linkname, name); err != nil {
				return err
			}

		case tar.TypeLink:
			if err := dest.link(header.Linkname, name); err != nil {
				return err
			}

		default:
			e.logger.Debug("skipping archive entry", "name", header.Name, "type", string(header.Typeflag))
		}
	}
}

// ExtractZip extracts a .zip archive to a destination directory
func (e *Extractor) ExtractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		zr.Close()
		return fmt.Errorf("%w: %v", ErrIllegalPath, err)
	}
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	dest, err := openDest(destDir)
	if err != nil {
		return err
	}
	defer dest.Close()

	for _, f := range zr.File {
		name, err := localName(f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := dest.mkdirAll(name); err != nil {
				return err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			e.logger.Debug("skipping archive entry", "name", f.Name, "mode", f.Mode().String())
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s in archive: %w", f.Name, err)
		}
		err = dest.writeFile(name, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

// localName turns an archive member name into a root-relative path and
// rejects absolute names and names that climb out with "..".
func localName(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}
	return clean, nil
}

// destRoot confines every write to the destination directory. Paths are
// resolved through an *os.Root, so a symlink planted by an earlier entry
// cannot redirect a later one outside dest.
type destRoot struct {
	root    *os.Root
	realDir string // dest with symlinks resolved
}

func openDest(destDir string) (*destRoot, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("create dest dir: %w", err)
	}
	realDir, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return nil, fmt.Errorf("resolve dest dir: %w", err)
	}
	root, err := os.OpenRoot(realDir)
	if err != nil {
		return nil, fmt.Errorf("open dest dir: %w", err)
	}
	return &destRoot{root: root, realDir: realDir}, nil
}

func (d *destRoot) Close() error {
	return d.root.Close()
}

func (d *destRoot) mkdirAll(name string) error {
	if err := d.root.MkdirAll(name, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", name, err)
	}
	return nil
}

// inside reports whether path, already free of symlinks, is dest or below it.
func (d *destRoot) inside(path string) bool {
	rel, err := filepath.Rel(d.realDir, path)
	return err == nil && filepath.IsLocal(rel)
}

// resolveParent creates the parent of name and returns its real location.
func (d *destRoot) resolveParent(name string) (string, error) {
	dir := filepath.Dir(name)
	if dir == "." {
		return d.realDir, nil
	}
	if info, err := d.root.Stat(dir); err != nil || !info.IsDir() {
		if err := d.mkdirAll(dir); err != nil {
			return "", err
		}
	}
	parent, err := filepath.EvalSymlinks(filepath.Join(d.realDir, dir))
	if err != nil {
		return "", fmt.Errorf("resolve parent of %s: %w", name, err)
	}
	if !d.inside(parent) {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}
	return parent, nil
}

// remove clears name so it can be replaced. Re-installs hit files and links
// left by a previous version.
func (d *destRoot) remove(name string) error {
	if err := d.root.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// writeFile replaces name with the contents of r. An existing file is
// removed first so a running binary is never truncated in place.
func (d *destRoot) writeFile(name string, r io.Reader, mode os.FileMode) error {
	if _, err := d.resolveParent(name); err != nil {
		return err
	}
	if err := d.remove(name); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}

	outFile, err := d.root.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", name, err)
	}
	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return fmt.Errorf("write file %s: %w", name, err)
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", name, err)
	}
	return nil
}

// symlink creates name -> linkname. The target is checked against the real
// parent directory, and the finished link is resolved again, since a chain
// of individually harmless links can still point outside dest.
func (d *destRoot) symlink(linkname, name string) error {
	if linkname == "" || filepath.IsAbs(linkname) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrIllegalPath, name, linkname)
	}
	parent, err := d.resolveParent(name)
	if err != nil {
		return err
	}
	if !d.inside(filepath.Join(parent, filepath.FromSlash(linkname))) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrIllegalPath, name, linkname)
	}

	if err := d.remove(name); err != nil {
		return err
	}
	if err := d.root.Symlink(linkname, name); err != nil {
		return fmt.Errorf("create symlink %s: %w", name, err)
	}

	// Dangling links are left alone; anything later written through them
	// still goes through the root.
	resolved, err := filepath.EvalSymlinks(filepath.Join(d.realDir, name))
	if err == nil && !d.inside(resolved) {
		_ = d.root.Remove(name)
		return fmt.Errorf("%w: symlink %s -> %s", ErrIllegalPath, name, linkname)
	}
	return nil
}

// link creates a hard link to an earlier member of the same archive.
func (d *destRoot) link(linkname, name string) error {
	old, err := localName(linkname)
	if err != nil {
		return fmt.Errorf("%w: hard link %s -> %s", ErrIllegalPath, name, linkname)
	}
	if _, err := d.resolveParent(name); err != nil {
		return err
	}
	if err := d.remove(name); err != nil {
		return err
	}
	if err := d.root.Link(old, name); err != nil {
		return fmt.Errorf("create hard link %s: %w", name, err)
	}
	return nil
}

// SetExecutable sets executable permissions on a file
func SetExecutable(path string) error {
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return nil
}
