package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"os"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Entry is one member of a test archive.
type Entry struct {
	Name     string
	Body     string
	Mode     int64 // defaults to 0644
	Dir      bool
	Linkname string // non-empty makes a symlink
	Hardlink string // non-empty makes a tar hard link to an earlier member
}

func writeTar(t *testing.T, buf *bytes.Buffer, entries []Entry) {
	t.Helper()

	tw := tar.NewWriter(buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: e.Mode}
		if hdr.Mode == 0 {
			hdr.Mode = 0644
		}
		switch {
		case e.Dir:
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
		case e.Linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Linkname
		case e.Hardlink != "":
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = e.Hardlink
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
		}

		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write header for %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("failed to write content for %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
}

// TarGz builds a gzip-compressed tar archive in memory.
func TarGz(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var tarBuf bytes.Buffer
	writeTar(t, &tarBuf, entries)

	var out bytes.Buffer
	gw := gzip.NewWriter(&out)
	if _, err := gw.Write(tarBuf.Bytes()); err != nil {
		t.Fatalf("failed to gzip archive: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return out.Bytes()
}

// TarZst builds a zstd-compressed tar archive in memory.
func TarZst(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var tarBuf bytes.Buffer
	writeTar(t, &tarBuf, entries)

	var out bytes.Buffer
	zw, err := zstd.NewWriter(&out)
	if err != nil {
		t.Fatalf("failed to create zstd writer: %v", err)
	}
	if _, err := zw.Write(tarBuf.Bytes()); err != nil {
		t.Fatalf("failed to compress archive: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zstd writer: %v", err)
	}
	return out.Bytes()
}

// TarLz4 builds an lz4-framed tar archive in memory.
func TarLz4(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var tarBuf bytes.Buffer
	writeTar(t, &tarBuf, entries)

	var out bytes.Buffer
	lw := lz4.NewWriter(&out)
	if _, err := lw.Write(tarBuf.Bytes()); err != nil {
		t.Fatalf("failed to compress archive: %v", err)
	}
	if err := lw.Close(); err != nil {
		t.Fatalf("failed to close lz4 writer: %v", err)
	}
	return out.Bytes()
}

// Zip builds a zip archive in memory. Symlink entries are not supported.
func Zip(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, e := range entries {
		if e.Dir {
			if _, err := zw.Create(e.Name + "/"); err != nil {
				t.Fatalf("failed to add dir %s: %v", e.Name, err)
			}
			continue
		}
		mode := e.Mode
		if mode == 0 {
			mode = 0644
		}
		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		hdr.SetMode(os.FileMode(mode))
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("failed to add %s: %v", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			t.Fatalf("failed to write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return out.Bytes()
}
