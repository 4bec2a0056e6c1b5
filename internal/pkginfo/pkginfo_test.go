package pkginfo

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// buildArtifact writes a compressed tar containing the given entries to
// path. The compressor is chosen by the path suffix.
func buildArtifact(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for name, content := range entries {
		if err := tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = f.Close()
	}()

	var w io.WriteCloser
	switch filepath.Ext(path) {
	case ".zst":
		w, err = zstd.NewWriter(f)
	case ".xz":
		w, err = xz.NewWriter(f)
	default:
		t.Fatalf("unsupported suffix: %s", path)
	}
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(tarBuf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

const pkgInfoContent = `# Generated by makepkg
pkgname = sample-tool
pkgbase = sample-tool
pkgver = 1.2.3-1
pkgdesc = A sample tool
arch = x86_64
`

func TestReadZstArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample-tool-1.2.3-1-x86_64.pkg.tar.zst")
	buildArtifact(t, path, map[string]string{
		".PKGINFO":            pkgInfoContent,
		"usr/bin/sample-tool": "#!/bin/sh\n",
	})

	info, err := FileReader{}.Read(path)
	if err != nil {
		t.Fatal(err)
	}

	want := Info{Name: "sample-tool", Version: "1.2.3-1"}
	if info != want {
		t.Errorf("got %+v, want %+v", info, want)
	}
}

func TestReadXzArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample-tool-1.2.3-1-x86_64.pkg.tar.xz")
	buildArtifact(t, path, map[string]string{".PKGINFO": pkgInfoContent})

	info, err := FileReader{}.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "sample-tool" {
		t.Errorf("got name %q, want sample-tool", info.Name)
	}
}

func TestReadDotSlashPkgInfoName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pkg.tar.zst")
	buildArtifact(t, path, map[string]string{"./.PKGINFO": pkgInfoContent})

	if _, err := (FileReader{}).Read(path); err != nil {
		t.Fatal(err)
	}
}

func TestReadMissingPkgInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pkg.tar.zst")
	buildArtifact(t, path, map[string]string{"usr/bin/tool": "x"})

	_, err := FileReader{}.Read(path)
	if !errors.Is(err, ErrNotPackage) {
		t.Errorf("got %v, want ErrNotPackage", err)
	}
}

func TestReadIncompleteMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pkg.tar.zst")
	buildArtifact(t, path, map[string]string{".PKGINFO": "pkgname = tool\n"})

	_, err := FileReader{}.Read(path)
	if !errors.Is(err, ErrNotPackage) {
		t.Errorf("got %v, want ErrNotPackage", err)
	}
}

func TestReadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.zst")
	if err := os.WriteFile(path, []byte("not a zstd stream"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := (FileReader{}).Read(path); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"a-1.0-1-x86_64.pkg.tar.zst",
		"b-2.0-1-x86_64.pkg.tar.xz",
		"notes.txt",
		"c-3.0-1-x86_64.pkg.tar.gz",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.zst"), 0755); err != nil {
		t.Fatal(err)
	}

	paths, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(dir, "a-1.0-1-x86_64.pkg.tar.zst"),
		filepath.Join(dir, "b-2.0-1-x86_64.pkg.tar.xz"),
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("got %v, want %v", paths, want)
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}
