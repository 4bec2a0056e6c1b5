// Package pkginfo discovers locally built pacman package artifacts and
// extracts their identity from the .PKGINFO metadata inside the archive.
package pkginfo

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Info identifies one locally built package artifact.
type Info struct {
	Name    string
	Version string
}

// Reader extracts package identity from a built artifact.
type Reader interface {
	// Read fails if the artifact is not a recognized package archive.
	Read(path string) (Info, error)
}

// ErrNotPackage is returned when a file is not a readable package archive.
var ErrNotPackage = errors.New("not a package archive")

// Discover lists built package artifacts in dir: compressed tarballs with a
// .zst or .xz suffix. Non-matching files are skipped before any archive is
// opened. The result is sorted by file name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".zst") || strings.HasSuffix(name, ".xz") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}

	return paths, nil
}

// FileReader implements Reader over the local filesystem.
type FileReader struct{}

// Read opens the artifact, decompresses it according to its suffix, and
// parses the .PKGINFO entry of the contained tar archive.
func (FileReader) Read(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var raw io.Reader
	switch {
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			return Info{}, fmt.Errorf("%w: %v", ErrNotPackage, err)
		}
		defer dec.Close()
		raw = dec
	case strings.HasSuffix(path, ".xz"):
		dec, err := xz.NewReader(bufio.NewReader(f))
		if err != nil {
			return Info{}, fmt.Errorf("%w: %v", ErrNotPackage, err)
		}
		raw = dec
	default:
		return Info{}, fmt.Errorf("%w: unsupported suffix", ErrNotPackage)
	}

	tr := tar.NewReader(raw)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return Info{}, fmt.Errorf("%w: no .PKGINFO entry", ErrNotPackage)
		}
		if err != nil {
			return Info{}, fmt.Errorf("%w: %v", ErrNotPackage, err)
		}
		if strings.TrimPrefix(hdr.Name, "./") == ".PKGINFO" {
			return parsePkgInfo(tr)
		}
	}
}

// parsePkgInfo reads "key = value" lines and requires both pkgname and
// pkgver to be present and non-empty.
func parsePkgInfo(r io.Reader) (Info, error) {
	var info Info

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "pkgname":
			info.Name = value
		case "pkgver":
			info.Version = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Info{}, fmt.Errorf("failed to read .PKGINFO: %w", err)
	}

	if info.Name == "" || info.Version == "" {
		return Info{}, fmt.Errorf("%w: .PKGINFO missing pkgname or pkgver", ErrNotPackage)
	}

	return info, nil
}
