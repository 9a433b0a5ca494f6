// Package unpack extracts pulled release archives next to where they landed.
package unpack

import (
	"archive/tar"    // For reading .tar archives
	"archive/zip"    // For reading .zip archives
	"compress/bzip2" // For reading .bz2 compressed data
	"compress/gzip"  // For reading .gz compressed data
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip" // For reading .7z archives
	"github.com/xi2/xz"          // For reading .xz compressed data

	"mrms-pull/internal/logger"
)

// ErrUnsupported is returned by Extract for files that are not a known archive.
var ErrUnsupported = errors.New("unsupported archive format")

// ErrUnsafePath is returned when an archive entry would land outside the destination.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Known archive suffixes, longest first so ".tar.gz" wins over ".gz".
var suffixes = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tgz", ".tar", ".zip", ".7z", ".xz"}

// archiveSuffix returns the archive suffix of name, or "".
func archiveSuffix(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range suffixes {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ""
}

// IsArchive reports whether Extract knows how to handle path.
func IsArchive(path string) bool {
	return archiveSuffix(path) != ""
}

// Destination is the directory an archive is extracted into: the archive path
// with its suffix removed. A bare .xz file decompresses to that path instead.
func Destination(path string) string {
	ext := archiveSuffix(path)
	return path[:len(path)-len(ext)]
}

// Extract routes to the appropriate extraction function based on archive
// type and returns the path it wrote to.
func Extract(src string, log logger.Logger) (string, error) {
	dest := Destination(src)
	switch archiveSuffix(src) {
	case ".zip":
		log.Debug("[DEBUG] compression type is zip\n")
		return dest, extractZip(src, dest)
	case ".7z":
		log.Debug("[DEBUG] compression type is .7z\n")
		return dest, extract7z(src, dest)
	case ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz":
		log.Debug("[DEBUG] compression type is .tar.*\n")
		return dest, extractTarArchive(src, dest)
	case ".xz":
		log.Debug("[DEBUG] compression type is .xz\n")
		return dest, decompressXZ(src, dest)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, src)
	}
}

// target joins an archive entry name onto dest, rejecting names that would escape it.
func target(dest, name string) (string, error) {
	p := filepath.Join(dest, filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))
	rel, err := filepath.Rel(dest, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return p, nil
}

// writeFile copies r into path, creating parent directories first.
func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// extractTarArchive handles tar and compressed tar variants
func extractTarArchive(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	var reader io.Reader = f
	lower := strings.ToLower(src)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gr.Close()
		reader = gr
	case strings.HasSuffix(lower, ".tar.bz2"):
		reader = bzip2.NewReader(f)
	case strings.HasSuffix(lower, ".tar.xz"):
		xzr, err := xz.NewReader(f, 0)
		if err != nil {
			return err
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)
	// Iterate over each file in the archive
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil // End of archive
		}
		if err != nil {
			return err
		}

		path, err := target(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(path, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		}
	}
}

// extractZip extracts a .zip archive
func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		path, err := target(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeFile(path, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extract7z handles .7z extraction using the sevenzip library
func extract7z(src, dest string) error {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		path, err := target(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeFile(path, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// decompressXZ writes the decompressed content of a single .xz file to dest.
func decompressXZ(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	xzr, err := xz.NewReader(f, 0)
	if err != nil {
		return fmt.Errorf("failed to open xz stream: %w", err)
	}
	return writeFile(dest, xzr, 0644)
}

// All extracts every archive among paths, skipping everything else.
// It stops at the first extraction error.
func All(paths []string, log logger.Logger) ([]string, error) {
	var out []string
	for _, p := range paths {
		if !IsArchive(p) {
			log.Debug("[DEBUG] %s is not an archive, skipping\n", p)
			continue
		}
		dest, err := Extract(p, log)
		if err != nil {
			return out, fmt.Errorf("failed to extract %s: %w", p, err)
		}
		log.Info("[INFO] Extracted %s to %s\n", p, dest)
		out = append(out, dest)
	}
	return out, nil
}
