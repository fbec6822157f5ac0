// Package bundle packs a run's artifact files into a single compressed tar
// archive for handoff to a translator, and unpacks returned archives. Both
// gzip and xz are supported; the reader picks the codec from the archive's
// magic bytes, so a translator can return either form.
package bundle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Compression selects the archive codec.
type Compression string

const (
	// CompressionGzip produces a .tar.gz archive.
	CompressionGzip Compression = "gzip"
	// CompressionXZ produces a .tar.xz archive.
	CompressionXZ Compression = "xz"
)

// Pack writes the named files from dir into a compressed tar archive. File
// names are stored relative, so the archive unpacks into any directory.
func Pack(archivePath, dir string, names []string, compression Compression) error {
	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer file.Close()

	var compressWriter io.WriteCloser
	switch compression {
	case CompressionGzip:
		compressWriter, err = gzip.NewWriterLevel(file, gzip.BestCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
	case CompressionXZ:
		compressWriter, err = xz.NewWriter(file)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
	default:
		return fmt.Errorf("unsupported compression: %s", compression)
	}

	tarWriter := tar.NewWriter(compressWriter)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := writeToTar(tarWriter, name, data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := compressWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish compression: %w", err)
	}
	return file.Close()
}

func writeToTar(w *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name:     name,
		Mode:     0644,
		Size:     int64(len(data)),
		Typeflag: tar.TypeReg,
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// DetectCompression reads the magic bytes of an archive.
func DetectCompression(archivePath string) (Compression, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	magic := make([]byte, 6)
	n, err := io.ReadFull(file, magic)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read magic bytes: %w", err)
	}

	// gzip: 1f 8b
	if n >= 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}
	// xz: fd 37 7a 58 5a 00
	if n >= 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ, nil
	}
	return "", fmt.Errorf("unknown archive format: unrecognized magic bytes")
}

// Unpack extracts an archive into destDir and returns the extracted file
// names. Entries whose paths would escape destDir are skipped.
func Unpack(archivePath, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	compression, err := DetectCompression(archivePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	var reader io.Reader
	switch compression {
	case CompressionGzip:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	case CompressionXZ:
		xzReader, err := xz.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		reader = xzReader
	}

	tarReader := tar.NewReader(reader)
	var names []string
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}

		cleanPath := filepath.Clean(header.Name)
		if strings.HasPrefix(cleanPath, "..") || filepath.IsAbs(cleanPath) {
			continue
		}
		destPath := filepath.Join(destDir, cleanPath)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create parent directory: %w", err)
			}
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", cleanPath, err)
			}
			if err := os.WriteFile(destPath, data, 0644); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", cleanPath, err)
			}
			names = append(names, cleanPath)
		}
	}
	return names, nil
}
