package romloader

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractFromGzip extracts the first ROM file from a gzip or tar.gz archive
func extractFromGzip(path string, want extSet) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gr.Close()

	lowerPath := strings.ToLower(path)
	if strings.HasSuffix(lowerPath, ".tar.gz") || strings.HasSuffix(lowerPath, ".tgz") {
		return extractFromTar(gr, want)
	}

	// Plain .gz: the decompressed stream is the image, named after the
	// archive without its .gz suffix.
	name := filepath.Base(path)
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		name = name[:len(name)-3]
	}
	img, err := readEntry(gr, name)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress gzip: %w", err)
	}
	return img, nil
}

// extractFromTar extracts the first ROM file from a tar archive
func extractFromTar(r io.Reader, want extSet) (*Image, error) {
	tr := tar.NewReader(r)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg || !want.matches(header.Name) {
			continue
		}
		return readEntry(tr, header.Name)
	}

	return nil, ErrNoROMFile
}
