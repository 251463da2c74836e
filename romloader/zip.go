package romloader

import (
	"archive/zip"
	"fmt"
)

// extractFromZIP extracts the first ROM file from a ZIP archive
func extractFromZIP(path string, want extSet) (*Image, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !want.matches(f.Name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
		}
		defer rc.Close()
		return readEntry(rc, f.Name)
	}

	return nil, ErrNoROMFile
}
