package romloader

import (
	"errors"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"
)

// extractFromRAR extracts the first ROM file from a RAR archive
func extractFromRAR(path string, want extSet) (*Image, error) {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rar: %w", err)
	}
	defer r.Close()

	for {
		header, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rar entry: %w", err)
		}
		if header.IsDir || !want.matches(header.Name) {
			continue
		}
		return readEntry(r, header.Name)
	}

	return nil, ErrNoROMFile
}
