// Package romloader reads game images from disk, unpacking them from
// common archive formats (ZIP, 7z, gzip, tar.gz, RAR) when needed.
package romloader

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Magic bytes for format detection
var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06} // empty zip
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21} // "Rar!"
	magicINES   = []byte{'N', 'E', 'S', 0x1A}
)

const (
	// Maximum image size (8MB safety limit)
	maxROMSize = 8 * 1024 * 1024

	inesHeaderSize = 16
)

var (
	// ErrNoROMFile is returned when no image is found in an archive
	ErrNoROMFile = errors.New("no ROM file found in archive")

	// ErrUnsupportedFormat is returned for unrecognized file formats
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge is returned when extracted content exceeds size limit
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")
)

// Image is one game image ready to hand to a core.
type Image struct {
	Data  []byte
	Name  string // base name of the file the data came from
	CRC32 uint32 // CRC32 (IEEE) of Data
}

// NewImage wraps data read elsewhere.
func NewImage(name string, data []byte) *Image {
	return &Image{Data: data, Name: name, CRC32: crc32.ChecksumIEEE(data)}
}

// ContentCRC32 returns the CRC32 of the image without a leading iNES
// header. Game databases usually key NES titles by this value. Images
// without the header return CRC32.
func (img *Image) ContentCRC32() uint32 {
	if len(img.Data) > inesHeaderSize && bytes.HasPrefix(img.Data, magicINES) {
		return crc32.ChecksumIEEE(img.Data[inesHeaderSize:])
	}
	return img.CRC32
}

// formatType represents the detected file format
type formatType int

const (
	formatUnknown formatType = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
)

// extractor pulls the first matching image out of an archive.
type extractor func(path string, want extSet) (*Image, error)

var extractors = map[formatType]extractor{
	formatZIP:  extractFromZIP,
	format7z:   extractFrom7z,
	formatGzip: extractFromGzip,
	formatRAR:  extractFromRAR,
}

// extSet is a list of accepted image extensions, such as ".nes".
type extSet []string

// matches checks if a filename has one of the extensions (case-insensitive)
func (s extSet) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range s {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Load reads an image from path. Archives are detected by magic bytes,
// falling back to the file extension, and the first entry matching one of
// extensions is extracted. A plain file must itself carry one of the
// extensions.
func Load(path string, extensions []string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	// Read header for magic byte detection
	header := make([]byte, 16)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}
	header = header[:n]

	format := detectFormat(header, path, extensions)
	if format == formatRaw {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to seek file: %w", err)
		}
		data, err := limitedRead(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read ROM: %w", err)
		}
		return NewImage(filepath.Base(path), data), nil
	}

	extract, ok := extractors[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return extract(path, extSet(extensions))
}

// detectFormat determines the file format based on magic bytes and extension.
func detectFormat(header []byte, path string, extensions []string) formatType {
	ext := strings.ToLower(filepath.Ext(path))

	// Magic bytes first (more reliable)
	switch {
	case bytes.HasPrefix(header, magicZIP), bytes.HasPrefix(header, magicZIPEnd):
		return formatZIP
	case bytes.HasPrefix(header, magicRAR):
		return formatRAR
	case bytes.HasPrefix(header, magic7z):
		return format7z
	case bytes.HasPrefix(header, magicGzip):
		return formatGzip
	}

	// Fall back to extension for archive formats
	switch ext {
	case ".zip":
		return formatZIP
	case ".7z":
		return format7z
	case ".gz", ".tgz":
		return formatGzip
	case ".rar":
		return formatRAR
	}

	for _, romExt := range extensions {
		if ext == strings.ToLower(romExt) {
			return formatRaw
		}
	}
	return formatUnknown
}

// limitedRead reads from r up to maxROMSize bytes, returning an error if exceeded
func limitedRead(r io.Reader) ([]byte, error) {
	lr := io.LimitReader(r, maxROMSize+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if len(data) > maxROMSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// readEntry reads one archive member into an Image.
func readEntry(r io.Reader, name string) (*Image, error) {
	data, err := limitedRead(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return NewImage(filepath.Base(name), data), nil
}
