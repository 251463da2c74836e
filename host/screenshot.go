package host

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.design/x/clipboard"
	xdraw "golang.org/x/image/draw"
)

var (
	clipboardOnce sync.Once
	clipboardErr  error
)

// scaleImage enlarges src by an integer factor with nearest-neighbour
// sampling so pixel edges stay sharp.
func scaleImage(src *image.RGBA, scale int) *image.RGBA {
	if scale <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// saveScreenshot writes data to dir/<title>-<unix time>.png and returns
// the path.
func saveScreenshot(dir, title string, data []byte, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	name := fmt.Sprintf("%d.png", now.Unix())
	if title != "" {
		name = fmt.Sprintf("%s-%s", sanitizeFileName(title), name)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

func sanitizeFileName(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out[i] = '_'
		}
	}
	return string(out)
}

// copyImageToClipboard places PNG data on the system clipboard.
func copyImageToClipboard(data []byte) error {
	clipboardOnce.Do(func() {
		clipboardErr = clipboard.Init()
	})
	if clipboardErr != nil {
		return fmt.Errorf("clipboard unavailable: %w", clipboardErr)
	}
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}
