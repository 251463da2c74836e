package host

import (
	"image"
	"sync"
)

// sharedFrame carries the latest video frame from the emulation goroutine
// to Draw. Pixels are converted to RGBA when they arrive, so the bridge's
// buffer is never held past the callback.
type sharedFrame struct {
	mu     sync.Mutex
	write  []byte
	read   []byte
	width  int
	height int
	serial uint64 // bumped on every Update
}

func newSharedFrame(maxWidth, maxHeight int) *sharedFrame {
	size := maxWidth * maxHeight * 4
	return &sharedFrame{
		write: make([]byte, size),
		read:  make([]byte, size),
	}
}

// Update stores an RGB565 frame. It reports false for a frame larger than
// the buffer.
func (f *sharedFrame) Update(pixels []uint16, width, height int) bool {
	n := width * height
	if width <= 0 || height <= 0 || n > len(pixels) || n*4 > len(f.write) {
		return false
	}

	f.mu.Lock()
	rgb565ToRGBA(f.write[:n*4], pixels[:n])
	f.width, f.height = width, height
	f.serial++
	f.mu.Unlock()
	return true
}

// Read returns a copy of the current frame that stays valid until the
// next Read.
func (f *sharedFrame) Read() (pixels []byte, width, height int, serial uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.width * f.height * 4
	copy(f.read[:n], f.write[:n])
	return f.read[:n], f.width, f.height, f.serial
}

// Snapshot returns the current frame as an independent image, or nil
// before the first frame.
func (f *sharedFrame) Snapshot() *image.RGBA {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.width == 0 || f.height == 0 {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	copy(img.Pix, f.write[:f.width*f.height*4])
	return img
}

// rgb565ToRGBA expands each pixel to 8 bits per channel, replicating the
// high bits into the low ones so full intensity stays 0xFF.
func rgb565ToRGBA(dst []byte, src []uint16) {
	for i, p := range src {
		r := byte(p>>11) & 0x1f
		g := byte(p>>5) & 0x3f
		b := byte(p) & 0x1f
		o := i * 4
		dst[o] = r<<3 | r>>2
		dst[o+1] = g<<2 | g>>4
		dst[o+2] = b<<3 | b>>2
		dst[o+3] = 0xff
	}
}
