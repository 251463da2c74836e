package bridge

import "encoding/binary"

const bytesPerPixel = 2

// FramePackager copies core frames of arbitrary row pitch into one
// fixed-capacity, tightly packed RGB565 buffer.
type FramePackager struct {
	buf []uint16
}

// NewFramePackager allocates a frame buffer for frames up to
// maxWidth x maxHeight pixels.
func NewFramePackager(maxWidth, maxHeight int) *FramePackager {
	return &FramePackager{buf: make([]uint16, maxWidth*maxHeight)}
}

// Capacity returns the frame buffer size in pixels.
func (p *FramePackager) Capacity() int {
	return len(p.buf)
}

// Pack copies width pixels from each of height rows of src, rows starting
// pitch bytes apart, into the frame buffer and returns the packed
// width*height pixels. The returned slice aliases the frame buffer and is
// only valid until the next Pack.
//
// A frame larger than the buffer, a pitch narrower than a row, or a source
// shorter than its declared geometry is a broken core contract and faults.
func (p *FramePackager) Pack(src []byte, width, height, pitch int) []uint16 {
	if width <= 0 || height <= 0 {
		return nil
	}
	pixels := width * height
	if pixels > len(p.buf) {
		fault(ErrBufferOverflow, "%dx%d frame needs %d pixels, buffer holds %d", width, height, pixels, len(p.buf))
	}
	rowBytes := width * bytesPerPixel
	if pitch < rowBytes {
		fault(ErrBufferOverflow, "pitch %d is narrower than a %d pixel row", pitch, width)
	}
	if need := pitch*(height-1) + rowBytes; len(src) < need {
		fault(ErrBufferOverflow, "%dx%d frame with pitch %d needs %d source bytes, got %d", width, height, pitch, need, len(src))
	}

	dst := p.buf[:pixels]
	for row := 0; row < height; row++ {
		line := src[row*pitch : row*pitch+rowBytes]
		out := dst[row*width : (row+1)*width]
		for x := range out {
			out[x] = binary.NativeEndian.Uint16(line[x*bytesPerPixel:])
		}
	}
	return dst
}
