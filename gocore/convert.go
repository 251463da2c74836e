package gocore

import "encoding/binary"

// rgb565 packs 8-bit channels into one RGB565 pixel.
func rgb565(r, g, b byte) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// convertRGBAToRGB565 converts height rows of width RGBA pixels, srcStride
// bytes apart, into RGB565 rows dstPitch bytes apart. Row padding in dst is
// left untouched.
func convertRGBAToRGB565(src []byte, srcStride int, dst []byte, dstPitch, width, height int) {
	for y := 0; y < height; y++ {
		in := src[y*srcStride : y*srcStride+width*4]
		out := dst[y*dstPitch : y*dstPitch+width*2]
		for x := 0; x < width; x++ {
			p := in[x*4:]
			binary.NativeEndian.PutUint16(out[x*2:], rgb565(p[0], p[1], p[2]))
		}
	}
}
