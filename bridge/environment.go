package bridge

import (
	"log"
	"unsafe"

	"github.com/user-none/retrobridge/retro"
)

// Negotiator answers the core's environment queries. The bridge is wired
// for RGB565 output only, so the one command it understands is the pixel
// format request, which it always accepts. Everything else is unsupported.
type Negotiator struct {
	format retro.PixelFormat
	warned bool
}

func newNegotiator() *Negotiator {
	return &Negotiator{format: retro.FormatRGB565}
}

// Format returns the last pixel format the core asked for.
func (n *Negotiator) Format() retro.PixelFormat {
	return n.format
}

// environment implements retro.EnvironmentFunc.
func (n *Negotiator) environment(cmd uint, data unsafe.Pointer) bool {
	switch cmd &^ retro.EnvExperimental {
	case retro.EnvSetPixelFormat:
		if data != nil {
			n.format = retro.PixelFormat(*(*uint32)(data))
		}
		if n.format != retro.FormatRGB565 && !n.warned {
			log.Printf("Warning: core requested %v pixels, frames are packed as RGB565", n.format)
			n.warned = true
		}
		return true
	default:
		return false
	}
}
