// Package dynlib loads a libretro core from a shared library and exposes it
// as a retro.Core. Symbols are resolved with purego, so no C toolchain is
// needed to build it.
package dynlib

import (
	"errors"
	"unsafe"

	"github.com/user-none/retrobridge/retro"
)

var (
	// ErrUnsupportedPlatform is returned by Open where shared libraries
	// cannot be loaded.
	ErrUnsupportedPlatform = errors.New("dynamic core loading not supported on this platform")

	// ErrAPIVersion is returned by Open for a core built against another
	// revision of the ABI.
	ErrAPIVersion = errors.New("core API version mismatch")

	// ErrBusy is returned by Open while another library is open. The
	// callback trampolines are process wide, so only one core can be bound.
	ErrBusy = errors.New("another core library is already open")
)

// hwFrameValid is RETRO_HW_FRAME_BUFFER_VALID, the frame pointer a hardware
// rendered core passes instead of pixels.
const hwFrameValid = ^uintptr(0)

// C layouts of the structures exchanged with the core.

type gameInfo struct {
	path *byte
	data unsafe.Pointer
	size uintptr
	meta *byte
}

type systemInfo struct {
	libraryName     *byte
	libraryVersion  *byte
	validExtensions *byte
	needFullpath    bool
	blockExtract    bool
}

type gameGeometry struct {
	baseWidth   uint32
	baseHeight  uint32
	maxWidth    uint32
	maxHeight   uint32
	aspectRatio float32
}

type systemTiming struct {
	fps        float64
	sampleRate float64
}

type systemAVInfo struct {
	geometry gameGeometry
	timing   systemTiming
}

// goString copies a NUL-terminated C string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

func (si *systemInfo) toRetro() retro.SystemInfo {
	return retro.SystemInfo{
		LibraryName:     goString(si.libraryName),
		LibraryVersion:  goString(si.libraryVersion),
		ValidExtensions: goString(si.validExtensions),
		NeedFullpath:    si.needFullpath,
		BlockExtract:    si.blockExtract,
	}
}

func (av *systemAVInfo) toRetro() retro.AVInfo {
	return retro.AVInfo{
		Geometry: retro.Geometry{
			BaseWidth:   int(av.geometry.baseWidth),
			BaseHeight:  int(av.geometry.baseHeight),
			MaxWidth:    int(av.geometry.maxWidth),
			MaxHeight:   int(av.geometry.maxHeight),
			AspectRatio: float64(av.geometry.aspectRatio),
		},
		Timing: retro.Timing{
			FPS:        av.timing.fps,
			SampleRate: av.timing.sampleRate,
		},
	}
}

// frameBytes views a core frame as a byte slice covering height rows of
// pitch bytes. A nil or hardware frame pointer yields nil.
func frameBytes(data unsafe.Pointer, height, pitch int) []byte {
	if data == nil || uintptr(data) == hwFrameValid || height <= 0 || pitch <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(data), height*pitch)
}

// sampleSlice views frames interleaved stereo frames.
func sampleSlice(data unsafe.Pointer, frames int) []int16 {
	if data == nil || frames <= 0 {
		return nil
	}
	return unsafe.Slice((*int16)(data), frames*2)
}
