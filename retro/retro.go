// Package retro describes the fixed plugin ABI exposed by a libretro-style
// emulation core: the entry points a frontend calls and the callbacks the
// core calls back into while one of those entry points is running.
//
// Nothing in this package talks to a real core. Implementations of Core live
// in dynlib (shared libraries) and gocore (in-process Go emulators).
package retro

import (
	"strings"
	"unsafe"
)

// APIVersion is the libretro API revision this ABI mirrors.
const APIVersion = 1

// Input device kinds passed to InputStateFunc.
const (
	DeviceNone     = 0
	DeviceJoypad   = 1
	DeviceMouse    = 2
	DeviceKeyboard = 3
	DeviceLightgun = 4
	DeviceAnalog   = 5
	DevicePointer  = 6
)

// Joypad button identifiers (RETRO_DEVICE_ID_JOYPAD_*).
const (
	JoypadB      = 0
	JoypadY      = 1
	JoypadSelect = 2
	JoypadStart  = 3
	JoypadUp     = 4
	JoypadDown   = 5
	JoypadLeft   = 6
	JoypadRight  = 7
	JoypadA      = 8
	JoypadX      = 9
	JoypadL      = 10
	JoypadR      = 11
	JoypadL2     = 12
	JoypadR2     = 13
	JoypadL3     = 14
	JoypadR3     = 15

	// JoypadMask asks for every button of a port as one bitmask.
	JoypadMask = 256
)

// Environment commands a core may issue through EnvironmentFunc.
const (
	EnvSetRotation         = 1
	EnvGetOverscan         = 2
	EnvGetCanDupe          = 3
	EnvSetMessage          = 6
	EnvShutdown            = 7
	EnvGetSystemDirectory  = 9
	EnvSetPixelFormat      = 10
	EnvSetInputDescriptors = 11
	EnvGetVariable         = 15
	EnvSetVariables        = 16
	EnvGetVariableUpdate   = 17
	EnvSetSupportNoGame    = 18
	EnvGetLogInterface     = 27
	EnvGetSaveDirectory    = 31
	EnvSetGeometry         = 37

	// EnvExperimental is OR'd into commands that are not yet stable.
	EnvExperimental = 0x10000
)

// PixelFormat is the layout of one pixel in a video refresh buffer.
type PixelFormat uint32

const (
	Format0RGB1555 PixelFormat = 0
	FormatXRGB8888 PixelFormat = 1
	FormatRGB565   PixelFormat = 2
)

// BytesPerPixel returns the size of one pixel in the format.
func (f PixelFormat) BytesPerPixel() int {
	if f == FormatXRGB8888 {
		return 4
	}
	return 2
}

// String returns the format's display name.
func (f PixelFormat) String() string {
	switch f {
	case Format0RGB1555:
		return "0RGB1555"
	case FormatXRGB8888:
		return "XRGB8888"
	case FormatRGB565:
		return "RGB565"
	default:
		return "Unknown"
	}
}

// Callback shapes the core invokes. They are only ever called synchronously
// from inside one of the Core entry points.
type (
	// EnvironmentFunc answers a capability or configuration query.
	EnvironmentFunc func(cmd uint, data unsafe.Pointer) bool

	// VideoRefreshFunc delivers one frame. data holds height rows of pitch
	// bytes (the last row may stop after width pixels). A nil data means
	// the core chose not to render this cycle.
	VideoRefreshFunc func(data []byte, width, height, pitch int)

	// AudioSampleFunc delivers one stereo sample pair.
	AudioSampleFunc func(left, right int16)

	// AudioSampleBatchFunc delivers interleaved stereo frames and returns
	// the number of frames consumed.
	AudioSampleBatchFunc func(data []int16, frames int) int

	// InputPollFunc is called once before the core reads input for a frame.
	InputPollFunc func()

	// InputStateFunc returns the state of one input on one port.
	InputStateFunc func(port, device, index, id uint) int16
)

// GameInfo describes a game image handed to LoadGame.
type GameInfo struct {
	Path string // empty when the image is passed in memory
	Data []byte
	Meta string
}

// Core is the set of entry points every emulation core exposes. All entry
// points are synchronous; callbacks registered through the Set* methods
// fire on the calling goroutine before the entry point returns.
type Core interface {
	SetEnvironment(cb EnvironmentFunc)
	SetVideoRefresh(cb VideoRefreshFunc)
	SetAudioSample(cb AudioSampleFunc)
	SetAudioSampleBatch(cb AudioSampleBatchFunc)
	SetInputPoll(cb InputPollFunc)
	SetInputState(cb InputStateFunc)

	Init()
	Deinit()
	LoadGame(game GameInfo) bool
	UnloadGame()
	Run()
	Reset()
}

// SystemInfo is the static description a core reports about itself.
type SystemInfo struct {
	LibraryName     string
	LibraryVersion  string
	ValidExtensions string // pipe separated, without dots: "nes|fds"
	NeedFullpath    bool
	BlockExtract    bool
}

// Extensions returns ValidExtensions as dotted lowercase suffixes.
func (si SystemInfo) Extensions() []string {
	return ParseExtensions(si.ValidExtensions)
}

// Geometry is the video geometry part of AVInfo.
type Geometry struct {
	BaseWidth   int
	BaseHeight  int
	MaxWidth    int
	MaxHeight   int
	AspectRatio float64
}

// Timing is the timing part of AVInfo.
type Timing struct {
	FPS        float64
	SampleRate float64
}

// AVInfo is the audio/video description a core reports after LoadGame.
type AVInfo struct {
	Geometry Geometry
	Timing   Timing
}

// Describer is implemented by cores that can report system and AV info.
type Describer interface {
	SystemInfo() SystemInfo
	AVInfo() AVInfo
	APIVersion() uint
}

// ParseExtensions converts "nes|fds" into []string{".nes", ".fds"}.
func ParseExtensions(list string) []string {
	var exts []string
	for _, e := range strings.Split(list, "|") {
		e = strings.TrimSpace(strings.ToLower(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}
