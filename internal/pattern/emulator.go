package pattern

import (
	"errors"

	emucore "github.com/user-none/retrobridge/api"
	"github.com/user-none/retrobridge/gocore"
	"github.com/user-none/retrobridge/retro"
)

// Bit positions of the non-d-pad buttons in the emucore input mask.
const (
	buttonA = 4 + iota
	buttonB
	buttonSelect
	buttonStart
)

// ErrInvalidImage is returned by Factory for anything that is not iNES.
var ErrInvalidImage = errors.New("not an iNES image")

// Mapping is the joypad layout Factory emulators expect.
var Mapping = []gocore.RetropadMapping{
	{RetroID: retro.JoypadA, BitID: buttonA},
	{RetroID: retro.JoypadB, BitID: buttonB},
	{RetroID: retro.JoypadSelect, BitID: buttonSelect},
	{RetroID: retro.JoypadStart, BitID: buttonStart},
}

// NewEmu returns the pattern emulator wrapped as a retro.Core.
func NewEmu() *gocore.Core {
	return gocore.New(Factory{}, Mapping)
}

// Factory builds the colour-bar pattern as an emucore.Emulator, for
// exercising the Go-core adapter rather than the bridge directly.
type Factory struct{}

var _ emucore.CoreFactory = Factory{}

// SystemInfo describes the pattern system.
func (Factory) SystemInfo() emucore.SystemInfo {
	return emucore.SystemInfo{
		CoreName:         "pattern-emu",
		CoreVersion:      "1.0",
		Extensions:       []string{".nes"},
		ScreenWidth:      Width,
		MaxScreenHeight:  Height,
		PixelAspectRatio: 8.0 / 7.0,
		SampleRate:       SampleRate,
		Buttons: []emucore.Button{
			{Name: "A", ID: buttonA},
			{Name: "B", ID: buttonB},
			{Name: "Select", ID: buttonSelect},
			{Name: "Start", ID: buttonStart},
		},
		Players: 2,
	}
}

// CreateEmulator validates rom and returns a fresh emulator.
func (Factory) CreateEmulator(rom []byte, region emucore.Region) (emucore.Emulator, error) {
	if !ValidImage(rom) {
		return nil, ErrInvalidImage
	}
	return &Emulator{
		timing: emucore.DefaultTiming(region),
		fb:     make([]byte, Width*4*Height),
	}, nil
}

// DetectRegion treats every image as NTSC.
func (Factory) DetectRegion(rom []byte) (emucore.Region, bool) {
	return emucore.RegionNTSC, false
}

// Emulator draws RGBA colour bars that scroll while a button is held.
type Emulator struct {
	timing emucore.Timing
	fb     []byte
	audio  []int16
	input  [2]uint32
	offset int
	closed bool
}

// RunFrame advances the pattern.
func (e *Emulator) RunFrame() {
	if e.input[0]|e.input[1] != 0 {
		e.offset++
	}
	barWidth := Width / len(bars)
	for y := 0; y < Height; y++ {
		row := e.fb[y*Width*4:]
		for x := 0; x < Width; x++ {
			c := bars[((x+e.offset)%Width)/barWidth]
			p := row[x*4:]
			p[0] = byte(c>>11) << 3
			p[1] = byte(c>>5) << 2
			p[2] = byte(c) << 3
			p[3] = 0xFF
		}
	}

	n := SampleRate / e.timing.FPS
	if cap(e.audio) < n*2 {
		e.audio = make([]int16, n*2)
	}
	e.audio = e.audio[:n*2]
	for i := range e.audio {
		e.audio[i] = 0
	}
}

func (e *Emulator) GetFramebuffer() []byte    { return e.fb }
func (e *Emulator) GetFramebufferStride() int { return Width * 4 }
func (e *Emulator) GetActiveHeight() int      { return Height }
func (e *Emulator) GetAudioSamples() []int16  { return e.audio }
func (e *Emulator) GetTiming() emucore.Timing { return e.timing }

// SetInput records the button mask for player 0 or 1.
func (e *Emulator) SetInput(player int, buttons uint32) {
	if player >= 0 && player < len(e.input) {
		e.input[player] = buttons
	}
}

// Reset rewinds the scroll offset.
func (e *Emulator) Reset() {
	e.offset = 0
}

// Close marks the emulator unusable.
func (e *Emulator) Close() {
	e.closed = true
	e.fb = nil
}
