// Package pattern is a self-contained emulation core that draws scrolling
// colour bars instead of running a game. It accepts iNES images, reports
// RGB565 output with a padded row pitch, reads the joypad every frame and
// beeps while a button is held, which makes it a convenient stand-in for a
// real core when checking a host.
package pattern

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/user-none/retrobridge/retro"
)

// Output geometry. Pitch is deliberately wider than Width*2.
const (
	Width      = 256
	Height     = 240
	Pitch      = 320 * 2
	FPS        = 60
	SampleRate = 44100

	samplesPerFrame = SampleRate / FPS
	padByte         = 0xAA
	barRows         = Height - buttonRows
	buttonRows      = 16
	amplitude       = 6000
)

var inesMagic = []byte{'N', 'E', 'S', 0x1A}

// bar colours in RGB565: white, yellow, cyan, green, magenta, red, blue, black
var bars = [8]uint16{0xFFFF, 0xFFE0, 0x07FF, 0x07E0, 0xF81F, 0xF800, 0x001F, 0x0000}

// Compile-time interface checks.
var (
	_ retro.Core      = (*Core)(nil)
	_ retro.Describer = (*Core)(nil)
)

// Core implements retro.Core.
type Core struct {
	env    retro.EnvironmentFunc
	video  retro.VideoRefreshFunc
	sample retro.AudioSampleFunc
	batch  retro.AudioSampleBatchFunc
	poll   retro.InputPollFunc
	state  retro.InputStateFunc

	// SkipEvery makes every Nth Run send a nil frame. Zero never skips.
	SkipEvery int

	initialized bool
	loaded      bool
	frame       []byte
	audio       []int16
	frameCount  int
	phase       int
	buttons     [2]uint16
	lastRead    [2]uint16
}

// New creates an uninitialized pattern core.
func New() *Core {
	return &Core{}
}

func (c *Core) SetEnvironment(cb retro.EnvironmentFunc)           { c.env = cb }
func (c *Core) SetVideoRefresh(cb retro.VideoRefreshFunc)         { c.video = cb }
func (c *Core) SetAudioSample(cb retro.AudioSampleFunc)           { c.sample = cb }
func (c *Core) SetAudioSampleBatch(cb retro.AudioSampleBatchFunc) { c.batch = cb }
func (c *Core) SetInputPoll(cb retro.InputPollFunc)               { c.poll = cb }
func (c *Core) SetInputState(cb retro.InputStateFunc)             { c.state = cb }

// Init negotiates RGB565 output and allocates the frame.
func (c *Core) Init() {
	format := uint32(retro.FormatRGB565)
	if c.env != nil {
		c.env(retro.EnvSetPixelFormat, unsafe.Pointer(&format))
	}
	c.frame = make([]byte, Pitch*Height)
	c.audio = make([]int16, 0, samplesPerFrame*2)
	c.initialized = true
}

// Deinit drops all state.
func (c *Core) Deinit() {
	c.initialized = false
	c.loaded = false
	c.frame = nil
	c.audio = nil
}

// LoadGame accepts any well-formed iNES image: a 16 byte header with the
// NES magic followed by at least the PRG and CHR banks it declares.
func (c *Core) LoadGame(game retro.GameInfo) bool {
	if !c.initialized || !ValidImage(game.Data) {
		return false
	}
	c.loaded = true
	c.frameCount = 0
	c.phase = 0
	return true
}

// ValidImage reports whether rom looks like an iNES image.
func ValidImage(rom []byte) bool {
	if len(rom) < 16 || !bytes.Equal(rom[:4], inesMagic) {
		return false
	}
	prg := int(rom[4]) * 16384
	chr := int(rom[5]) * 8192
	return prg > 0 && len(rom) >= 16+prg+chr
}

// UnloadGame forgets the loaded image.
func (c *Core) UnloadGame() {
	c.loaded = false
}

// Reset restarts the pattern from frame zero.
func (c *Core) Reset() {
	c.frameCount = 0
	c.phase = 0
}

// Run renders one frame and one frame's worth of audio.
func (c *Core) Run() {
	if !c.loaded {
		return
	}

	if c.poll != nil {
		c.poll()
	}
	c.readInput()

	c.frameCount++
	if c.SkipEvery > 0 && c.frameCount%c.SkipEvery == 0 {
		c.video(nil, Width, Height, Pitch)
	} else {
		c.render()
		c.video(c.frame, Width, Height, Pitch)
	}

	c.mixAudio()
	// One pair through the single-sample path, the rest as a batch.
	c.sample(c.audio[0], c.audio[1])
	c.batch(c.audio[2:], len(c.audio)/2-1)
}

// LastInput returns the button mask the core read for port during the most
// recent Run.
func (c *Core) LastInput(port int) uint16 {
	if port < 0 || port > 1 {
		return 0
	}
	return c.lastRead[port]
}

// FrameCount returns the number of frames run since load or reset.
func (c *Core) FrameCount() int {
	return c.frameCount
}

// SystemInfo describes the pattern core.
func (c *Core) SystemInfo() retro.SystemInfo {
	return retro.SystemInfo{
		LibraryName:     "pattern",
		LibraryVersion:  "1.0",
		ValidExtensions: "nes",
	}
}

// AVInfo describes the pattern core's output.
func (c *Core) AVInfo() retro.AVInfo {
	return retro.AVInfo{
		Geometry: retro.Geometry{
			BaseWidth:   Width,
			BaseHeight:  Height,
			MaxWidth:    Width,
			MaxHeight:   Height,
			AspectRatio: 4.0 / 3.0,
		},
		Timing: retro.Timing{FPS: FPS, SampleRate: SampleRate},
	}
}

// APIVersion returns the ABI revision.
func (c *Core) APIVersion() uint {
	return retro.APIVersion
}

func (c *Core) readInput() {
	for port := 0; port < 2; port++ {
		var mask uint16
		for id := 0; id <= retro.JoypadR; id++ {
			if c.state(uint(port), retro.DeviceJoypad, 0, uint(id)) != 0 {
				mask |= 1 << uint(id)
			}
		}
		c.buttons[port] = mask
		c.lastRead[port] = mask
	}
}

func (c *Core) render() {
	for i := range c.frame {
		c.frame[i] = padByte
	}

	barWidth := Width / len(bars)
	shift := c.frameCount % Width
	for y := 0; y < barRows; y++ {
		row := c.frame[y*Pitch:]
		for x := 0; x < Width; x++ {
			colour := bars[((x+shift)%Width)/barWidth]
			binary.NativeEndian.PutUint16(row[x*2:], colour)
		}
	}

	// One square per joypad button on port 0, lit while held.
	cell := Width / (retro.JoypadR + 1)
	for y := barRows; y < Height; y++ {
		row := c.frame[y*Pitch:]
		for x := 0; x < Width; x++ {
			id := x / cell
			var colour uint16
			if id <= retro.JoypadR && c.buttons[0]&(1<<uint(id)) != 0 {
				colour = 0xFFFF
			}
			binary.NativeEndian.PutUint16(row[x*2:], colour)
		}
	}
}

// mixAudio fills one frame of square wave, silent unless a button is held.
// The lowest held button id picks the pitch.
func (c *Core) mixAudio() {
	c.audio = c.audio[:0]
	held := c.buttons[0] | c.buttons[1]
	period := 0
	for id := 0; id <= retro.JoypadR; id++ {
		if held&(1<<uint(id)) != 0 {
			period = SampleRate / (220 + 40*id)
			break
		}
	}
	for i := 0; i < samplesPerFrame; i++ {
		var v int16
		if period > 0 {
			if (c.phase/(period/2))%2 == 0 {
				v = amplitude
			} else {
				v = -amplitude
			}
			c.phase = (c.phase + 1) % period
		}
		c.audio = append(c.audio, v, v)
	}
}
