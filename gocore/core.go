// Package gocore exposes an in-process Go emulator as a retro.Core, so the
// bridge can drive it exactly as it drives a loaded libretro library.
package gocore

import (
	"log"
	"strings"
	"unsafe"

	emucore "github.com/user-none/retrobridge/api"
	"github.com/user-none/retrobridge/retro"
)

// RetropadMapping maps a joypad button id to an emucore bit position.
type RetropadMapping struct {
	RetroID int // retro.Joypad* constant
	BitID   int // emucore bit position (from Button.ID)
}

// gameGeometry mirrors the layout of retro_game_geometry, the payload of
// retro.EnvSetGeometry.
type gameGeometry struct {
	baseWidth   uint32
	baseHeight  uint32
	maxWidth    uint32
	maxHeight   uint32
	aspectRatio float32
}

// rowAlign pads each output row to a multiple of this many bytes.
const rowAlign = 64

var (
	_ retro.Core      = (*Core)(nil)
	_ retro.Describer = (*Core)(nil)
)

// Core adapts an emucore.CoreFactory to retro.Core.
type Core struct {
	factory  emucore.CoreFactory
	inputMap []RetropadMapping
	sysInfo  emucore.SystemInfo

	env    retro.EnvironmentFunc
	video  retro.VideoRefreshFunc
	sample retro.AudioSampleFunc
	batch  retro.AudioSampleBatchFunc
	poll   retro.InputPollFunc
	state  retro.InputStateFunc

	emulator emucore.Emulator
	region   emucore.Region
	romData  []byte

	rgb565        []byte
	pitch         int
	currentWidth  int
	currentHeight int
}

// New creates a core that builds emulators from factory. mapping lists the
// system-specific buttons; the d-pad is always read.
func New(factory emucore.CoreFactory, mapping []RetropadMapping) *Core {
	return &Core{
		factory:  factory,
		inputMap: mapping,
		sysInfo:  factory.SystemInfo(),
	}
}

func (c *Core) SetEnvironment(cb retro.EnvironmentFunc)           { c.env = cb }
func (c *Core) SetVideoRefresh(cb retro.VideoRefreshFunc)         { c.video = cb }
func (c *Core) SetAudioSample(cb retro.AudioSampleFunc)           { c.sample = cb }
func (c *Core) SetAudioSampleBatch(cb retro.AudioSampleBatchFunc) { c.batch = cb }
func (c *Core) SetInputPoll(cb retro.InputPollFunc)               { c.poll = cb }
func (c *Core) SetInputState(cb retro.InputStateFunc)             { c.state = cb }

// Init allocates the output frame.
func (c *Core) Init() {
	c.pitch = alignUp(c.sysInfo.ScreenWidth*2, rowAlign)
	c.rgb565 = make([]byte, c.pitch*c.sysInfo.MaxScreenHeight)
	c.currentWidth = c.sysInfo.ScreenWidth
	c.currentHeight = c.sysInfo.MaxScreenHeight
}

// Deinit releases the emulator and the output frame.
func (c *Core) Deinit() {
	c.closeEmulator()
	c.romData = nil
	c.rgb565 = nil
}

// LoadGame negotiates RGB565 output and creates an emulator for the image.
func (c *Core) LoadGame(game retro.GameInfo) bool {
	if len(game.Data) == 0 {
		return false
	}

	format := uint32(retro.FormatRGB565)
	if c.env == nil || !c.env(retro.EnvSetPixelFormat, unsafe.Pointer(&format)) {
		log.Printf("Warning: frontend refused RGB565 output")
		return false
	}

	rom := make([]byte, len(game.Data))
	copy(rom, game.Data)

	c.region, _ = c.factory.DetectRegion(rom)
	emu, err := c.factory.CreateEmulator(rom, c.region)
	if err != nil {
		log.Printf("Warning: failed to create emulator: %v", err)
		return false
	}
	c.closeEmulator()
	c.emulator = emu
	c.romData = rom
	return true
}

// UnloadGame drops the emulator.
func (c *Core) UnloadGame() {
	c.closeEmulator()
	c.romData = nil
}

// Reset resets the emulator in place when it supports that and otherwise
// recreates it from the ROM.
func (c *Core) Reset() {
	if c.emulator == nil {
		return
	}
	if r, ok := c.emulator.(emucore.Resetter); ok {
		r.Reset()
		return
	}

	emu, err := c.factory.CreateEmulator(c.romData, c.region)
	if err != nil {
		log.Printf("Warning: reset failed: %v", err)
		return
	}
	c.closeEmulator()
	c.emulator = emu
}

// Run reads input, runs one emulator frame and hands its video and audio
// to the frontend.
func (c *Core) Run() {
	if c.emulator == nil {
		return
	}

	c.poll()
	for player := 0; player < c.sysInfo.Players; player++ {
		c.emulator.SetInput(player, c.readButtons(uint(player)))
	}

	c.emulator.RunFrame()

	fb := c.emulator.GetFramebuffer()
	if len(fb) > 0 {
		c.outputVideo(fb, c.emulator.GetFramebufferStride(), c.emulator.GetActiveHeight())
	} else {
		c.video(nil, c.currentWidth, c.currentHeight, c.pitch)
	}

	samples := c.emulator.GetAudioSamples()
	if len(samples) >= 2 {
		c.batch(samples, len(samples)/2)
	}
}

// SystemInfo reports the wrapped system.
func (c *Core) SystemInfo() retro.SystemInfo {
	exts := make([]string, len(c.sysInfo.Extensions))
	for i, e := range c.sysInfo.Extensions {
		exts[i] = strings.TrimPrefix(e, ".")
	}
	return retro.SystemInfo{
		LibraryName:     c.sysInfo.CoreName,
		LibraryVersion:  c.sysInfo.CoreVersion,
		ValidExtensions: strings.Join(exts, "|"),
	}
}

// AVInfo reports geometry and timing. Before a game is loaded the timing
// is the NTSC default.
func (c *Core) AVInfo() retro.AVInfo {
	timing := emucore.DefaultTiming(emucore.RegionNTSC)
	if c.emulator != nil {
		timing = c.emulator.GetTiming()
	}

	baseWidth := c.currentWidth
	if baseWidth == 0 {
		baseWidth = c.sysInfo.ScreenWidth
	}
	baseHeight := c.currentHeight
	if baseHeight == 0 {
		baseHeight = c.sysInfo.MaxScreenHeight
	}
	return retro.AVInfo{
		Geometry: retro.Geometry{
			BaseWidth:   baseWidth,
			BaseHeight:  baseHeight,
			MaxWidth:    c.sysInfo.ScreenWidth,
			MaxHeight:   c.sysInfo.MaxScreenHeight,
			AspectRatio: emucore.DisplayAspectRatio(baseWidth, baseHeight, c.sysInfo.PixelAspectRatio),
		},
		Timing: retro.Timing{
			FPS:        float64(timing.FPS),
			SampleRate: float64(c.sysInfo.SampleRate),
		},
	}
}

// APIVersion returns the ABI revision.
func (c *Core) APIVersion() uint {
	return retro.APIVersion
}

// readButtons builds the emucore bitmask for one port.
func (c *Core) readButtons(port uint) uint32 {
	var buttons uint32
	pressed := func(id int) bool {
		return c.state(port, retro.DeviceJoypad, 0, uint(id)) != 0
	}

	// D-pad (fixed mapping)
	if pressed(retro.JoypadUp) {
		buttons |= 1 << emucore.ButtonUp
	}
	if pressed(retro.JoypadDown) {
		buttons |= 1 << emucore.ButtonDown
	}
	if pressed(retro.JoypadLeft) {
		buttons |= 1 << emucore.ButtonLeft
	}
	if pressed(retro.JoypadRight) {
		buttons |= 1 << emucore.ButtonRight
	}

	for _, m := range c.inputMap {
		if pressed(m.RetroID) {
			buttons |= 1 << uint(m.BitID)
		}
	}
	return buttons
}

func (c *Core) outputVideo(fb []byte, stride, activeHeight int) {
	width := c.sysInfo.ScreenWidth
	if activeHeight > c.sysInfo.MaxScreenHeight {
		activeHeight = c.sysInfo.MaxScreenHeight
	}
	convertRGBAToRGB565(fb, stride, c.rgb565, c.pitch, width, activeHeight)
	c.video(c.rgb565, width, activeHeight, c.pitch)

	if c.currentWidth != width || c.currentHeight != activeHeight {
		c.currentWidth = width
		c.currentHeight = activeHeight
		c.updateGeometry()
	}
}

// updateGeometry notifies the frontend of geometry changes.
func (c *Core) updateGeometry() {
	geom := gameGeometry{
		baseWidth:   uint32(c.currentWidth),
		baseHeight:  uint32(c.currentHeight),
		maxWidth:    uint32(c.sysInfo.ScreenWidth),
		maxHeight:   uint32(c.sysInfo.MaxScreenHeight),
		aspectRatio: float32(emucore.DisplayAspectRatio(c.currentWidth, c.currentHeight, c.sysInfo.PixelAspectRatio)),
	}
	c.env(retro.EnvSetGeometry, unsafe.Pointer(&geom))
}

func (c *Core) closeEmulator() {
	if c.emulator != nil {
		c.emulator.Close()
		c.emulator = nil
	}
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
