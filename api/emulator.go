// Package emucore is the contract between an in-process Go emulator and the
// adapter that exposes it as a retro.Core.
package emucore

// Emulator runs one loaded game.
type Emulator interface {
	// RunFrame executes one frame of emulation.
	RunFrame()

	// GetFramebuffer returns the current frame as RGBA pixel data.
	GetFramebuffer() []byte

	// GetFramebufferStride returns bytes per row in the framebuffer.
	GetFramebufferStride() int

	// GetActiveHeight returns the current active display height in pixels.
	GetActiveHeight() int

	// GetAudioSamples returns interleaved stereo 16-bit PCM for the frame.
	GetAudioSamples() []int16

	// SetInput sets controller state as a button bitmask for the given player.
	SetInput(player int, buttons uint32)

	// GetTiming returns FPS and scanline count for the current region.
	GetTiming() Timing

	// Close releases any resources held by the emulator.
	Close()
}

// Resetter is implemented by emulators that can reset in place. Emulators
// without it are recreated from the ROM instead.
type Resetter interface {
	Reset()
}
