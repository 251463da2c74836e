// Package bridge connects a pull-style emulation core to a push-style host.
//
// A Session owns one core for the length of an Initialize/Deinit bracket.
// Every Session method that drives the core is a single synchronous unit of
// work: the core runs on the caller's goroutine and, before the method
// returns, may call back into the session any number of times (environment
// queries, input polls and reads, one video frame, audio samples). Those
// callbacks are forwarded to the Host on the same goroutine. Nothing here is
// asynchronous and nothing needs a lock except the input table, which the
// host may write from another goroutine.
package bridge

import (
	"fmt"
	"log"
	"unsafe"

	"github.com/user-none/retrobridge/retro"
)

// Default frame buffer size: one NES frame.
const (
	DefaultMaxWidth  = 256
	DefaultMaxHeight = 240
)

// State is the lifecycle position of a Session.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateGameLoaded
	StateDeinitialized
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateGameLoaded:
		return "GameLoaded"
	case StateDeinitialized:
		return "Deinitialized"
	default:
		return "Unknown"
	}
}

// Config tunes a Session. Zero values select the defaults.
type Config struct {
	MaxWidth  int // frame buffer width in pixels
	MaxHeight int // frame buffer height in pixels

	// AudioBatch delivers each core audio batch to a BatchHost in one call
	// instead of one OnAudioSample per stereo pair.
	AudioBatch bool

	Attacher HostAttacher
}

// Stats counts what a session has delivered since Initialize.
type Stats struct {
	Frames       uint64 // frames delivered to the host
	ElidedFrames uint64 // refreshes the core sent without pixels
	Samples      uint64 // stereo pairs delivered to the host
}

// Session is one bridge instance bound to one core.
type Session struct {
	core retro.Core
	cfg  Config

	state State
	host  Host
	frame *FramePackager
	env   *Negotiator
	audio *AudioRelay
	input InputTable

	depth  int // > 0 while a core entry point runs
	frames uint64
	elided uint64
}

// NewSession creates a session for core. The core is not touched until
// Initialize.
func NewSession(core retro.Core, cfg Config) *Session {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = DefaultMaxHeight
	}
	if cfg.Attacher == nil {
		cfg.Attacher = NoAttach{}
	}
	return &Session{core: core, cfg: cfg}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// PixelFormat returns the pixel format the core last requested.
func (s *Session) PixelFormat() retro.PixelFormat {
	if s.env == nil {
		return retro.FormatRGB565
	}
	return s.env.Format()
}

// Stats returns delivery counters for the current bracket.
func (s *Session) Stats() Stats {
	st := Stats{Frames: s.frames, ElidedFrames: s.elided}
	if s.audio != nil {
		st.Samples = s.audio.Delivered()
	}
	return st
}

// Initialize binds host, allocates the frame buffer, registers every
// callback with the core and then calls the core's init entry point.
func (s *Session) Initialize(host Host) error {
	if host == nil {
		return fmt.Errorf("initialize: nil host: %w", ErrInvalidArgument)
	}
	leave, err := s.enter()
	if err != nil {
		return err
	}
	defer leave()

	if s.active() {
		return ErrAlreadyInitialized
	}

	// A core that faults inside init leaves nothing bound.
	bound := false
	defer func() {
		if !bound {
			s.host, s.frame, s.env, s.audio = nil, nil, nil, nil
		}
	}()

	s.host = host
	s.frame = NewFramePackager(s.cfg.MaxWidth, s.cfg.MaxHeight)
	s.env = newNegotiator()

	var batch func([]int16)
	if bh, ok := host.(BatchHost); ok && s.cfg.AudioBatch {
		batch = bh.OnAudioBatch
	}
	s.audio = newAudioRelay(host.OnAudioSample, batch)
	s.frames, s.elided = 0, 0

	s.core.SetEnvironment(s.environment)
	s.core.SetVideoRefresh(s.videoRefresh)
	s.core.SetAudioSample(s.audioSample)
	s.core.SetAudioSampleBatch(s.audioSampleBatch)
	s.core.SetInputPoll(s.inputPoll)
	s.core.SetInputState(s.inputState)

	s.core.Init()
	bound = true
	s.state = StateInitialized
	return nil
}

// LoadGame hands rom to the core. The image is passed in memory with no
// path and no metadata; the core decides whether it is acceptable. The
// bridge does not keep rom after the call returns.
func (s *Session) LoadGame(rom []byte) error {
	leave, err := s.enter()
	if err != nil {
		return err
	}
	defer leave()

	if !s.active() {
		return fmt.Errorf("%w: %w", ErrLoadRejected, ErrNotInitialized)
	}
	if s.state == StateGameLoaded {
		log.Printf("Warning: unloading current game before loading another")
		s.core.UnloadGame()
		s.state = StateInitialized
	}

	if !s.core.LoadGame(retro.GameInfo{Data: rom}) {
		log.Printf("Warning: core rejected %d byte image", len(rom))
		return ErrLoadRejected
	}
	s.state = StateGameLoaded
	return nil
}

// RunFrame advances emulation by one frame. Video, audio and input
// callbacks all happen before it returns. Without a loaded game it does
// nothing.
func (s *Session) RunFrame() error {
	leave, err := s.enter()
	if err != nil {
		return err
	}
	defer leave()

	if !s.active() {
		return ErrNotInitialized
	}
	if s.state != StateGameLoaded {
		return nil
	}
	s.core.Run()
	return nil
}

// SetInputState records a joypad button for the next frame. Ports other
// than 0 and 1, and ids outside the joypad range, are ignored. It may be
// called from any goroutine at any time.
func (s *Session) SetInputState(port, id int, pressed bool) {
	s.input.Set(port, id, pressed)
}

// Reset resets the loaded game. Without a loaded game it does nothing.
func (s *Session) Reset() error {
	leave, err := s.enter()
	if err != nil {
		return err
	}
	defer leave()

	if !s.active() {
		return ErrNotInitialized
	}
	if s.state != StateGameLoaded {
		return nil
	}
	s.core.Reset()
	return nil
}

// UnloadGame unloads the current game. Repeated calls are harmless.
func (s *Session) UnloadGame() error {
	leave, err := s.enter()
	if err != nil {
		return err
	}
	defer leave()

	if !s.active() {
		return ErrNotInitialized
	}
	if s.state == StateGameLoaded {
		s.core.UnloadGame()
		s.state = StateInitialized
	}
	return nil
}

// Deinit unloads any game, shuts the core down and drops the frame buffer
// and host binding. Only Initialize is valid afterwards.
func (s *Session) Deinit() error {
	leave, err := s.enter()
	if err != nil {
		return err
	}
	defer leave()

	if !s.active() {
		return ErrNotInitialized
	}
	if s.state == StateGameLoaded {
		s.core.UnloadGame()
	}
	s.core.Deinit()

	s.frame = nil
	s.host = nil
	s.audio = nil
	s.input.Clear()
	s.state = StateDeinitialized
	return nil
}

func (s *Session) active() bool {
	return s.state == StateInitialized || s.state == StateGameLoaded
}

// enter opens the host-call context for one outer entry point.
func (s *Session) enter() (leave func(), err error) {
	if s.depth > 0 {
		return nil, ErrReentrantCall
	}
	s.depth++
	detach := s.cfg.Attacher.Attach()
	return func() {
		detach()
		s.depth--
	}, nil
}

func (s *Session) inCall(name string) {
	if s.depth == 0 {
		fault(ErrCallbackOutsideCall, "%s", name)
	}
}

func (s *Session) environment(cmd uint, data unsafe.Pointer) bool {
	s.inCall("environment")
	return s.env.environment(cmd, data)
}

func (s *Session) videoRefresh(data []byte, width, height, pitch int) {
	s.inCall("video refresh")
	if data == nil {
		s.elided++
		return
	}
	pixels := s.frame.Pack(data, width, height, pitch)
	if pixels == nil {
		s.elided++
		return
	}
	s.frames++
	s.host.OnVideoFrame(pixels, width, height)
}

func (s *Session) audioSample(left, right int16) {
	s.inCall("audio sample")
	s.audio.Sample(left, right)
}

func (s *Session) audioSampleBatch(data []int16, frames int) int {
	s.inCall("audio sample batch")
	return s.audio.Batch(data, frames)
}

func (s *Session) inputPoll() {
	s.inCall("input poll")
}

func (s *Session) inputState(port, device, index, id uint) int16 {
	s.inCall("input state")
	return s.input.state(port, device, index, id)
}
