package bridge

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"

	"github.com/user-none/retrobridge/retro"
)

// fakeCore records entry points and runs a caller supplied frame body.
type fakeCore struct {
	env    retro.EnvironmentFunc
	video  retro.VideoRefreshFunc
	sample retro.AudioSampleFunc
	batch  retro.AudioSampleBatchFunc
	poll   retro.InputPollFunc
	state  retro.InputStateFunc

	calls  []string
	accept func(retro.GameInfo) bool
	init   func(c *fakeCore)
	run    func(c *fakeCore)
}

func (c *fakeCore) SetEnvironment(cb retro.EnvironmentFunc)           { c.env = cb }
func (c *fakeCore) SetVideoRefresh(cb retro.VideoRefreshFunc)         { c.video = cb }
func (c *fakeCore) SetAudioSample(cb retro.AudioSampleFunc)           { c.sample = cb }
func (c *fakeCore) SetAudioSampleBatch(cb retro.AudioSampleBatchFunc) { c.batch = cb }
func (c *fakeCore) SetInputPoll(cb retro.InputPollFunc)               { c.poll = cb }
func (c *fakeCore) SetInputState(cb retro.InputStateFunc)             { c.state = cb }

func (c *fakeCore) Deinit()     { c.calls = append(c.calls, "deinit") }
func (c *fakeCore) UnloadGame() { c.calls = append(c.calls, "unload") }
func (c *fakeCore) Reset()      { c.calls = append(c.calls, "reset") }

func (c *fakeCore) Init() {
	c.calls = append(c.calls, "init")
	if c.init != nil {
		c.init(c)
	}
}

func (c *fakeCore) LoadGame(g retro.GameInfo) bool {
	c.calls = append(c.calls, "load")
	if c.accept == nil {
		return true
	}
	return c.accept(g)
}

func (c *fakeCore) Run() {
	c.calls = append(c.calls, "run")
	if c.run != nil {
		c.run(c)
	}
}

func (c *fakeCore) last() string {
	if len(c.calls) == 0 {
		return ""
	}
	return c.calls[len(c.calls)-1]
}

// recordingHost keeps copies of everything delivered.
type recordingHost struct {
	frames  [][]uint16
	sizes   [][2]int
	samples []pair
	batches [][]int16
	onFrame func()
}

func (h *recordingHost) OnVideoFrame(pixels []uint16, width, height int) {
	h.frames = append(h.frames, append([]uint16(nil), pixels...))
	h.sizes = append(h.sizes, [2]int{width, height})
	if h.onFrame != nil {
		h.onFrame()
	}
}

func (h *recordingHost) OnAudioSample(left, right int16) {
	h.samples = append(h.samples, pair{left, right})
}

type recordingBatchHost struct {
	recordingHost
}

func (h *recordingBatchHost) OnAudioBatch(samples []int16) {
	h.batches = append(h.batches, append([]int16(nil), samples...))
}

func inesImage(size int) []byte {
	rom := make([]byte, size)
	copy(rom, []byte{'N', 'E', 'S', 0x1A, 2, 1})
	return rom
}

func acceptINES(g retro.GameInfo) bool {
	return len(g.Data) >= 16 && bytes.Equal(g.Data[:4], []byte{'N', 'E', 'S', 0x1A})
}

func newLoaded(t *testing.T, core *fakeCore, host Host, cfg Config) *Session {
	t.Helper()
	s := NewSession(core, cfg)
	if err := s.Initialize(host); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.LoadGame(inesImage(40 * 1024)); err != nil {
		t.Fatalf("LoadGame: %v", err)
	}
	return s
}

// TestSession_RunFrameBeforeInitialize reports not initialized
func TestSession_RunFrameBeforeInitialize(t *testing.T) {
	core := &fakeCore{}
	s := NewSession(core, Config{})

	if err := s.RunFrame(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("RunFrame = %v, want ErrNotInitialized", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Reset = %v, want ErrNotInitialized", err)
	}
	if err := s.UnloadGame(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("UnloadGame = %v, want ErrNotInitialized", err)
	}
	if err := s.Deinit(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Deinit = %v, want ErrNotInitialized", err)
	}
	if len(core.calls) != 0 {
		t.Errorf("core calls = %v, want none", core.calls)
	}
}

// TestSession_LoadBeforeInitialize is a rejection that also names the cause
func TestSession_LoadBeforeInitialize(t *testing.T) {
	s := NewSession(&fakeCore{}, Config{})
	err := s.LoadGame(inesImage(1024))
	if !errors.Is(err, ErrLoadRejected) || !errors.Is(err, ErrNotInitialized) {
		t.Errorf("LoadGame = %v, want ErrLoadRejected and ErrNotInitialized", err)
	}
}

// TestSession_InitializeNilHost is rejected before touching the core
func TestSession_InitializeNilHost(t *testing.T) {
	core := &fakeCore{}
	s := NewSession(core, Config{})
	if err := s.Initialize(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Initialize(nil) = %v, want ErrInvalidArgument", err)
	}
	if s.State() != StateUninitialized {
		t.Errorf("State = %v, want Uninitialized", s.State())
	}
}

// TestSession_DoubleInitialize is refused
func TestSession_DoubleInitialize(t *testing.T) {
	core := &fakeCore{}
	s := NewSession(core, Config{})
	host := &recordingHost{}
	if err := s.Initialize(host); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.Initialize(host); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize = %v, want ErrAlreadyInitialized", err)
	}
	if n := len(core.calls); n != 1 {
		t.Errorf("core calls = %v, want one init", core.calls)
	}
}

// TestSession_InitializeFaultLeavesNothingBound verifies a core that faults
// during init does not leave a half-initialized session
func TestSession_InitializeFaultLeavesNothingBound(t *testing.T) {
	core := &fakeCore{init: func(c *fakeCore) {
		c.video(make([]byte, 512*241), 256, 241, 512)
	}}
	s := NewSession(core, Config{})
	host := &recordingHost{}

	f := expectFault(t, func() { s.Initialize(host) })
	if !errors.Is(f, ErrBufferOverflow) {
		t.Fatalf("fault = %v, want ErrBufferOverflow", f)
	}
	if s.State() != StateUninitialized {
		t.Errorf("State = %v, want Uninitialized", s.State())
	}
	if s.host != nil || s.frame != nil || s.env != nil || s.audio != nil {
		t.Error("session kept bindings from the failed init")
	}
	if s.PixelFormat() != retro.FormatRGB565 {
		t.Errorf("PixelFormat = %v, want RGB565", s.PixelFormat())
	}

	core.init = nil
	if err := s.Initialize(host); err != nil {
		t.Fatalf("Initialize after fault: %v", err)
	}
	if s.State() != StateInitialized {
		t.Errorf("State = %v, want Initialized", s.State())
	}
}

// TestSession_LoadGame accepts a valid image and rejects garbage
func TestSession_LoadGame(t *testing.T) {
	core := &fakeCore{accept: acceptINES}
	s := NewSession(core, Config{})
	if err := s.Initialize(&recordingHost{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := s.LoadGame([]byte{1, 2, 3}); !errors.Is(err, ErrLoadRejected) {
		t.Errorf("LoadGame(garbage) = %v, want ErrLoadRejected", err)
	}
	if s.State() != StateInitialized {
		t.Errorf("State after rejection = %v, want Initialized", s.State())
	}

	if err := s.LoadGame(inesImage(40 * 1024)); err != nil {
		t.Errorf("LoadGame(valid) = %v", err)
	}
	if s.State() != StateGameLoaded {
		t.Errorf("State = %v, want GameLoaded", s.State())
	}
}

// TestSession_LoadReplacesGame unloads the previous game first
func TestSession_LoadReplacesGame(t *testing.T) {
	core := &fakeCore{}
	s := newLoaded(t, core, &recordingHost{}, Config{})
	core.calls = nil

	if err := s.LoadGame(inesImage(1024)); err != nil {
		t.Fatalf("LoadGame: %v", err)
	}
	want := []string{"unload", "load"}
	if len(core.calls) != 2 || core.calls[0] != want[0] || core.calls[1] != want[1] {
		t.Errorf("core calls = %v, want %v", core.calls, want)
	}
}

// TestSession_LoadGamePassesDataOnly leaves path and metadata empty
func TestSession_LoadGamePassesDataOnly(t *testing.T) {
	var got retro.GameInfo
	core := &fakeCore{accept: func(g retro.GameInfo) bool { got = g; return true }}
	newLoaded(t, core, &recordingHost{}, Config{})

	if got.Path != "" || got.Meta != "" {
		t.Errorf("GameInfo path=%q meta=%q, want empty", got.Path, got.Meta)
	}
	if len(got.Data) != 40*1024 {
		t.Errorf("data len = %d, want %d", len(got.Data), 40*1024)
	}
}

// TestSession_NoGameIsNoop covers RunFrame and Reset without a game
func TestSession_NoGameIsNoop(t *testing.T) {
	core := &fakeCore{}
	s := NewSession(core, Config{})
	if err := s.Initialize(&recordingHost{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.RunFrame(); err != nil {
		t.Errorf("RunFrame = %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Errorf("Reset = %v", err)
	}
	if err := s.UnloadGame(); err != nil {
		t.Errorf("UnloadGame = %v", err)
	}
	if core.last() != "init" {
		t.Errorf("core calls = %v, want only init", core.calls)
	}
}

// TestSession_UnloadIdempotent calls the core once
func TestSession_UnloadIdempotent(t *testing.T) {
	core := &fakeCore{}
	s := newLoaded(t, core, &recordingHost{}, Config{})
	core.calls = nil

	for i := 0; i < 3; i++ {
		if err := s.UnloadGame(); err != nil {
			t.Fatalf("UnloadGame #%d: %v", i, err)
		}
	}
	if len(core.calls) != 1 || core.calls[0] != "unload" {
		t.Errorf("core calls = %v, want one unload", core.calls)
	}
	if s.State() != StateInitialized {
		t.Errorf("State = %v, want Initialized", s.State())
	}
}

// TestSession_Lifecycle runs the full bracket twice
func TestSession_Lifecycle(t *testing.T) {
	frame := paddedFrame(4, 2, 12)
	core := &fakeCore{run: func(c *fakeCore) {
		c.video(frame, 4, 2, 12)
	}}
	host := &recordingHost{}
	s := NewSession(core, Config{})

	for round := 0; round < 2; round++ {
		if err := s.Initialize(host); err != nil {
			t.Fatalf("round %d Initialize: %v", round, err)
		}
		if err := s.LoadGame(inesImage(1024)); err != nil {
			t.Fatalf("round %d LoadGame: %v", round, err)
		}
		for i := 0; i < 5; i++ {
			if err := s.RunFrame(); err != nil {
				t.Fatalf("round %d RunFrame: %v", round, err)
			}
		}
		if got := s.Stats().Frames; got != 5 {
			t.Errorf("round %d frames = %d, want 5", round, got)
		}
		if err := s.Deinit(); err != nil {
			t.Fatalf("round %d Deinit: %v", round, err)
		}
		if s.State() != StateDeinitialized {
			t.Errorf("round %d State = %v, want Deinitialized", round, s.State())
		}
		if err := s.RunFrame(); !errors.Is(err, ErrNotInitialized) {
			t.Errorf("round %d RunFrame after Deinit = %v, want ErrNotInitialized", round, err)
		}
	}

	if len(host.frames) != 10 {
		t.Fatalf("host frames = %d, want 10", len(host.frames))
	}
	for i, px := range host.frames[9] {
		if px != uint16(i) {
			t.Errorf("pixel %d = %d, want %d", i, px, i)
		}
	}
	if host.sizes[0] != [2]int{4, 2} {
		t.Errorf("size = %v, want [4 2]", host.sizes[0])
	}
}

// TestSession_DeinitUnloadsFirst calls unload before deinit
func TestSession_DeinitUnloadsFirst(t *testing.T) {
	core := &fakeCore{}
	s := newLoaded(t, core, &recordingHost{}, Config{})
	core.calls = nil

	if err := s.Deinit(); err != nil {
		t.Fatalf("Deinit: %v", err)
	}
	if len(core.calls) != 2 || core.calls[0] != "unload" || core.calls[1] != "deinit" {
		t.Errorf("core calls = %v, want [unload deinit]", core.calls)
	}
}

// TestSession_InputReachesCore verifies the core reads the latest state
func TestSession_InputReachesCore(t *testing.T) {
	var read []int16
	core := &fakeCore{run: func(c *fakeCore) {
		c.poll()
		read = append(read,
			c.state(0, retro.DeviceJoypad, 0, retro.JoypadA),
			c.state(1, retro.DeviceJoypad, 0, retro.JoypadStart),
			c.state(0, retro.DeviceJoypad, 0, retro.JoypadMask),
		)
	}}
	s := newLoaded(t, core, &recordingHost{}, Config{})

	s.SetInputState(0, retro.JoypadA, true)
	s.SetInputState(0, retro.JoypadA, true)
	s.SetInputState(0, retro.JoypadA, false)
	s.SetInputState(1, retro.JoypadStart, true)
	s.SetInputState(2, retro.JoypadA, true)
	s.SetInputState(0, 99, true)

	if err := s.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	want := []int16{0, 1, 0}
	for i := range want {
		if read[i] != want[i] {
			t.Errorf("read[%d] = %d, want %d", i, read[i], want[i])
		}
	}
}

// TestSession_InputClearedByDeinit starts the next bracket released
func TestSession_InputClearedByDeinit(t *testing.T) {
	var a int16
	core := &fakeCore{run: func(c *fakeCore) {
		a = c.state(0, retro.DeviceJoypad, 0, retro.JoypadA)
	}}
	host := &recordingHost{}
	s := newLoaded(t, core, host, Config{})
	s.SetInputState(0, retro.JoypadA, true)
	s.Deinit()

	if err := s.Initialize(host); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	s.LoadGame(inesImage(1024))
	s.RunFrame()
	if a != 0 {
		t.Errorf("A after re-init = %d, want 0", a)
	}
}

// TestSession_AudioOrder verifies per-sample delivery across both paths
func TestSession_AudioOrder(t *testing.T) {
	core := &fakeCore{run: func(c *fakeCore) {
		c.sample(1, -1)
		if n := c.batch([]int16{2, -2, 3, -3, 4, -4}, 3); n != 3 {
			t.Errorf("batch consumed %d, want 3", n)
		}
		c.sample(5, -5)
	}}
	host := &recordingHost{}
	s := newLoaded(t, core, host, Config{})

	if err := s.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if len(host.samples) != 5 {
		t.Fatalf("samples = %d, want 5", len(host.samples))
	}
	for i, p := range host.samples {
		if p.l != int16(i+1) || p.r != -int16(i+1) {
			t.Errorf("sample %d = %v", i, p)
		}
	}
	if s.Stats().Samples != 5 {
		t.Errorf("Stats.Samples = %d, want 5", s.Stats().Samples)
	}
}

// TestSession_AudioBatchMode hands whole batches to a BatchHost
func TestSession_AudioBatchMode(t *testing.T) {
	core := &fakeCore{run: func(c *fakeCore) {
		c.batch([]int16{1, 2, 3, 4}, 2)
	}}

	t.Run("enabled", func(t *testing.T) {
		host := &recordingBatchHost{}
		s := newLoaded(t, core, host, Config{AudioBatch: true})
		s.RunFrame()
		if len(host.batches) != 1 || len(host.samples) != 0 {
			t.Errorf("batches=%d samples=%d, want 1 and 0", len(host.batches), len(host.samples))
		}
	})

	t.Run("disabled", func(t *testing.T) {
		host := &recordingBatchHost{}
		s := newLoaded(t, core, host, Config{})
		s.RunFrame()
		if len(host.batches) != 0 || len(host.samples) != 2 {
			t.Errorf("batches=%d samples=%d, want 0 and 2", len(host.batches), len(host.samples))
		}
	})

	t.Run("plain host", func(t *testing.T) {
		host := &recordingHost{}
		s := newLoaded(t, core, host, Config{AudioBatch: true})
		s.RunFrame()
		if len(host.samples) != 2 {
			t.Errorf("samples=%d, want 2", len(host.samples))
		}
	})
}

// TestSession_ElidedFrame delivers nothing for a nil frame
func TestSession_ElidedFrame(t *testing.T) {
	core := &fakeCore{run: func(c *fakeCore) {
		c.video(nil, 256, 240, 512)
	}}
	host := &recordingHost{}
	s := newLoaded(t, core, host, Config{})
	s.RunFrame()

	if len(host.frames) != 0 {
		t.Errorf("frames = %d, want 0", len(host.frames))
	}
	if st := s.Stats(); st.ElidedFrames != 1 || st.Frames != 0 {
		t.Errorf("Stats = %+v, want one elided frame", st)
	}
}

// TestSession_OversizedFrameFaults aborts instead of overflowing
func TestSession_OversizedFrameFaults(t *testing.T) {
	core := &fakeCore{run: func(c *fakeCore) {
		c.video(make([]byte, 512*240), 256, 240, 512)
	}}
	host := &recordingHost{}
	s := newLoaded(t, core, host, Config{MaxWidth: 160, MaxHeight: 144})

	f := expectFault(t, func() { s.RunFrame() })
	if !errors.Is(f, ErrBufferOverflow) {
		t.Errorf("fault = %v, want ErrBufferOverflow", f)
	}
	if len(host.frames) != 0 {
		t.Errorf("host saw %d frames, want 0", len(host.frames))
	}
}

// TestSession_PixelFormat records the negotiated format
func TestSession_PixelFormat(t *testing.T) {
	testCases := []struct {
		name   string
		format retro.PixelFormat
	}{
		{"rgb565", retro.FormatRGB565},
		{"xrgb8888", retro.FormatXRGB8888},
		{"0rgb1555", retro.Format0RGB1555},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			core := &fakeCore{}
			s := NewSession(core, Config{})
			if err := s.Initialize(&recordingHost{}); err != nil {
				t.Fatalf("Initialize: %v", err)
			}
			core.run = func(c *fakeCore) {
				v := uint32(tc.format)
				if !c.env(retro.EnvSetPixelFormat, unsafe.Pointer(&v)) {
					t.Error("pixel format request refused")
				}
				if c.env(retro.EnvGetVariable, nil) {
					t.Error("unsupported command accepted")
				}
			}
			s.LoadGame(inesImage(1024))
			s.RunFrame()
			if s.PixelFormat() != tc.format {
				t.Errorf("PixelFormat = %v, want %v", s.PixelFormat(), tc.format)
			}
		})
	}
}

// TestSession_ReentrantCall refuses lifecycle calls from a callback
func TestSession_ReentrantCall(t *testing.T) {
	frame := make([]byte, 8)
	core := &fakeCore{run: func(c *fakeCore) {
		c.video(frame, 2, 2, 4)
	}}
	host := &recordingHost{}
	s := newLoaded(t, core, host, Config{})

	var inner error
	host.onFrame = func() { inner = s.RunFrame() }
	if err := s.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if !errors.Is(inner, ErrReentrantCall) {
		t.Errorf("nested RunFrame = %v, want ErrReentrantCall", inner)
	}
}

// TestSession_CallbackOutsideCall faults
func TestSession_CallbackOutsideCall(t *testing.T) {
	core := &fakeCore{}
	newLoaded(t, core, &recordingHost{}, Config{})

	f := expectFault(t, func() { core.sample(0, 0) })
	if !errors.Is(f, ErrCallbackOutsideCall) {
		t.Errorf("fault = %v, want ErrCallbackOutsideCall", f)
	}
}

type countingAttacher struct {
	attached, detached int
}

func (a *countingAttacher) Attach() func() {
	a.attached++
	return func() { a.detached++ }
}

// TestSession_AttachOncePerEntry attaches once however many callbacks fire
func TestSession_AttachOncePerEntry(t *testing.T) {
	core := &fakeCore{run: func(c *fakeCore) {
		c.poll()
		for i := 0; i < 10; i++ {
			c.state(0, retro.DeviceJoypad, 0, uint(i))
			c.sample(0, 0)
		}
	}}
	att := &countingAttacher{}
	s := newLoaded(t, core, &recordingHost{}, Config{Attacher: att})
	att.attached, att.detached = 0, 0

	s.RunFrame()
	if att.attached != 1 || att.detached != 1 {
		t.Errorf("attach/detach = %d/%d, want 1/1", att.attached, att.detached)
	}
}

// TestSession_DetachOnFault releases the context when a frame faults
func TestSession_DetachOnFault(t *testing.T) {
	core := &fakeCore{run: func(c *fakeCore) {
		c.video(make([]byte, 4), 4, 4, 8)
	}}
	att := &countingAttacher{}
	s := newLoaded(t, core, &recordingHost{}, Config{Attacher: att})
	att.attached, att.detached = 0, 0

	expectFault(t, func() { s.RunFrame() })
	if att.detached != 1 {
		t.Errorf("detached = %d, want 1", att.detached)
	}
	if err := s.Reset(); err != nil {
		t.Errorf("Reset after fault = %v, want nil", err)
	}
}

// TestSession_LockedThread runs a frame with the thread locked
func TestSession_LockedThread(t *testing.T) {
	core := &fakeCore{run: func(c *fakeCore) {
		c.video(make([]byte, 8), 2, 2, 4)
	}}
	host := &recordingHost{}
	s := newLoaded(t, core, host, Config{Attacher: LockedThread{}})
	if err := s.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if len(host.frames) != 1 {
		t.Errorf("frames = %d, want 1", len(host.frames))
	}
}

// TestState_String names every state
func TestState_String(t *testing.T) {
	testCases := []struct {
		state State
		want  string
	}{
		{StateUninitialized, "Uninitialized"},
		{StateInitialized, "Initialized"},
		{StateGameLoaded, "GameLoaded"},
		{StateDeinitialized, "Deinitialized"},
		{State(42), "Unknown"},
	}
	for _, tc := range testCases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", int(tc.state), got, tc.want)
		}
	}
}
