// Package mobile is the flat API bound with gomobile for the Android and
// iOS hosts. It holds a single bridge session per process.
//
// The host registers a core from Go before binding, then drives it:
//
//	mobile.Initialize(callbacks)
//	mobile.LoadGame(rom)
//	for running { mobile.SetInputState(...); mobile.RunFrame() }
//	mobile.UnloadGame()
//	mobile.Deinit()
//
// Lifecycle calls are serialized. SetInputState may be called from any
// thread at any time. Lifecycle calls made while a callback is running
// return false without touching the session.
package mobile

import (
	"encoding/binary"
	"log"
	"sync"
	"sync/atomic"

	emucore "github.com/user-none/retrobridge/api"
	"github.com/user-none/retrobridge/bridge"
	"github.com/user-none/retrobridge/gocore"
	"github.com/user-none/retrobridge/retro"
)

// Joypad button ids accepted by SetInputState.
const (
	JoypadB      = retro.JoypadB
	JoypadY      = retro.JoypadY
	JoypadSelect = retro.JoypadSelect
	JoypadStart  = retro.JoypadStart
	JoypadUp     = retro.JoypadUp
	JoypadDown   = retro.JoypadDown
	JoypadLeft   = retro.JoypadLeft
	JoypadRight  = retro.JoypadRight
	JoypadA      = retro.JoypadA
	JoypadX      = retro.JoypadX
	JoypadL      = retro.JoypadL
	JoypadR      = retro.JoypadR
)

// Callbacks is implemented by the platform host. Callbacks run inside
// RunFrame and the other lifecycle calls and must not call back into this
// package's lifecycle functions; such calls are rejected. SetInputState is
// allowed.
type Callbacks interface {
	// OnVideoFrame receives width*height little-endian RGB565 pixels with
	// no row padding. The slice is reused after the call returns.
	OnVideoFrame(pixels []byte, width, height int)
	OnAudioSample(left, right int)
}

var (
	mu      sync.Mutex
	newCore func() retro.Core

	// session is read without mu by SetInputState.
	session atomic.Pointer[bridge.Session]

	// inCallback is set while a Callbacks method runs. mu is held then, so
	// a lifecycle call from the callback would never acquire it.
	inCallback atomic.Bool
)

// RegisterCore installs the constructor used by the next Initialize.
func RegisterCore(f func() retro.Core) {
	if reentered("register core") {
		return
	}
	mu.Lock()
	newCore = f
	mu.Unlock()
}

// RegisterFactory installs a Go emulator as the core.
func RegisterFactory(f emucore.CoreFactory, mapping []gocore.RetropadMapping) {
	RegisterCore(func() retro.Core {
		return gocore.New(f, mapping)
	})
}

// Initialize creates a session for the registered core and binds cb to
// it. It returns false without a registered core, with a nil cb, or while
// a session is already initialized.
func Initialize(cb Callbacks) bool {
	if reentered("initialize") {
		return false
	}
	mu.Lock()
	defer mu.Unlock()

	if newCore == nil {
		log.Printf("Warning: initialize: no core registered")
		return false
	}
	if cb == nil {
		log.Printf("Warning: initialize: nil callbacks")
		return false
	}
	if s := session.Load(); s != nil && s.State() != bridge.StateDeinitialized {
		log.Printf("Warning: initialize: %v", bridge.ErrAlreadyInitialized)
		return false
	}

	s := bridge.NewSession(newCore(), bridge.Config{Attacher: bridge.LockedThread{}})
	if err := s.Initialize(&hostAdapter{cb: cb}); err != nil {
		log.Printf("Warning: initialize: %v", err)
		return false
	}
	session.Store(s)
	return true
}

// LoadGame hands rom to the core and reports whether it was accepted.
func LoadGame(rom []byte) bool {
	return withSession("load game", func(s *bridge.Session) error {
		return s.LoadGame(rom)
	})
}

// RunFrame runs one frame. Video and audio callbacks fire before it
// returns.
func RunFrame() {
	withSession("run frame", (*bridge.Session).RunFrame)
}

// SetInputState records a button for the next frame. Ports other than 0
// and 1 and unknown ids are ignored.
func SetInputState(port, id int, pressed bool) {
	if s := session.Load(); s != nil {
		s.SetInputState(port, id, pressed)
	}
}

// Reset resets the loaded game.
func Reset() {
	withSession("reset", (*bridge.Session).Reset)
}

// UnloadGame unloads the current game, if any.
func UnloadGame() {
	withSession("unload game", (*bridge.Session).UnloadGame)
}

// Deinit unloads any game and shuts the core down.
func Deinit() {
	withSession("deinit", (*bridge.Session).Deinit)
}

func withSession(op string, fn func(*bridge.Session) error) bool {
	if reentered(op) {
		return false
	}
	mu.Lock()
	defer mu.Unlock()

	s := session.Load()
	if s == nil {
		return false
	}
	if err := fn(s); err != nil {
		log.Printf("Warning: %s: %v", op, err)
		return false
	}
	return true
}

// reentered reports, and logs, a lifecycle call made from a callback.
func reentered(op string) bool {
	if !inCallback.Load() {
		return false
	}
	log.Printf("Warning: %s: %v", op, bridge.ErrReentrantCall)
	return true
}

// hostAdapter turns bridge output into the byte and int shapes gomobile
// can pass across the language boundary.
type hostAdapter struct {
	cb  Callbacks
	buf []byte
}

func (h *hostAdapter) OnVideoFrame(pixels []uint16, width, height int) {
	n := len(pixels) * 2
	if cap(h.buf) < n {
		h.buf = make([]byte, n)
	}
	h.buf = h.buf[:n]
	for i, p := range pixels {
		binary.LittleEndian.PutUint16(h.buf[i*2:], p)
	}
	inCallback.Store(true)
	defer inCallback.Store(false)
	h.cb.OnVideoFrame(h.buf, width, height)
}

func (h *hostAdapter) OnAudioSample(left, right int16) {
	inCallback.Store(true)
	defer inCallback.Store(false)
	h.cb.OnAudioSample(int(left), int(right))
}
