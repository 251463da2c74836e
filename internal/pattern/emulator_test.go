package pattern

import (
	"errors"
	"testing"

	emucore "github.com/user-none/retrobridge/api"
	"github.com/user-none/retrobridge/bridge"
	"github.com/user-none/retrobridge/retro"
)

// TestFactory_CreateEmulator validates the image
func TestFactory_CreateEmulator(t *testing.T) {
	if _, err := (Factory{}).CreateEmulator([]byte{1, 2, 3}, emucore.RegionNTSC); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("garbage: err = %v, want ErrInvalidImage", err)
	}
	emu, err := (Factory{}).CreateEmulator(image(1, 1), emucore.RegionPAL)
	if err != nil {
		t.Fatalf("valid image: %v", err)
	}
	if emu.GetTiming().FPS != 50 {
		t.Errorf("PAL FPS = %d, want 50", emu.GetTiming().FPS)
	}
}

// TestEmu_ThroughBridge runs the adapted emulator in a session
func TestEmu_ThroughBridge(t *testing.T) {
	h := &host{}
	s := bridge.NewSession(NewEmu(), bridge.Config{})
	if err := s.Initialize(h); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.LoadGame([]byte("garbage")); !errors.Is(err, bridge.ErrLoadRejected) {
		t.Errorf("LoadGame(garbage) = %v, want ErrLoadRejected", err)
	}
	if err := s.LoadGame(image(2, 1)); err != nil {
		t.Fatalf("LoadGame: %v", err)
	}

	s.SetInputState(0, retro.JoypadStart, true)
	for i := 0; i < 2; i++ {
		if err := s.RunFrame(); err != nil {
			t.Fatalf("RunFrame: %v", err)
		}
	}

	if h.frames != 2 || h.width != Width || h.height != Height {
		t.Fatalf("frames=%d size=%dx%d", h.frames, h.width, h.height)
	}
	if h.samples != 2*(SampleRate/FPS) {
		t.Errorf("samples = %d, want %d", h.samples, 2*(SampleRate/FPS))
	}
	// Two frames with Start held scroll the bars by two pixels.
	barWidth := Width / len(bars)
	if got := h.last[barWidth-2]; got != bars[1] {
		t.Errorf("pixel %d = %#04x, want %#04x", barWidth-2, got, bars[1])
	}
	if got := h.last[0]; got != bars[0] {
		t.Errorf("pixel 0 = %#04x, want %#04x", got, bars[0])
	}

	if err := s.Deinit(); err != nil {
		t.Fatalf("Deinit: %v", err)
	}
}

// TestMapping routes each joypad button to its emulator bit
func TestMapping(t *testing.T) {
	want := map[int]int{
		retro.JoypadA:      4,
		retro.JoypadB:      5,
		retro.JoypadSelect: 6,
		retro.JoypadStart:  7,
	}
	if len(Mapping) != len(want) {
		t.Fatalf("len(Mapping) = %d, want %d", len(Mapping), len(want))
	}
	for _, m := range Mapping {
		bit, ok := want[m.RetroID]
		if !ok {
			t.Errorf("unexpected RetroID %d", m.RetroID)
			continue
		}
		if m.BitID != bit {
			t.Errorf("RetroID %d -> bit %d, want %d", m.RetroID, m.BitID, bit)
		}
		delete(want, m.RetroID)
	}
}
