package bridge

import (
	"sync/atomic"

	"github.com/user-none/retrobridge/retro"
)

const (
	// MaxPorts is the number of controller ports the table tracks.
	MaxPorts = 2

	// MaxButtonID is the highest joypad button id the table stores.
	MaxButtonID = retro.JoypadR
)

// InputTable holds the last known pressed state of every joypad button on
// every port. Writes come from the host, reads come from the core's input
// state callback during RunFrame. Each cell is atomic so the two sides may
// run on different goroutines; there is no ordering between a write and the
// next frame's read beyond last-write-wins.
type InputTable struct {
	cells [MaxPorts][MaxButtonID + 1]atomic.Bool
}

// Set records a button state. It reports false, and changes nothing, when
// the port or button id is out of range.
func (t *InputTable) Set(port, id int, pressed bool) bool {
	if port < 0 || port >= MaxPorts || id < 0 || id > MaxButtonID {
		return false
	}
	t.cells[port][id].Store(pressed)
	return true
}

// Get returns 1 when the button is pressed and 0 otherwise. Out of range
// lookups return 0.
func (t *InputTable) Get(port, id int) int16 {
	if port < 0 || port >= MaxPorts || id < 0 || id > MaxButtonID {
		return 0
	}
	if t.cells[port][id].Load() {
		return 1
	}
	return 0
}

// Mask returns every button on a port as a bitmask, bit n being button id n.
func (t *InputTable) Mask(port int) int16 {
	if port < 0 || port >= MaxPorts {
		return 0
	}
	var mask uint16
	for id := 0; id <= MaxButtonID; id++ {
		if t.cells[port][id].Load() {
			mask |= 1 << uint(id)
		}
	}
	return int16(mask)
}

// Clear releases every button.
func (t *InputTable) Clear() {
	for port := range t.cells {
		for id := range t.cells[port] {
			t.cells[port][id].Store(false)
		}
	}
}

// state answers the core's input state callback.
func (t *InputTable) state(port, device, index, id uint) int16 {
	if port >= MaxPorts || device != retro.DeviceJoypad {
		return 0
	}
	if id == retro.JoypadMask {
		return t.Mask(int(port))
	}
	if id > MaxButtonID {
		return 0
	}
	return t.Get(int(port), int(id))
}
