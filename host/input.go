package host

import (
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/user-none/retrobridge/bridge"
	"github.com/user-none/retrobridge/config"
	"github.com/user-none/retrobridge/retro"
)

// stickThreshold is how far the left stick must lean to press a direction.
const stickThreshold = 0.5

// button is one joypad button as named in config files.
type button struct {
	name       string
	id         int
	defaultKey string
	defaultPad string
}

// buttons lists every bindable button. Pad names follow the standard
// layout, so the core's A sits on the right face button and B on the
// bottom one.
var buttons = []button{
	{"Up", retro.JoypadUp, "ArrowUp", "DpadUp"},
	{"Down", retro.JoypadDown, "ArrowDown", "DpadDown"},
	{"Left", retro.JoypadLeft, "ArrowLeft", "DpadLeft"},
	{"Right", retro.JoypadRight, "ArrowRight", "DpadRight"},
	{"A", retro.JoypadA, "X", "B"},
	{"B", retro.JoypadB, "Z", "A"},
	{"X", retro.JoypadX, "S", "Y"},
	{"Y", retro.JoypadY, "A", "X"},
	{"L", retro.JoypadL, "Q", "L1"},
	{"R", retro.JoypadR, "W", "R1"},
	{"Select", retro.JoypadSelect, "Shift", "Select"},
	{"Start", retro.JoypadStart, "Enter", "Start"},
}

var keyNames = map[string]ebiten.Key{
	"A": ebiten.KeyA, "B": ebiten.KeyB, "C": ebiten.KeyC, "D": ebiten.KeyD,
	"E": ebiten.KeyE, "F": ebiten.KeyF, "G": ebiten.KeyG, "H": ebiten.KeyH,
	"I": ebiten.KeyI, "J": ebiten.KeyJ, "K": ebiten.KeyK, "L": ebiten.KeyL,
	"M": ebiten.KeyM, "N": ebiten.KeyN, "O": ebiten.KeyO, "Q": ebiten.KeyQ,
	"R": ebiten.KeyR, "S": ebiten.KeyS, "T": ebiten.KeyT, "U": ebiten.KeyU,
	"V": ebiten.KeyV, "W": ebiten.KeyW, "X": ebiten.KeyX, "Y": ebiten.KeyY,
	"Z": ebiten.KeyZ,
	"0": ebiten.Key0, "1": ebiten.Key1, "2": ebiten.Key2, "3": ebiten.Key3,
	"4": ebiten.Key4, "5": ebiten.Key5, "6": ebiten.Key6, "7": ebiten.Key7,
	"8": ebiten.Key8, "9": ebiten.Key9,

	"Enter":      ebiten.KeyEnter,
	"Backspace":  ebiten.KeyBackspace,
	"Space":      ebiten.KeySpace,
	"Tab":        ebiten.KeyTab,
	"Shift":      ebiten.KeyShift,
	"Control":    ebiten.KeyControl,
	"Alt":        ebiten.KeyAlt,
	"Comma":      ebiten.KeyComma,
	"Period":     ebiten.KeyPeriod,
	"Slash":      ebiten.KeySlash,
	"Semicolon":  ebiten.KeySemicolon,
	"ArrowUp":    ebiten.KeyArrowUp,
	"ArrowDown":  ebiten.KeyArrowDown,
	"ArrowLeft":  ebiten.KeyArrowLeft,
	"ArrowRight": ebiten.KeyArrowRight,
}

var padNames = map[string]ebiten.StandardGamepadButton{
	"A":         ebiten.StandardGamepadButtonRightBottom,
	"B":         ebiten.StandardGamepadButtonRightRight,
	"X":         ebiten.StandardGamepadButtonRightLeft,
	"Y":         ebiten.StandardGamepadButtonRightTop,
	"L1":        ebiten.StandardGamepadButtonFrontTopLeft,
	"R1":        ebiten.StandardGamepadButtonFrontTopRight,
	"L2":        ebiten.StandardGamepadButtonFrontBottomLeft,
	"R2":        ebiten.StandardGamepadButtonFrontBottomRight,
	"Select":    ebiten.StandardGamepadButtonCenterLeft,
	"Start":     ebiten.StandardGamepadButtonCenterRight,
	"DpadUp":    ebiten.StandardGamepadButtonLeftTop,
	"DpadDown":  ebiten.StandardGamepadButtonLeftBottom,
	"DpadLeft":  ebiten.StandardGamepadButtonLeftLeft,
	"DpadRight": ebiten.StandardGamepadButtonLeftRight,
}

// reservedKeys drive the frontend and cannot be bound to buttons.
var reservedKeys = map[ebiten.Key]bool{
	ebiten.KeyEscape: true, // quit
	ebiten.KeyF1:     true, // reset
	ebiten.KeyP:      true, // pause
	ebiten.KeyF11:    true, // fullscreen
	ebiten.KeyF12:    true, // screenshot
}

// bindings maps joypad ids to the keys and pad buttons that press them.
type bindings struct {
	keys       map[int]ebiten.Key
	pad        map[int]ebiten.StandardGamepadButton
	analogDpad bool
}

// newBindings applies cfg's overrides over the defaults. Unknown button,
// key or pad names are logged and skipped.
func newBindings(cfg config.InputConfig) bindings {
	b := bindings{
		keys:       make(map[int]ebiten.Key, len(buttons)),
		pad:        make(map[int]ebiten.StandardGamepadButton, len(buttons)),
		analogDpad: cfg.AnalogDpad,
	}

	known := make(map[string]bool, len(buttons))
	for _, btn := range buttons {
		known[btn.name] = true

		keyName := btn.defaultKey
		if o, ok := cfg.Keyboard[btn.name]; ok {
			keyName = o
		}
		if k, ok := keyNames[keyName]; ok && !reservedKeys[k] {
			b.keys[btn.id] = k
		} else {
			log.Printf("Warning: unusable key %q for %s", keyName, btn.name)
		}

		padName := btn.defaultPad
		if o, ok := cfg.Gamepad[btn.name]; ok {
			padName = o
		}
		if p, ok := padNames[padName]; ok {
			b.pad[btn.id] = p
		} else {
			log.Printf("Warning: unknown gamepad button %q for %s", padName, btn.name)
		}
	}

	for _, m := range []map[string]string{cfg.Keyboard, cfg.Gamepad} {
		for name := range m {
			if !known[name] {
				log.Printf("Warning: binding for unknown button %q ignored", name)
			}
		}
	}
	return b
}

// stickMask converts a stick position to d-pad bits.
func stickMask(x, y float64) uint32 {
	var mask uint32
	if y < -stickThreshold {
		mask |= 1 << retro.JoypadUp
	}
	if y > stickThreshold {
		mask |= 1 << retro.JoypadDown
	}
	if x < -stickThreshold {
		mask |= 1 << retro.JoypadLeft
	}
	if x > stickThreshold {
		mask |= 1 << retro.JoypadRight
	}
	return mask
}

func (b bindings) pollKeyboard() uint32 {
	var mask uint32
	for id, key := range b.keys {
		if ebiten.IsKeyPressed(key) {
			mask |= 1 << uint(id)
		}
	}
	return mask
}

func (b bindings) pollGamepad(id ebiten.GamepadID) uint32 {
	var mask uint32
	for bit, btn := range b.pad {
		if ebiten.IsStandardGamepadButtonPressed(id, btn) {
			mask |= 1 << uint(bit)
		}
	}
	if b.analogDpad {
		mask |= stickMask(
			ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickHorizontal),
			ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickVertical),
		)
	}
	return mask
}

// poll returns a button mask per port: port 0 is the keyboard plus the
// first gamepad, port 1 the second gamepad.
func (b bindings) poll(pads []ebiten.GamepadID) [bridge.MaxPorts]uint32 {
	var masks [bridge.MaxPorts]uint32
	masks[0] = b.pollKeyboard()
	for port, id := range pads {
		if port >= bridge.MaxPorts {
			break
		}
		masks[port] |= b.pollGamepad(id)
	}
	return masks
}

// inputWriter is the part of a session the poller writes to.
type inputWriter interface {
	SetInputState(port, id int, pressed bool)
}

var _ inputWriter = (*bridge.Session)(nil)

// applyMasks writes every button of every port, so releases land too.
func applyMasks(w inputWriter, masks [bridge.MaxPorts]uint32) {
	for port, mask := range masks {
		for id := 0; id <= bridge.MaxButtonID; id++ {
			w.SetInputState(port, id, mask&(1<<uint(id)) != 0)
		}
	}
}
