//go:build darwin || linux

package dynlib

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/user-none/retrobridge/retro"
)

var (
	_ retro.Core      = (*Library)(nil)
	_ retro.Describer = (*Library)(nil)
)

// Library is a libretro core loaded from a shared library.
type Library struct {
	handle uintptr
	path   string

	retroInit                func()
	retroDeinit              func()
	retroAPIVersion          func() uint32
	retroGetSystemInfo       func(info *systemInfo)
	retroGetSystemAVInfo     func(info *systemAVInfo)
	retroSetEnvironment      func(cb uintptr)
	retroSetVideoRefresh     func(cb uintptr)
	retroSetAudioSample      func(cb uintptr)
	retroSetAudioSampleBatch func(cb uintptr)
	retroSetInputPoll        func(cb uintptr)
	retroSetInputState       func(cb uintptr)
	retroLoadGame            func(info *gameInfo) bool
	retroUnloadGame          func()
	retroRun                 func()
	retroReset               func()

	env    retro.EnvironmentFunc
	video  retro.VideoRefreshFunc
	sample retro.AudioSampleFunc
	batch  retro.AudioSampleBatchFunc
	poll   retro.InputPollFunc
	state  retro.InputStateFunc

	// The core may keep reading game data until unload.
	rom    []byte
	pinner runtime.Pinner
}

// active is the library the trampolines forward to.
var active atomic.Pointer[Library]

type trampolineSet struct {
	environment, video, sample, batch, poll, state uintptr
}

var (
	trampolinesOnce sync.Once
	trampolines     trampolineSet
)

// Open loads the core at path and resolves every entry point the bridge
// uses. Only one library may be open at a time.
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("failed to open core %s: %w", path, err)
	}

	lib := &Library{handle: handle, path: path}
	if err := lib.resolve(); err != nil {
		purego.Dlclose(handle)
		return nil, err
	}
	if v := lib.retroAPIVersion(); v != retro.APIVersion {
		purego.Dlclose(handle)
		return nil, fmt.Errorf("%w: %s reports %d", ErrAPIVersion, path, v)
	}
	if !active.CompareAndSwap(nil, lib) {
		purego.Dlclose(handle)
		return nil, ErrBusy
	}

	info := lib.SystemInfo()
	if info.NeedFullpath {
		log.Printf("Warning: %s needs a file path; in-memory images will be rejected", info.LibraryName)
	}
	return lib, nil
}

// resolve binds every retro_* symbol. A missing symbol is an error rather
// than a panic.
func (l *Library) resolve() error {
	symbols := []struct {
		name string
		fptr any
	}{
		{"retro_init", &l.retroInit},
		{"retro_deinit", &l.retroDeinit},
		{"retro_api_version", &l.retroAPIVersion},
		{"retro_get_system_info", &l.retroGetSystemInfo},
		{"retro_get_system_av_info", &l.retroGetSystemAVInfo},
		{"retro_set_environment", &l.retroSetEnvironment},
		{"retro_set_video_refresh", &l.retroSetVideoRefresh},
		{"retro_set_audio_sample", &l.retroSetAudioSample},
		{"retro_set_audio_sample_batch", &l.retroSetAudioSampleBatch},
		{"retro_set_input_poll", &l.retroSetInputPoll},
		{"retro_set_input_state", &l.retroSetInputState},
		{"retro_load_game", &l.retroLoadGame},
		{"retro_unload_game", &l.retroUnloadGame},
		{"retro_run", &l.retroRun},
		{"retro_reset", &l.retroReset},
	}
	for _, s := range symbols {
		sym, err := purego.Dlsym(l.handle, s.name)
		if err != nil {
			return fmt.Errorf("core %s: missing %s: %w", l.path, s.name, err)
		}
		purego.RegisterFunc(s.fptr, sym)
	}
	return nil
}

// Close releases the library. The session must have been deinitialized.
func (l *Library) Close() error {
	l.pinner.Unpin()
	l.rom = nil
	active.CompareAndSwap(l, nil)
	if err := purego.Dlclose(l.handle); err != nil {
		return fmt.Errorf("failed to close core %s: %w", l.path, err)
	}
	return nil
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

func (l *Library) SetEnvironment(cb retro.EnvironmentFunc) {
	l.env = cb
	l.retroSetEnvironment(callbacks().environment)
}

func (l *Library) SetVideoRefresh(cb retro.VideoRefreshFunc) {
	l.video = cb
	l.retroSetVideoRefresh(callbacks().video)
}

func (l *Library) SetAudioSample(cb retro.AudioSampleFunc) {
	l.sample = cb
	l.retroSetAudioSample(callbacks().sample)
}

func (l *Library) SetAudioSampleBatch(cb retro.AudioSampleBatchFunc) {
	l.batch = cb
	l.retroSetAudioSampleBatch(callbacks().batch)
}

func (l *Library) SetInputPoll(cb retro.InputPollFunc) {
	l.poll = cb
	l.retroSetInputPoll(callbacks().poll)
}

func (l *Library) SetInputState(cb retro.InputStateFunc) {
	l.state = cb
	l.retroSetInputState(callbacks().state)
}

func (l *Library) Init()   { l.retroInit() }
func (l *Library) Deinit() { l.retroDeinit() }
func (l *Library) Run()    { l.retroRun() }
func (l *Library) Reset()  { l.retroReset() }

// LoadGame copies the image and pins the copy until UnloadGame.
func (l *Library) LoadGame(game retro.GameInfo) bool {
	l.releaseROM()

	info := gameInfo{size: uintptr(len(game.Data))}
	if len(game.Data) > 0 {
		l.rom = make([]byte, len(game.Data))
		copy(l.rom, game.Data)
		l.pinner.Pin(&l.rom[0])
		info.data = unsafe.Pointer(&l.rom[0])
	}

	var path, meta []byte
	if game.Path != "" {
		path = append([]byte(game.Path), 0)
		info.path = &path[0]
	}
	if game.Meta != "" {
		meta = append([]byte(game.Meta), 0)
		info.meta = &meta[0]
	}

	var p runtime.Pinner
	defer p.Unpin()
	p.Pin(&info)
	if info.path != nil {
		p.Pin(info.path)
	}
	if info.meta != nil {
		p.Pin(info.meta)
	}

	ok := l.retroLoadGame(&info)
	if !ok {
		l.releaseROM()
	}
	return ok
}

func (l *Library) UnloadGame() {
	l.retroUnloadGame()
	l.releaseROM()
}

func (l *Library) releaseROM() {
	l.pinner.Unpin()
	l.rom = nil
}

// SystemInfo queries the core's static description.
func (l *Library) SystemInfo() retro.SystemInfo {
	var info systemInfo
	l.retroGetSystemInfo(&info)
	return info.toRetro()
}

// AVInfo queries the core's audio/video description. It is only
// meaningful after a game is loaded.
func (l *Library) AVInfo() retro.AVInfo {
	var info systemAVInfo
	l.retroGetSystemAVInfo(&info)
	return info.toRetro()
}

// APIVersion returns the core's ABI revision.
func (l *Library) APIVersion() uint {
	return uint(l.retroAPIVersion())
}

// callbacks creates the C-callable trampolines once per process. purego
// never frees callbacks, so they forward to whichever library is active.
func callbacks() *trampolineSet {
	trampolinesOnce.Do(func() {
		trampolines.environment = purego.NewCallback(func(cmd uint32, data unsafe.Pointer) bool {
			l := active.Load()
			if l == nil || l.env == nil {
				return false
			}
			return l.env(uint(cmd), data)
		})
		trampolines.video = purego.NewCallback(func(data unsafe.Pointer, width, height uint32, pitch uintptr) {
			if l := active.Load(); l != nil && l.video != nil {
				l.video(frameBytes(data, int(height), int(pitch)), int(width), int(height), int(pitch))
			}
		})
		trampolines.sample = purego.NewCallback(func(left, right int16) {
			if l := active.Load(); l != nil && l.sample != nil {
				l.sample(left, right)
			}
		})
		trampolines.batch = purego.NewCallback(func(data unsafe.Pointer, frames uintptr) uintptr {
			l := active.Load()
			if l == nil || l.batch == nil {
				return 0
			}
			return uintptr(l.batch(sampleSlice(data, int(frames)), int(frames)))
		})
		trampolines.poll = purego.NewCallback(func() {
			if l := active.Load(); l != nil && l.poll != nil {
				l.poll()
			}
		})
		trampolines.state = purego.NewCallback(func(port, device, index, id uint32) int16 {
			l := active.Load()
			if l == nil || l.state == nil {
				return 0
			}
			return l.state(uint(port), uint(device), uint(index), uint(id))
		})
	})
	return &trampolines
}
