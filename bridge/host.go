package bridge

import "runtime"

// Host is the consumer the bridge delivers frames and samples to. Both
// methods are called synchronously from inside RunFrame (or whichever entry
// point made the core produce output). Neither may keep a reference to the
// pixel slice past the call; copy it eagerly.
//
// A Host must not call Session lifecycle methods from these callbacks.
type Host interface {
	OnVideoFrame(pixels []uint16, width, height int)
	OnAudioSample(left, right int16)
}

// BatchHost is a Host that can also take a whole audio batch in one call.
// It is only used when Config.AudioBatch is set.
type BatchHost interface {
	Host
	OnAudioBatch(samples []int16)
}

// HostAttacher makes the calling thread valid for host calls. Attach is
// called once when an outer entry point begins and the returned detach is
// deferred, so it runs on every exit path.
type HostAttacher interface {
	Attach() (detach func())
}

// NoAttach is the attacher for hosts that accept calls from any goroutine.
type NoAttach struct{}

// Attach does nothing.
func (NoAttach) Attach() func() { return func() {} }

// LockedThread pins the calling goroutine to its OS thread for the length
// of the entry point. Cores that keep thread-local state, or hosts that only
// accept calls from the thread that started the call, need this.
type LockedThread struct{}

// Attach locks the OS thread until detach is called.
func (LockedThread) Attach() func() {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}
