package host

import "time"

const (
	defaultFPS        = 60.0
	defaultSampleRate = 44100.0

	// Audio buffer bounds, in frames of audio, for audio-driven timing.
	minBufferedFrames = 3
	maxBufferedFrames = 6
)

// pacer decides how long the emulation goroutine sleeps after a frame:
// the wall-clock frame time, shortened when the audio buffer runs low and
// stretched when it fills up.
type pacer struct {
	frameTime time.Duration
	minBuffer int // bytes
	maxBuffer int // bytes
}

func newPacer(fps, sampleRate float64) pacer {
	if fps <= 0 {
		fps = defaultFPS
	}
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	bytesPerFrame := int(sampleRate/fps) * 4
	return pacer{
		frameTime: time.Duration(float64(time.Second) / fps),
		minBuffer: bytesPerFrame * minBufferedFrames,
		maxBuffer: bytesPerFrame * maxBufferedFrames,
	}
}

// sleep returns the pause after a frame that took elapsed. buffered is the
// queued audio in bytes, or a negative value without audio output.
func (p pacer) sleep(elapsed time.Duration, buffered int) time.Duration {
	d := p.frameTime - elapsed
	switch {
	case buffered < 0:
	case buffered < p.minBuffer:
		d = time.Duration(float64(d) * 0.9)
	case buffered > p.maxBuffer:
		d = time.Duration(float64(d) * 1.1)
	}
	if d <= time.Millisecond {
		return 0
	}
	return d
}
