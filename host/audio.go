package host

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ringCapacity holds roughly 185ms of 44.1kHz stereo 16-bit audio.
const ringCapacity = 32768

// audioPlayer feeds interleaved int16 stereo samples to oto.
type audioPlayer struct {
	player  *oto.Player
	ring    *ringBuffer
	scratch []byte
}

// oto allows one context per process.
var (
	otoCtx      *oto.Context
	otoInitOnce sync.Once
	otoInitErr  error
	otoRate     int
)

func ensureOtoContext(sampleRate int) (*oto.Context, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		<-ready
		otoRate = sampleRate
	})
	if otoInitErr == nil && otoRate != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz", otoRate)
	}
	return otoCtx, otoInitErr
}

// newAudioPlayer starts playback at sampleRate. Volume is applied before
// Play so a muted session never pops.
func newAudioPlayer(sampleRate int, volume float64) (*audioPlayer, error) {
	ctx, err := ensureOtoContext(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("oto audio not available: %w", err)
	}

	ring := newRingBuffer(ringCapacity)
	player := ctx.NewPlayer(ring)
	// About 50ms; the default half second lets the pacing over-correct.
	player.SetBufferSize(sampleRate / 20 * 4)
	player.SetVolume(clampVolume(volume))
	player.Play()

	return &audioPlayer{
		player:  player,
		ring:    ring,
		scratch: make([]byte, 0, 4096),
	}, nil
}

// Queue converts samples to little-endian bytes and queues them.
func (a *audioPlayer) Queue(samples []int16) {
	if len(samples) == 0 {
		return
	}
	a.scratch = appendSamplesLE(a.scratch[:0], samples)
	a.ring.Write(a.scratch)
}

// Buffered returns bytes waiting in the ring plus oto's own buffer.
func (a *audioPlayer) Buffered() int {
	return a.ring.Buffered() + a.player.BufferedSize()
}

// Clear drops queued audio.
func (a *audioPlayer) Clear() {
	a.ring.Clear()
}

func (a *audioPlayer) Close() {
	a.ring.Close()
	a.player.Close()
}

func appendSamplesLE(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = append(dst, byte(s), byte(s>>8))
	}
	return dst
}

func clampVolume(v float64) float64 {
	return max(0, min(v, 2.0))
}
