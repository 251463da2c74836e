package bridge

// AudioRelay turns both of the core's audio entry shapes into host
// deliveries, preserving production order.
type AudioRelay struct {
	sample func(left, right int16)
	batch  func(samples []int16) // nil unless whole-batch delivery is enabled
	count  uint64
}

func newAudioRelay(sample func(left, right int16), batch func(samples []int16)) *AudioRelay {
	return &AudioRelay{sample: sample, batch: batch}
}

// Sample delivers one stereo pair.
func (a *AudioRelay) Sample(left, right int16) {
	a.count++
	a.sample(left, right)
}

// Batch delivers interleaved stereo frames and returns how many frames it
// consumed. A frame count larger than the data holds is clamped.
func (a *AudioRelay) Batch(data []int16, frames int) int {
	if frames <= 0 {
		return 0
	}
	if frames > len(data)/2 {
		frames = len(data) / 2
	}
	if a.batch != nil {
		a.count += uint64(frames)
		a.batch(data[:frames*2])
		return frames
	}
	for i := 0; i < frames; i++ {
		a.Sample(data[i*2], data[i*2+1])
	}
	return frames
}

// Delivered returns the number of stereo pairs handed to the host.
func (a *AudioRelay) Delivered() uint64 {
	return a.count
}
