package audio

import "math"

// MaxDuration is the longest artifact the pipeline produces, in seconds.
const MaxDuration = 30.0

// Buffer is a PCM sample matrix: one slice of float samples in [-1, 1]
// per channel, all of equal length.
type Buffer struct {
	Channels   [][]float64
	SampleRate int
}

// NewBuffer allocates a silent buffer with the given shape.
func NewBuffer(channels, frames, sampleRate int) *Buffer {
	b := &Buffer{
		Channels:   make([][]float64, channels),
		SampleRate: sampleRate,
	}
	for i := range b.Channels {
		b.Channels[i] = make([]float64, frames)
	}
	return b
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// Frames returns the number of frames (samples per channel).
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the length of the buffer in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{
		Channels:   make([][]float64, len(b.Channels)),
		SampleRate: b.SampleRate,
	}
	for i, ch := range b.Channels {
		out.Channels[i] = append([]float64(nil), ch...)
	}
	return out
}

// Peak returns the largest absolute sample value across all channels.
func (b *Buffer) Peak() float64 {
	var peak float64
	for _, ch := range b.Channels {
		for _, s := range ch {
			if a := math.Abs(s); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// fromInterleaved splits interleaved samples into a channel matrix.
// Trailing samples that don't fill a whole frame are dropped.
func fromInterleaved(samples []float64, channels, sampleRate int) *Buffer {
	frames := len(samples) / channels
	b := NewBuffer(channels, frames, sampleRate)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			b.Channels[c][i] = samples[i*channels+c]
		}
	}
	return b
}
