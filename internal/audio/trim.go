package audio

import (
	"fmt"
	"math"
)

// frameEpsilon absorbs float error when a window edge was derived from
// frames/sampleRate, so re-trimming an artifact to its own length keeps
// every frame.
const frameEpsilon = 1e-6

// Window is a half-open [Start, End) range in seconds.
type Window struct {
	Start float64
	End   float64
}

// Length returns End - Start.
func (w Window) Length() float64 {
	return w.End - w.Start
}

// DefaultWindow is the window applied to uploads without an explicit
// selection: [0, min(duration, MaxDuration)).
func DefaultWindow(duration float64) Window {
	return Window{Start: 0, End: math.Min(duration, MaxDuration)}
}

// Clamp normalizes w against a source of the given duration: Start is
// raised to 0, End lowered to the source length and then to
// Start+MaxDuration. Out-of-range edges are never an error, since UI
// entered seconds are routinely a rounding step past the end.
func (w Window) Clamp(duration float64) Window {
	if w.Start < 0 || math.IsNaN(w.Start) {
		w.Start = 0
	}
	if w.End > duration || math.IsNaN(w.End) {
		w.End = duration
	}
	if w.End > w.Start+MaxDuration {
		w.End = w.Start + MaxDuration
	}
	return w
}

// Trim copies the frames covered by w into a new buffer at the same rate.
// The window is clamped first; ErrEmptyWindow is returned when nothing is
// left.
func Trim(src *Buffer, w Window) (*Buffer, error) {
	w = w.Clamp(src.Duration())
	if w.End <= w.Start {
		return nil, ErrEmptyWindow
	}

	rate := float64(src.SampleRate)
	first := int(math.Floor(w.Start*rate + frameEpsilon))
	frames := int(math.Floor(w.Length()*rate + frameEpsilon))
	if first+frames > src.Frames() {
		frames = src.Frames() - first
	}
	if frames <= 0 {
		return nil, ErrEmptyWindow
	}

	out := NewBuffer(src.NumChannels(), frames, src.SampleRate)
	for c, ch := range src.Channels {
		copy(out.Channels[c], ch[first:first+frames])
	}
	return out, nil
}

// Resample converts src to dstRate by linear interpolation. A buffer
// already at dstRate is copied unchanged.
func Resample(src *Buffer, dstRate int) *Buffer {
	if dstRate <= 0 || dstRate == src.SampleRate {
		return src.Clone()
	}
	srcFrames := src.Frames()
	ratio := float64(src.SampleRate) / float64(dstRate)
	dstFrames := int(math.Ceil(float64(srcFrames) / ratio))
	out := NewBuffer(src.NumChannels(), dstFrames, dstRate)

	for c, in := range src.Channels {
		dst := out.Channels[c]
		for i := 0; i < dstFrames; i++ {
			srcPos := float64(i) * ratio
			idx := int(srcPos)
			frac := srcPos - float64(idx)

			if idx+1 < srcFrames {
				dst[i] = in[idx]*(1-frac) + in[idx+1]*frac
			} else if idx < srcFrames {
				dst[i] = in[idx]
			}
		}
	}
	return out
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", int(seconds/60), int(math.Mod(seconds, 60)))
}
