package audio

import (
	"fmt"
	"math"
	"time"
)

// SampleRate is the rate tones are synthesized at and the rate of the
// output device.
const SampleRate = 44100

// DefaultSound is the built-in tone used when an alarm names none.
const DefaultSound = "bell"

// Waveform selects the oscillator shape of a tone segment.
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
)

// ToneSegment is one oscillator burst. Frequency ramps linearly from
// StartFreq to EndFreq and gain decays exponentially from Gain to
// FloorGain over Duration.
type ToneSegment struct {
	Offset    time.Duration
	Duration  time.Duration
	StartFreq float64
	EndFreq   float64
	Waveform  Waveform
	Gain      float64
	FloorGain float64
}

// SoundDefinition describes a named sound composed of one or more tone segments.
type SoundDefinition struct {
	ID          string
	Name        string
	Description string
	Segments    []ToneSegment
}

// soundOrder is the catalog order shown to users.
var soundOrder = []string{"bell", "chirp", "digital", "buzz"}

// Sounds is the registry of built-in alarm tones.
var Sounds = map[string]SoundDefinition{
	"bell": {
		ID:          "bell",
		Name:        "Bell",
		Description: "Three descending sine strikes",
		Segments:    repeatSegments(3, 300*time.Millisecond, []float64{1000, 900, 800}, nil, Sine, 0.3),
	},
	"chirp": {
		ID:          "chirp",
		Name:        "Chirp",
		Description: "Four rising sweeps from 600 to 1200 Hz",
		Segments:    repeatSegments(4, 150*time.Millisecond, []float64{600}, []float64{1200}, Sine, 0.3),
	},
	"digital": {
		ID:          "digital",
		Name:        "Digital",
		Description: "Alternating 700/900 Hz square pulses",
		Segments:    repeatSegments(4, 200*time.Millisecond, []float64{700, 900}, nil, Square, 0.2),
	},
	"buzz": {
		ID:          "buzz",
		Name:        "Buzzer",
		Description: "One second 400 Hz sawtooth decay",
		Segments: []ToneSegment{
			{Duration: time.Second, StartFreq: 400, EndFreq: 400, Waveform: Sawtooth, Gain: 0.3, FloorGain: 0.01},
		},
	},
}

// repeatSegments lays out n back-to-back segments of length step, cycling
// through the given start (and optional end) frequencies.
func repeatSegments(n int, step time.Duration, start, end []float64, wave Waveform, gain float64) []ToneSegment {
	segs := make([]ToneSegment, n)
	for i := range segs {
		f0 := start[i%len(start)]
		f1 := f0
		if len(end) > 0 {
			f1 = end[i%len(end)]
		}
		segs[i] = ToneSegment{
			Offset:    time.Duration(i) * step,
			Duration:  step,
			StartFreq: f0,
			EndFreq:   f1,
			Waveform:  wave,
			Gain:      gain,
			FloorGain: 0.01,
		}
	}
	return segs
}

// SoundIDs returns the built-in tone ids in catalog order.
func SoundIDs() []string {
	return append([]string(nil), soundOrder...)
}

// IsSound reports whether id names a built-in tone.
func IsSound(id string) bool {
	_, ok := Sounds[id]
	return ok
}

// Synthesize renders a built-in tone as a mono buffer at SampleRate.
func Synthesize(id string) (*Buffer, error) {
	def, ok := Sounds[id]
	if !ok {
		return nil, fmt.Errorf("unknown sound %q", id)
	}
	return Generate(def, SampleRate), nil
}

// Generate renders def as a mono buffer. Segments are mixed additively at
// their offsets; the buffer ends where the last segment does.
func Generate(def SoundDefinition, rate int) *Buffer {
	total := 0
	for _, seg := range def.Segments {
		if end := frameAt(seg.Offset+seg.Duration, rate); end > total {
			total = end
		}
	}
	b := NewBuffer(1, total, rate)
	out := b.Channels[0]

	for _, seg := range def.Segments {
		first := frameAt(seg.Offset, rate)
		n := frameAt(seg.Offset+seg.Duration, rate) - first
		renderSegment(out[first:first+n], seg, rate)
	}
	return b
}

// frameAt converts a time offset to a frame index.
func frameAt(d time.Duration, rate int) int {
	return int(math.Round(d.Seconds() * float64(rate)))
}

// renderSegment adds one oscillator burst into dst. Phase is accumulated
// sample by sample so frequency sweeps stay continuous.
func renderSegment(dst []float64, seg ToneSegment, rate int) {
	n := len(dst)
	if n == 0 || seg.Gain <= 0 {
		return
	}
	floor := seg.FloorGain
	if floor <= 0 {
		floor = 0.01
	}
	var phase float64
	for i := 0; i < n; i++ {
		progress := float64(i) / float64(n)
		freq := seg.StartFreq + (seg.EndFreq-seg.StartFreq)*progress
		gain := seg.Gain * math.Pow(floor/seg.Gain, progress)

		dst[i] += oscillator(seg.Waveform, phase) * gain

		phase += 2 * math.Pi * freq / float64(rate)
		if phase >= 2*math.Pi {
			phase -= 2 * math.Pi
		}
	}
}

func oscillator(w Waveform, phase float64) float64 {
	switch w {
	case Square:
		if phase < math.Pi {
			return 1
		}
		return -1
	case Sawtooth:
		return phase/math.Pi - 1
	default:
		return math.Sin(phase)
	}
}
