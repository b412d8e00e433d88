package audio

import (
	"context"
	"fmt"
)

// ArtifactMIMEType is the container every artifact is encoded in.
const ArtifactMIMEType = "audio/wav"

// Artifact is a finished, encoded clip attached to an alarm. Artifacts
// are immutable: trimming again produces a new one.
type Artifact struct {
	Data             []byte  `json:"data,omitempty"`
	MIMEType         string  `json:"mimeType"`
	SampleRate       int     `json:"sampleRate"`
	Channels         int     `json:"channels"`
	Frames           int     `json:"frames"`
	Duration         float64 `json:"duration"`
	OriginalDuration float64 `json:"originalDuration"`
	WasTrimmed       bool    `json:"wasTrimmed"`
	Title            string  `json:"title,omitempty"`
}

// Samples decodes the artifact back into its canonical sample matrix.
func (a *Artifact) Samples() (*Buffer, error) {
	b, err := DecodeWAV(a.Data)
	if err != nil {
		return nil, &DecodeError{Format: FormatWAV, Err: err}
	}
	return b, nil
}

// ProcessOptions controls the upload pipeline.
type ProcessOptions struct {
	// Window selects a sub-range; nil means DefaultWindow.
	Window *Window
	// TargetRate resamples the output when non-zero.
	TargetRate int
	// Decoder overrides the default decode caps.
	Decoder *Decoder
}

// Process runs decode, trim, optional resample, and encode on an uploaded
// file. Any error leaves nothing behind; the caller attaches the returned
// artifact only on success.
func Process(ctx context.Context, data []byte, mimeType string, opts ProcessOptions) (*Artifact, error) {
	in := append([]byte(nil), data...)

	dec := opts.Decoder
	if dec == nil {
		dec = &Decoder{}
	}
	src, err := dec.Decode(ctx, in, mimeType)
	if err != nil {
		return nil, err
	}

	sourceDuration := src.Duration()
	w := DefaultWindow(sourceDuration)
	if opts.Window != nil {
		w = *opts.Window
	}

	a, err := build(src, w, opts.TargetRate, sourceDuration)
	if err != nil {
		return nil, err
	}
	a.Title = ReadTitle(in)
	return a, nil
}

// Retrim cuts a new artifact out of an existing one. The original source
// duration carries over so WasTrimmed stays meaningful across edits.
func Retrim(prev *Artifact, w Window, targetRate int) (*Artifact, error) {
	src, err := prev.Samples()
	if err != nil {
		return nil, err
	}
	original := prev.OriginalDuration
	if original <= 0 {
		original = src.Duration()
	}
	a, err := build(src, w, targetRate, original)
	if err != nil {
		return nil, err
	}
	a.Title = prev.Title
	return a, nil
}

func build(src *Buffer, w Window, targetRate int, originalDuration float64) (*Artifact, error) {
	trimmed, err := Trim(src, w)
	if err != nil {
		return nil, err
	}
	if targetRate > 0 {
		trimmed = Resample(trimmed, targetRate)
	}
	if trimmed.NumChannels() > 0xFFFF {
		return nil, fmt.Errorf("audio: too many channels (%d)", trimmed.NumChannels())
	}

	duration := trimmed.Duration()
	return &Artifact{
		Data:             EncodeWAV(trimmed),
		MIMEType:         ArtifactMIMEType,
		SampleRate:       trimmed.SampleRate,
		Channels:         trimmed.NumChannels(),
		Frames:           trimmed.Frames(),
		Duration:         duration,
		OriginalDuration: originalDuration,
		WasTrimmed:       originalDuration-duration > 1e-9,
	}, nil
}
