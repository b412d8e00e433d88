package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyWindow is returned when a trim window has no length after
	// clamping to the source bounds.
	ErrEmptyWindow = errors.New("audio: empty trim window")

	// ErrTooLarge is returned when an input exceeds the size or duration
	// caps checked before decoding.
	ErrTooLarge = errors.New("audio: input too large")
)

// UnsupportedFormatError reports a MIME type or container the pipeline
// does not accept.
type UnsupportedFormatError struct {
	MIMEType string
}

func (e *UnsupportedFormatError) Error() string {
	if e.MIMEType == "" {
		return "audio: unsupported format (please upload MP3, WAV, OGG or M4A)"
	}
	return fmt.Sprintf("audio: unsupported format %q (please upload MP3, WAV, OGG or M4A)", e.MIMEType)
}

// DecodeError reports corrupt, truncated, or otherwise undecodable audio.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio: decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PlaybackError wraps a failure in the output device. Callers log it;
// it never aborts an alarm trigger.
type PlaybackError struct {
	Source string
	Err    error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("audio: play %s: %v", e.Source, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
