package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	mp3frames "github.com/tcolgate/mp3"

	"github.com/Mavwarf/wakeup/internal/ffmpeg"
)

const (
	// DefaultMaxInputBytes caps the encoded input size (50 MB).
	DefaultMaxInputBytes = 50 * 1024 * 1024

	// DefaultMaxSourceDuration caps how long a source may be before it is
	// decoded, for containers where the length can be read cheaply.
	DefaultMaxSourceDuration = 15 * time.Minute
)

// Decoder turns encoded audio into a sample matrix. The zero value uses
// the default caps.
type Decoder struct {
	MaxInputBytes     int
	MaxSourceDuration time.Duration
}

// Decode decodes data with the default Decoder.
func Decode(data []byte, mimeType string) (*Buffer, error) {
	var d Decoder
	return d.Decode(context.Background(), data, mimeType)
}

// Decode validates the declared type, applies the size caps, and decodes
// data into a fresh Buffer. The input slice is never retained.
func (d *Decoder) Decode(ctx context.Context, data []byte, mimeType string) (*Buffer, error) {
	format, err := ResolveFormat(data, mimeType)
	if err != nil {
		return nil, err
	}

	maxBytes := d.MaxInputBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxInputBytes
	}
	if len(data) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrTooLarge, len(data), maxBytes)
	}
	if len(data) == 0 {
		return nil, &DecodeError{Format: format, Err: errors.New("empty input")}
	}

	maxDur := d.MaxSourceDuration
	if maxDur <= 0 {
		maxDur = DefaultMaxSourceDuration
	}

	var b *Buffer
	switch format {
	case FormatWAV:
		b, err = DecodeWAV(data)
	case FormatMP3:
		info, scanErr := scanMP3(data)
		if scanErr == nil && info.duration > maxDur {
			return nil, tooLong(info.duration, maxDur)
		}
		b, err = decodeMP3(data, info.channels)
	case FormatOGG:
		b, err = decodeOGG(data, maxDur)
	case FormatM4A:
		b, err = decodeM4A(ctx, data, maxDur)
	default:
		return nil, &UnsupportedFormatError{MIMEType: mimeType}
	}
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, &DecodeError{Format: format, Err: err}
	}
	if b.Frames() == 0 {
		return nil, &DecodeError{Format: format, Err: errors.New("no audio frames")}
	}
	return b, nil
}

func tooLong(d, max time.Duration) error {
	return fmt.Errorf("%w: %s long, max %s", ErrTooLarge, d.Round(time.Second), max)
}

type mp3Info struct {
	duration time.Duration
	channels int
}

// scanMP3 sums frame durations from the MPEG headers without decoding
// any audio. A truncated final frame ends the scan.
func scanMP3(data []byte) (mp3Info, error) {
	dec := mp3frames.NewDecoder(bytes.NewReader(data))
	var frame mp3frames.Frame
	var skipped int
	info := mp3Info{channels: 2}
	for n := 0; ; n++ {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return info, err
		}
		if n == 0 && frame.Header().ChannelMode() == mp3frames.SingleChannel {
			info.channels = 1
		}
		info.duration += frame.Duration()
	}
	return info, nil
}

// decodeMP3 decodes MPEG-1/2 Layer III. go-mp3 always yields 16-bit
// little-endian stereo at the stream's rate, duplicating mono streams
// into both channels; those are collapsed back to one.
func decodeMP3(data []byte, channels int) (*Buffer, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	b := fromS16LE(pcm, 2, dec.SampleRate())
	if channels == 1 {
		b.Channels = b.Channels[:1]
	}
	return b, nil
}

// decodeOGG decodes an Ogg Vorbis stream. The length is read from the
// last page's granule position before anything is decoded.
func decodeOGG(data []byte, maxDur time.Duration) (*Buffer, error) {
	length, format, err := oggvorbis.GetLength(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if format.SampleRate > 0 {
		if d := time.Duration(length) * time.Second / time.Duration(format.SampleRate); d > maxDur {
			return nil, tooLong(d, maxDur)
		}
	}

	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if format.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", format.Channels)
	}
	interleaved := make([]float64, len(samples))
	for i, s := range samples {
		interleaved[i] = float64(s)
	}
	return fromInterleaved(interleaved, format.Channels, format.SampleRate), nil
}

// decodeM4A hands AAC/MP4 audio to ffmpeg, which resamples to stereo at
// SampleRate. ffmpeg stops one second past maxDur, so a source that fills
// the whole allowance is too long and nothing more was decoded.
func decodeM4A(ctx context.Context, data []byte, maxDur time.Duration) (*Buffer, error) {
	samples, err := ffmpeg.DecodePCM(ctx, data, SampleRate, 2, maxDur+time.Second)
	if err != nil {
		return nil, err
	}
	interleaved := make([]float64, len(samples))
	for i, s := range samples {
		interleaved[i] = s16(s)
	}
	b := fromInterleaved(interleaved, 2, SampleRate)
	if d := time.Duration(b.Duration() * float64(time.Second)); d > maxDur {
		return nil, tooLong(d, maxDur)
	}
	return b, nil
}

// fromS16LE converts interleaved 16-bit little-endian PCM bytes.
func fromS16LE(pcm []byte, channels, sampleRate int) *Buffer {
	n := len(pcm) / 2
	interleaved := make([]float64, n)
	for i := 0; i < n; i++ {
		interleaved[i] = s16(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
	}
	return fromInterleaved(interleaved, channels, sampleRate)
}
