package audio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	otoCtx     *oto.Context
	otoOnce    sync.Once
	otoInitErr error
)

func getContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		}
		var readyChan chan struct{}
		otoCtx, readyChan, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-readyChan
		}
	})
	return otoCtx, otoInitErr
}

// Player is the playback adapter for alarm sounds. Volume is a multiplier
// from 0.0 (silent) to 1.0 (full volume). Methods block until playback
// completes; callers wanting fire-and-forget run them on a goroutine.
type Player struct {
	Volume float64
}

// NewPlayer returns a Player at the given volume (0-100).
func NewPlayer(volume int) *Player {
	return &Player{Volume: float64(volume) / 100.0}
}

// PlayTone synthesizes and plays a built-in tone.
func (p *Player) PlayTone(id string) error {
	b, err := Synthesize(id)
	if err != nil {
		return &PlaybackError{Source: id, Err: err}
	}
	return p.playBuffer(id, b)
}

// PlayArtifact decodes an encoded clip and plays it.
func (p *Player) PlayArtifact(data []byte, mimeType string) error {
	b, err := Decode(data, mimeType)
	if err != nil {
		return &PlaybackError{Source: mimeType, Err: err}
	}
	return p.playBuffer(mimeType, b)
}

// PlayFile plays an audio file from disk, picking the decoder by extension.
func (p *Player) PlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &PlaybackError{Source: path, Err: err}
	}
	b, err := Decode(data, MIMETypeForExt(filepath.Ext(path)))
	if err != nil {
		return &PlaybackError{Source: path, Err: err}
	}
	return p.playBuffer(path, b)
}

// Play plays a sound, blocking until playback completes. If name matches a
// built-in sound, plays the generated tone; otherwise treats name as an
// audio file path.
func Play(name string, volume float64) error {
	p := &Player{Volume: volume}
	if IsSound(name) {
		return p.PlayTone(name)
	}
	return p.PlayFile(name)
}

func (p *Player) playBuffer(source string, b *Buffer) error {
	pcm := toStereo16(b)
	applyVolume16(pcm, p.Volume)
	if err := playStereo16(pcm); err != nil {
		return &PlaybackError{Source: source, Err: err}
	}
	return nil
}

// toStereo16 converts a buffer to SampleRate stereo 16-bit signed LE PCM,
// the only layout the shared output context accepts. Mono is duplicated;
// channels past the second are dropped.
func toStereo16(b *Buffer) []byte {
	if b.SampleRate != SampleRate {
		b = Resample(b, SampleRate)
	}
	frames := b.Frames()
	pcm := make([]byte, frames*4)
	if b.NumChannels() == 0 {
		return pcm
	}
	left := b.Channels[0]
	right := left
	if b.NumChannels() > 1 {
		right = b.Channels[1]
	}
	for i := 0; i < frames; i++ {
		l := quantize16(left[i])
		r := quantize16(right[i])
		pcm[i*4] = byte(l)
		pcm[i*4+1] = byte(l >> 8)
		pcm[i*4+2] = byte(r)
		pcm[i*4+3] = byte(r >> 8)
	}
	return pcm
}

// applyVolume16 scales 16-bit signed little-endian PCM samples by the given volume.
func applyVolume16(data []byte, volume float64) {
	if volume >= 1.0 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(data[i]) | int16(data[i+1])<<8
		sample = int16(float64(sample) * volume)
		data[i] = byte(sample)
		data[i+1] = byte(sample >> 8)
	}
}

// playStereo16 plays 44100 Hz stereo 16-bit signed LE PCM through the shared context.
func playStereo16(pcm []byte) error {
	ctx, err := getContext()
	if err != nil {
		return fmt.Errorf("failed to initialize audio: %w", err)
	}

	player := ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()

	for player.IsPlaying() {
		time.Sleep(5 * time.Millisecond)
	}

	return player.Close()
}
