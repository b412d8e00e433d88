// Package speech speaks alarm messages through the platform's text to
// speech engine: espeak-ng on Linux, say on macOS, SAPI on Windows.
package speech

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Utterance is one spoken message. Rate and Pitch are multipliers of the
// engine's default (1.0 = normal). Volume is 0-100; zero means full.
type Utterance struct {
	Text     string
	Language string
	Rate     float64
	Pitch    float64
	Volume   int
}

// Speaker speaks utterances at a fixed volume.
type Speaker struct {
	Volume int
}

// Speak blocks until the utterance finishes or ctx is cancelled, which
// kills the speech process.
func (s *Speaker) Speak(ctx context.Context, u Utterance) error {
	if u.Volume == 0 {
		u.Volume = s.Volume
	}
	return Say(ctx, u)
}

// Say speaks u with the platform engine. An unsupported language falls
// back to the engine's default voice.
func Say(ctx context.Context, u Utterance) error {
	if strings.TrimSpace(u.Text) == "" {
		return nil
	}
	u = normalize(u)
	if err := say(ctx, u); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speech failed: %w", err)
	}
	return nil
}

func normalize(u Utterance) Utterance {
	if u.Rate <= 0 {
		u.Rate = 1
	}
	if u.Pitch <= 0 {
		u.Pitch = 1
	}
	if u.Volume <= 0 || u.Volume > 100 {
		u.Volume = 100
	}
	return u
}

// espeakWPM is espeak's default speaking rate in words per minute.
const espeakWPM = 175

// espeakArgs builds the espeak-ng argument list. With withVoice false the
// language is left out so espeak uses its default voice.
func espeakArgs(u Utterance, withVoice bool) []string {
	args := []string{
		"-a", strconv.Itoa(u.Volume * 2), // amplitude 0-200
		"-s", strconv.Itoa(int(math.Round(espeakWPM * u.Rate))),
		"-p", strconv.Itoa(clamp(int(math.Round(50*u.Pitch)), 0, 99)),
	}
	if withVoice && u.Language != "" {
		args = append(args, "-v", strings.ToLower(u.Language))
	}
	return append(args, "--", u.Text)
}

// sayWPM is macOS say's default rate.
const sayWPM = 175

func sayArgs(u Utterance) []string {
	return []string{
		"-r", strconv.Itoa(int(math.Round(sayWPM * u.Rate))),
		"--", fmt.Sprintf("[[volm %.2f]] %s", float64(u.Volume)/100.0, u.Text),
	}
}

// sapiRate maps a rate multiplier onto SAPI's -10..10 scale.
func sapiRate(rate float64) int {
	return clamp(int(math.Round((rate-1)*10)), -10, 10)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
