package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Available reports whether an ffmpeg binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// DecodePCM pipes an encoded audio file through ffmpeg and returns
// interleaved signed 16-bit samples at the requested rate and channel
// count. A positive limit stops decoding after that much output audio.
// Returns an error if ffmpeg is not found on PATH.
func DecodePCM(ctx context.Context, data []byte, sampleRate, channels int, limit time.Duration) ([]int16, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found on PATH (required for m4a/aac input): %w", err)
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", decodeArgs(sampleRate, channels, limit)...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w\n%s", err, stderr.Bytes())
	}
	return bytesToSamples(out), nil
}

func decodeArgs(sampleRate, channels int, limit time.Duration) []string {
	args := []string{"-i", "pipe:0"}
	if limit > 0 {
		args = append(args, "-t", strconv.FormatFloat(limit.Seconds(), 'f', 3, 64))
	}
	return append(args,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-ac", fmt.Sprint(channels),
		"-loglevel", "error",
		"pipe:1",
	)
}

// bytesToSamples converts little-endian s16 bytes to samples, dropping a
// trailing odd byte.
func bytesToSamples(out []byte) []int16 {
	samples := make([]int16, len(out)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[i*2 : i*2+2]))
	}
	return samples
}
