package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// wavHeaderSize is the size of the canonical header EncodeWAV writes.
const wavHeaderSize = 44

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// streamingSize is the placeholder some writers leave in the data chunk
// length when the output isn't seekable.
const streamingSize = 0xFFFFFFFF

var errTruncated = errors.New("truncated data chunk")

// EncodeWAV serializes b as a canonical RIFF/WAVE file: PCM format code 1,
// 16-bit little-endian, 44-byte header, interleaved frame-major samples.
func EncodeWAV(b *Buffer) []byte {
	channels := b.NumChannels()
	frames := b.Frames()
	blockAlign := channels * 2
	dataLength := frames * blockAlign

	buf := make([]byte, wavHeaderSize+dataLength)

	// RIFF header
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLength))
	copy(buf[8:12], "WAVE")

	// fmt chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(b.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(b.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	// data chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLength))

	off := wavHeaderSize
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint16(buf[off:off+2], uint16(quantize16(b.Channels[c][i])))
			off += 2
		}
	}
	return buf
}

// quantize16 maps a float sample to int16 as round(clamp(s, -1, 1) * 32767).
// NaN and infinities become silence.
func quantize16(s float64) int16 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(s * 32767))
}

// LoadWAV reads a WAV file from disk and decodes it.
func LoadWAV(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if len(data) > DefaultMaxInputBytes {
		return nil, fmt.Errorf("wav: file too large (%d bytes, max %d): %w", len(data), DefaultMaxInputBytes, ErrTooLarge)
	}
	return DecodeWAV(data)
}

// DecodeWAV parses a RIFF/WAVE buffer into a sample matrix at the file's
// native rate and channel count. Supports integer PCM at 8, 16, 24 and
// 32 bits and IEEE float at 32 and 64 bits.
func DecodeWAV(data []byte) (*Buffer, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("wav: file too short")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("wav: not a WAV file")
	}

	fmtOff, fmtSize, err := findChunk(data, "fmt ")
	if err != nil {
		return nil, err
	}
	if fmtSize < 16 || fmtOff+16 > len(data) {
		return nil, fmt.Errorf("wav: fmt chunk too short")
	}

	format := binary.LittleEndian.Uint16(data[fmtOff : fmtOff+2])
	channels := int(binary.LittleEndian.Uint16(data[fmtOff+2 : fmtOff+4]))
	sampleRate := int(binary.LittleEndian.Uint32(data[fmtOff+4 : fmtOff+8]))
	bitsPerSample := binary.LittleEndian.Uint16(data[fmtOff+14 : fmtOff+16])

	if format == wavFormatExtensible {
		// The sub-format GUID starts with the real format code.
		if fmtSize < 40 || fmtOff+26 > len(data) {
			return nil, fmt.Errorf("wav: extensible fmt chunk too short")
		}
		format = binary.LittleEndian.Uint16(data[fmtOff+24 : fmtOff+26])
	}

	switch format {
	case wavFormatPCM:
		if bitsPerSample != 8 && bitsPerSample != 16 && bitsPerSample != 24 && bitsPerSample != 32 {
			return nil, fmt.Errorf("wav: unsupported bit depth %d", bitsPerSample)
		}
	case wavFormatFloat:
		if bitsPerSample != 32 && bitsPerSample != 64 {
			return nil, fmt.Errorf("wav: unsupported float bit depth %d", bitsPerSample)
		}
	default:
		return nil, fmt.Errorf("wav: unsupported format %d (only PCM and float supported)", format)
	}
	if channels < 1 {
		return nil, fmt.Errorf("wav: invalid channel count %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}

	dataOff, dataSize, err := findChunk(data, "data")
	if err != nil {
		return nil, err
	}
	switch {
	case dataSize == streamingSize || dataSize == 0:
		dataSize = len(data) - dataOff
	case dataOff+dataSize > len(data):
		return nil, fmt.Errorf("wav: %w (%d bytes declared, %d present)", errTruncated, dataSize, len(data)-dataOff)
	}
	raw := data[dataOff : dataOff+dataSize]

	bytesPerSample := int(bitsPerSample) / 8
	frameSize := bytesPerSample * channels
	numFrames := len(raw) / frameSize
	if numFrames == 0 {
		return nil, fmt.Errorf("wav: no audio data")
	}

	b := NewBuffer(channels, numFrames, sampleRate)
	for i := 0; i < numFrames; i++ {
		off := i * frameSize
		for c := 0; c < channels; c++ {
			b.Channels[c][i] = decodeSample(raw, off+c*bytesPerSample, bitsPerSample, format)
		}
	}
	return b, nil
}

// findChunk locates a RIFF chunk by its 4-byte ID and returns (dataOffset, dataSize).
func findChunk(data []byte, id string) (int, int, error) {
	off := 12 // skip RIFF header
	for off+8 <= len(data) {
		chunkID := string(data[off : off+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		if chunkID == id {
			return off + 8, chunkSize, nil
		}
		// Chunks are word-aligned.
		off += 8 + chunkSize
		if off%2 != 0 {
			off++
		}
	}
	return 0, 0, fmt.Errorf("wav: %q chunk not found", id)
}

// s16 maps a 16-bit sample into [-1, 1]. The 32767 scale inverts
// quantize16 exactly; -32768 would land just below -1 and is pinned there.
func s16(s int16) float64 {
	if s == math.MinInt16 {
		return -1
	}
	return float64(s) / 32767.0
}

// decodeSample reads one sample at the given byte offset and returns it as float64 in [-1, 1].
func decodeSample(data []byte, off int, bitsPerSample uint16, format uint16) float64 {
	if format == wavFormatFloat {
		if bitsPerSample == 64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4])))
	}
	switch bitsPerSample {
	case 8:
		// 8-bit WAV is unsigned (0-255, 128 = silence)
		return (float64(data[off]) - 128.0) / 128.0
	case 16:
		return s16(int16(data[off]) | int16(data[off+1])<<8)
	case 24:
		val := int(data[off]) | int(data[off+1])<<8 | int(data[off+2])<<16
		if val >= 1<<23 {
			val -= 1 << 24
		}
		return float64(val) / 8388608.0
	case 32:
		s := int32(binary.LittleEndian.Uint32(data[off : off+4]))
		return float64(s) / 2147483648.0
	}
	return 0
}
