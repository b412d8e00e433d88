package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// buildWAV constructs a minimal valid WAV file in memory.
func buildWAV(sampleRate uint32, bitsPerSample, channels uint16, pcmData []byte) []byte {
	return buildWAVFormat(1, sampleRate, bitsPerSample, channels, pcmData)
}

func buildWAVFormat(format uint16, sampleRate uint32, bitsPerSample, channels uint16, pcmData []byte) []byte {
	dataSize := len(pcmData)
	fmtSize := 16
	fileSize := 4 + (8 + fmtSize) + (8 + dataSize) // WAVE + fmt chunk + data chunk

	buf := make([]byte, 12+8+fmtSize+8+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(fileSize))
	copy(buf[8:12], "WAVE")

	// fmt chunk
	off := 12
	copy(buf[off:off+4], "fmt ")
	binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(fmtSize))
	binary.LittleEndian.PutUint16(buf[off+8:off+10], format)
	binary.LittleEndian.PutUint16(buf[off+10:off+12], channels)
	binary.LittleEndian.PutUint32(buf[off+12:off+16], sampleRate)
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * uint32(blockAlign)
	binary.LittleEndian.PutUint32(buf[off+16:off+20], byteRate)
	binary.LittleEndian.PutUint16(buf[off+20:off+22], blockAlign)
	binary.LittleEndian.PutUint16(buf[off+22:off+24], bitsPerSample)

	// data chunk
	off += 8 + fmtSize
	copy(buf[off:off+4], "data")
	binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(dataSize))
	copy(buf[off+8:], pcmData)

	return buf
}

func putInt16LE(b []byte, v int16) {
	binary.LittleEndian.PutUint16(b, uint16(v))
}

func writeTempWAV(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEncodeWAVHeader(t *testing.T) {
	b := NewBuffer(1, 2, 8000)
	b.Channels[0][0] = 0.5
	b.Channels[0][1] = -0.5

	got := EncodeWAV(b)
	if len(got) != 48 {
		t.Fatalf("len = %d, want 48", len(got))
	}

	checks := []struct {
		name string
		off  int
		want uint32
		size int
	}{
		{"riff size", 4, 40, 4},
		{"fmt size", 16, 16, 4},
		{"format", 20, 1, 2},
		{"channels", 22, 1, 2},
		{"rate", 24, 8000, 4},
		{"byte rate", 28, 16000, 4},
		{"block align", 32, 2, 2},
		{"bits", 34, 16, 2},
		{"data size", 40, 4, 4},
	}
	for _, c := range checks {
		var v uint32
		if c.size == 2 {
			v = uint32(binary.LittleEndian.Uint16(got[c.off:]))
		} else {
			v = binary.LittleEndian.Uint32(got[c.off:])
		}
		if v != c.want {
			t.Errorf("%s = %d, want %d", c.name, v, c.want)
		}
	}
	for off, tag := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"} {
		if string(got[off:off+4]) != tag {
			t.Errorf("bytes %d..%d = %q, want %q", off, off+4, got[off:off+4], tag)
		}
	}

	s0 := int16(binary.LittleEndian.Uint16(got[44:46]))
	s1 := int16(binary.LittleEndian.Uint16(got[46:48]))
	if s0 != 16384 || s1 != -16384 {
		t.Errorf("samples = %d, %d; want 16384, -16384", s0, s1)
	}
}

func TestEncodeWAVClampsAndSilencesNaN(t *testing.T) {
	b := NewBuffer(1, 4, 8000)
	copy(b.Channels[0], []float64{2, -2, math.NaN(), math.Inf(1)})
	got := EncodeWAV(b)
	want := []int16{32767, -32767, 0, 0}
	for i, w := range want {
		s := int16(binary.LittleEndian.Uint16(got[44+i*2:]))
		if s != w {
			t.Errorf("sample %d = %d, want %d", i, s, w)
		}
	}
}

func TestEncodeWAVInterleaves(t *testing.T) {
	b := NewBuffer(2, 2, 8000)
	b.Channels[0] = []float64{1, 0}
	b.Channels[1] = []float64{-1, 0}
	got := EncodeWAV(b)
	if len(got) != 44+8 {
		t.Fatalf("len = %d, want 52", len(got))
	}
	if s := int16(binary.LittleEndian.Uint16(got[44:])); s != 32767 {
		t.Errorf("frame 0 L = %d", s)
	}
	if s := int16(binary.LittleEndian.Uint16(got[46:])); s != -32767 {
		t.Errorf("frame 0 R = %d", s)
	}
}

func TestWAVRoundTripWithinOneLSB(t *testing.T) {
	b := NewBuffer(2, 64, 22050)
	for i := 0; i < 64; i++ {
		b.Channels[0][i] = math.Sin(float64(i) * 0.3)
		b.Channels[1][i] = 0.25 * math.Cos(float64(i)*0.1)
	}
	got, err := DecodeWAV(EncodeWAV(b))
	if err != nil {
		t.Fatal(err)
	}
	if got.SampleRate != 22050 || got.NumChannels() != 2 || got.Frames() != 64 {
		t.Fatalf("shape = %d ch x %d @ %d", got.NumChannels(), got.Frames(), got.SampleRate)
	}
	for c := range b.Channels {
		for i := range b.Channels[c] {
			if d := math.Abs(got.Channels[c][i] - b.Channels[c][i]); d > 1.0/32767 {
				t.Errorf("ch %d frame %d: diff %g exceeds 1 LSB", c, i, d)
			}
		}
	}
}

func TestWAVReencodeIsStable(t *testing.T) {
	b := NewBuffer(1, 32, 8000)
	for i := range b.Channels[0] {
		b.Channels[0][i] = math.Sin(float64(i))
	}
	first := EncodeWAV(b)
	decoded, err := DecodeWAV(first)
	if err != nil {
		t.Fatal(err)
	}
	second := EncodeWAV(decoded)
	if string(first) != string(second) {
		t.Error("decode then encode changed the bytes")
	}
}

func TestLoadWAVStereo16(t *testing.T) {
	// 4 stereo frames at 44100 Hz, 16-bit: known sample values
	pcm := make([]byte, 4*4)
	putInt16LE(pcm[0:2], 1000)
	putInt16LE(pcm[2:4], 2000)
	putInt16LE(pcm[4:6], -1000)
	putInt16LE(pcm[6:8], -2000)
	putInt16LE(pcm[12:14], 32767)
	putInt16LE(pcm[14:16], -32768)

	path := writeTempWAV(t, buildWAV(44100, 16, 2, pcm))

	got, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("LoadWAV: %v", err)
	}
	if got.Frames() != 4 || got.NumChannels() != 2 {
		t.Fatalf("shape = %d ch x %d frames, want 2 x 4", got.NumChannels(), got.Frames())
	}

	want := [][]int16{{1000, -1000, 0, 32767}, {2000, -2000, 0, -32768}}
	for c := range want {
		for i, w := range want[c] {
			s := got.Channels[c][i] * 32767
			if math.Abs(s-float64(w)) > 1 {
				t.Errorf("ch %d frame %d: got %.1f, want %d", c, i, s, w)
			}
		}
	}
}

func TestLoadWAV8Bit(t *testing.T) {
	pcm := []byte{
		128, // silence (0)
		255, // max positive
		0,   // max negative
		192, // mid positive
	}
	got, err := LoadWAV(writeTempWAV(t, buildWAV(44100, 8, 1, pcm)))
	if err != nil {
		t.Fatalf("LoadWAV: %v", err)
	}
	ch := got.Channels[0]
	if ch[0] != 0 {
		t.Errorf("sample 0 (silence) = %v, want 0", ch[0])
	}
	if ch[1] < 0.99 {
		t.Errorf("sample 1 (max positive) = %v", ch[1])
	}
	if ch[2] != -1 {
		t.Errorf("sample 2 (max negative) = %v, want -1", ch[2])
	}
	if ch[3] != 0.5 {
		t.Errorf("sample 3 = %v, want 0.5", ch[3])
	}
}

func TestDecodeWAV24Bit(t *testing.T) {
	// 0x400000 = half scale, 0xC00000 = negative half scale
	pcm := []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xC0}
	got, err := DecodeWAV(buildWAV(16000, 24, 1, pcm))
	if err != nil {
		t.Fatal(err)
	}
	if got.Channels[0][0] != 0.5 || got.Channels[0][1] != -0.5 {
		t.Errorf("samples = %v", got.Channels[0])
	}
}

func TestDecodeWAVFloat32(t *testing.T) {
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint32(pcm[0:], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(pcm[4:], math.Float32bits(-0.75))
	got, err := DecodeWAV(buildWAVFormat(3, 48000, 32, 1, pcm))
	if err != nil {
		t.Fatal(err)
	}
	if got.Channels[0][0] != 0.25 || got.Channels[0][1] != -0.75 {
		t.Errorf("samples = %v", got.Channels[0])
	}
	if got.SampleRate != 48000 {
		t.Errorf("rate = %d", got.SampleRate)
	}
}

func TestDecodeWAVStreamingSize(t *testing.T) {
	pcm := make([]byte, 8)
	data := buildWAV(8000, 16, 1, pcm)
	binary.LittleEndian.PutUint32(data[40:44], 0xFFFFFFFF)
	got, err := DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Frames() != 4 {
		t.Errorf("frames = %d, want 4", got.Frames())
	}
}

func TestDecodeWAVTruncated(t *testing.T) {
	data := buildWAV(8000, 16, 1, make([]byte, 100))
	_, err := DecodeWAV(data[:80])
	if !errors.Is(err, errTruncated) {
		t.Errorf("err = %v, want truncated", err)
	}
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	base := buildWAV(8000, 16, 1, []byte{0x00, 0x40})
	// Splice a LIST chunk with an odd size between fmt and data.
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	data := append(append(append([]byte{}, base[:36]...), list...), base[36:]...)
	got, err := DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Frames() != 1 {
		t.Errorf("frames = %d, want 1", got.Frames())
	}
}

func TestLoadWAVInvalidFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notawav.wav")
	if err := os.WriteFile(path, []byte("this is not a wav file, it's just some random text"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWAV(path); err == nil {
		t.Fatal("expected error for non-WAV file")
	}

	// Compressed WAV (format code 6 = A-law)
	compressed := buildWAV(44100, 8, 1, []byte{128, 128})
	compressed[20] = 6
	if _, err := DecodeWAV(compressed); err == nil {
		t.Fatal("expected error for compressed WAV")
	}
}

func TestDecodeWAV16BitStaysInRange(t *testing.T) {
	pcm := make([]byte, 6)
	binary.LittleEndian.PutUint16(pcm[0:], 0x8000) // -32768
	binary.LittleEndian.PutUint16(pcm[2:], 0x7FFF) // 32767
	binary.LittleEndian.PutUint16(pcm[4:], 0xC000) // -16384
	b, err := DecodeWAV(buildWAV(8000, 16, 1, pcm))
	if err != nil {
		t.Fatal(err)
	}
	got := b.Channels[0]
	if got[0] != -1 || got[1] != 1 {
		t.Errorf("extremes = %v, %v; want -1, 1", got[0], got[1])
	}
	if want := -16384.0 / 32767; got[2] != want {
		t.Errorf("mid = %v, want %v", got[2], want)
	}
	for _, s := range got {
		if s < -1 || s > 1 {
			t.Errorf("sample %v outside [-1, 1]", s)
		}
	}
}
