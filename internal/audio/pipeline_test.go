package audio

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
)

func wavSource(seconds float64, rate int) []byte {
	return EncodeWAV(sineBuffer(seconds, rate))
}

func TestProcessShortSourceNotTrimmed(t *testing.T) {
	a, err := Process(context.Background(), wavSource(10, 8000), "audio/wav", ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if a.WasTrimmed {
		t.Error("WasTrimmed = true for a full-length selection")
	}
	if a.MIMEType != ArtifactMIMEType {
		t.Errorf("MIMEType = %q", a.MIMEType)
	}
	if a.Frames != 80000 || a.SampleRate != 8000 || a.Channels != 1 {
		t.Errorf("shape = %d frames, %d Hz, %d ch", a.Frames, a.SampleRate, a.Channels)
	}
	if math.Abs(a.Duration-10) > 1e-9 || math.Abs(a.OriginalDuration-10) > 1e-9 {
		t.Errorf("duration = %v, original = %v", a.Duration, a.OriginalDuration)
	}
	if len(a.Data) != 44+80000*2 {
		t.Errorf("len(Data) = %d", len(a.Data))
	}
}

func TestProcessLongSourceCapped(t *testing.T) {
	a, err := Process(context.Background(), wavSource(45, 8000), "audio/wav", ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !a.WasTrimmed {
		t.Error("WasTrimmed = false for a 45s source")
	}
	if math.Abs(a.Duration-MaxDuration) > 1e-9 {
		t.Errorf("duration = %v, want %v", a.Duration, MaxDuration)
	}
	if math.Abs(a.OriginalDuration-45) > 1e-9 {
		t.Errorf("original = %v, want 45", a.OriginalDuration)
	}
}

func TestProcessFullWindowBoundary(t *testing.T) {
	for _, src := range []float64{1, 29.5, 30, 31, 40} {
		w := Window{Start: 0, End: src}
		a, err := Process(context.Background(), wavSource(src, 8000), "audio/wav", ProcessOptions{Window: &w})
		if err != nil {
			t.Fatalf("%vs: %v", src, err)
		}
		if want := src > MaxDuration; a.WasTrimmed != want {
			t.Errorf("%vs: WasTrimmed = %v, want %v", src, a.WasTrimmed, want)
		}
		if a.Duration > MaxDuration+1e-9 {
			t.Errorf("%vs: duration %v exceeds cap", src, a.Duration)
		}
	}
}

func TestProcessExplicitWindow(t *testing.T) {
	w := Window{Start: 1, End: 3.5}
	a, err := Process(context.Background(), wavSource(10, 8000), "audio/wav", ProcessOptions{Window: &w})
	if err != nil {
		t.Fatal(err)
	}
	if a.Frames != 20000 {
		t.Errorf("frames = %d, want 20000", a.Frames)
	}
	if !a.WasTrimmed {
		t.Error("WasTrimmed = false for a partial window")
	}
}

func TestProcessEmptyWindow(t *testing.T) {
	w := Window{Start: 2, End: 2}
	_, err := Process(context.Background(), wavSource(5, 8000), "audio/wav", ProcessOptions{Window: &w})
	if !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("err = %v, want ErrEmptyWindow", err)
	}
}

func TestProcessResamples(t *testing.T) {
	a, err := Process(context.Background(), wavSource(2, 8000), "audio/wav", ProcessOptions{TargetRate: 16000})
	if err != nil {
		t.Fatal(err)
	}
	if a.SampleRate != 16000 || a.Frames != 32000 {
		t.Errorf("got %d frames at %d Hz, want 32000 at 16000", a.Frames, a.SampleRate)
	}
	if math.Abs(a.Duration-float64(a.Frames)/float64(a.SampleRate)) > 1e-12 {
		t.Errorf("duration %v does not match frames/rate", a.Duration)
	}
}

func TestProcessDoesNotRetainInput(t *testing.T) {
	data := wavSource(1, 8000)
	a, err := Process(context.Background(), data, "audio/wav", ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	before := append([]byte(nil), a.Data...)
	for i := range data {
		data[i] = 0
	}
	if !bytes.Equal(before, a.Data) {
		t.Error("artifact changed after the caller reused its input")
	}
}

func TestProcessRejectsUnsupportedMIME(t *testing.T) {
	for _, mt := range []string{"video/mp4", "audio/flac", "text/plain"} {
		_, err := Process(context.Background(), wavSource(1, 8000), mt, ProcessOptions{})
		var ufe *UnsupportedFormatError
		if !errors.As(err, &ufe) {
			t.Errorf("%s: err = %v, want UnsupportedFormatError", mt, err)
		}
	}
}

func TestRetrimIdempotent(t *testing.T) {
	first, err := Process(context.Background(), wavSource(45, 8000), "audio/wav", ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Retrim(first, Window{Start: 0, End: first.Duration}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("retrimming to the full artifact changed its bytes")
	}
	if second.OriginalDuration != first.OriginalDuration {
		t.Errorf("original duration = %v, want %v", second.OriginalDuration, first.OriginalDuration)
	}
	if !second.WasTrimmed {
		t.Error("WasTrimmed lost across retrim")
	}
}

func TestRetrimShortens(t *testing.T) {
	first, err := Process(context.Background(), wavSource(10, 8000), "audio/wav", ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Retrim(first, Window{Start: 2, End: 4}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if second.Frames != 16000 {
		t.Errorf("frames = %d, want 16000", second.Frames)
	}
	if !second.WasTrimmed {
		t.Error("WasTrimmed = false after shortening")
	}
	// The earlier artifact is untouched.
	if first.Frames != 80000 {
		t.Errorf("first.Frames = %d", first.Frames)
	}
}

func TestArtifactSamples(t *testing.T) {
	a, err := Process(context.Background(), wavSource(1, 8000), "audio/wav", ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := a.Samples()
	if err != nil {
		t.Fatal(err)
	}
	if b.Frames() != a.Frames || b.SampleRate != a.SampleRate {
		t.Errorf("samples shape = %d @ %d", b.Frames(), b.SampleRate)
	}

	bad := &Artifact{Data: []byte("junk")}
	var de *DecodeError
	if _, err := bad.Samples(); !errors.As(err, &de) {
		t.Errorf("err = %v, want DecodeError", err)
	}
}

func TestProcessMP3(t *testing.T) {
	data := readFixture(t, "stereo.mp3")
	a, err := Process(context.Background(), data, "audio/mpeg", ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Channels != 2 || a.SampleRate != 44100 || a.MIMEType != ArtifactMIMEType {
		t.Errorf("artifact = %d ch @ %d Hz, %s", a.Channels, a.SampleRate, a.MIMEType)
	}
	if a.WasTrimmed {
		t.Error("a 3.4 s source should not be trimmed")
	}
	if math.Abs(a.Duration-a.OriginalDuration) > 1e-9 || a.Duration < 3.4 || a.Duration > 3.5 {
		t.Errorf("duration = %v, original = %v", a.Duration, a.OriginalDuration)
	}
	if len(a.Data) != 44+a.Frames*4 {
		t.Errorf("len(Data) = %d, want %d", len(a.Data), 44+a.Frames*4)
	}
	b, err := a.Samples()
	if err != nil {
		t.Fatal(err)
	}
	if b.Frames() != a.Frames {
		t.Errorf("re-decoded frames = %d, want %d", b.Frames(), a.Frames)
	}
}

func TestProcessOGGWindow(t *testing.T) {
	a, err := Process(context.Background(), readFixture(t, "mono.ogg"), "audio/ogg",
		ProcessOptions{Window: &Window{Start: 0.25, End: 0.75}})
	if err != nil {
		t.Fatal(err)
	}
	if a.Channels != 1 || a.Frames != 22050 || !a.WasTrimmed || a.OriginalDuration != 1 {
		t.Errorf("artifact = %d ch, %d frames, trimmed %v, original %v", a.Channels, a.Frames, a.WasTrimmed, a.OriginalDuration)
	}
}
