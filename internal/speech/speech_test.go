package speech

import (
	"context"
	"reflect"
	"testing"
)

func TestEspeakArgs(t *testing.T) {
	u := normalize(Utterance{Text: "Wake up!", Language: "en-IN", Rate: 0.9, Pitch: 1.1, Volume: 80})
	got := espeakArgs(u, true)
	want := []string{"-a", "160", "-s", "158", "-p", "55", "-v", "en-in", "--", "Wake up!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("espeakArgs = %q, want %q", got, want)
	}

	got = espeakArgs(u, false)
	for _, a := range got {
		if a == "-v" {
			t.Errorf("default-voice args should not select a voice: %q", got)
		}
	}
}

func TestEspeakArgsDashText(t *testing.T) {
	got := espeakArgs(normalize(Utterance{Text: "-v is not a flag"}), true)
	if got[len(got)-2] != "--" || got[len(got)-1] != "-v is not a flag" {
		t.Errorf("text must follow --: %q", got)
	}
}

func TestSayArgs(t *testing.T) {
	got := sayArgs(normalize(Utterance{Text: "hi", Rate: 0.9, Volume: 50}))
	want := []string{"-r", "158", "--", "[[volm 0.50]] hi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sayArgs = %q, want %q", got, want)
	}
}

func TestSAPIRate(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{1, 0},
		{0.9, -1},
		{1.5, 5},
		{5, 10},
		{0, -10},
	}
	for _, tt := range tests {
		if got := sapiRate(tt.in); got != tt.want {
			t.Errorf("sapiRate(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	u := normalize(Utterance{Text: "x"})
	if u.Rate != 1 || u.Pitch != 1 || u.Volume != 100 {
		t.Errorf("normalize = %+v", u)
	}
}

func TestSayEmptyTextIsNoop(t *testing.T) {
	if err := Say(context.Background(), Utterance{Text: "  "}); err != nil {
		t.Errorf("Say(empty) = %v", err)
	}
}

func TestSayCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Either the engine is missing or the cancelled process fails; both
	// must surface as an error rather than speaking.
	if err := Say(ctx, Utterance{Text: "should not be spoken"}); err == nil {
		t.Error("expected error with cancelled context")
	}
}
