package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mavwarf/wakeup/internal/alarm"
	"github.com/Mavwarf/wakeup/internal/audio"
)

func TestAutostartExec(t *testing.T) {
	got := autostartExec("/usr/bin/wakeup", "")
	if strings.Join(got, " ") != "/usr/bin/wakeup run" {
		t.Errorf("autostartExec = %v", got)
	}

	dir := t.TempDir()
	cfg := filepath.Join(dir, "wakeup-config.yaml")
	got = autostartExec("/usr/bin/wakeup", cfg)
	want := []string{"/usr/bin/wakeup", "--config", cfg, "run"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("autostartExec = %v, want %v", got, want)
	}
}

func TestAutostartExecMakesConfigAbsolute(t *testing.T) {
	got := autostartExec("/usr/bin/wakeup", "cfg.json")
	if len(got) != 4 || !filepath.IsAbs(got[2]) {
		t.Errorf("autostartExec = %v, want absolute config path", got)
	}
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	n, err := crlfWriter{&buf}.Write([]byte("a\nb\n"))
	if err != nil || n != 4 {
		t.Errorf("Write = %d, %v", n, err)
	}
	if buf.String() != "a\r\nb\r\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestApplyDraftDefaults(t *testing.T) {
	d := alarm.Draft{}
	applyDraftDefaults(&d, "buzz", "en-GB")
	if d.Sound != "buzz" || d.Language != "en-GB" {
		t.Errorf("draft = %+v", d)
	}

	d = alarm.Draft{Sound: "chirp", Language: "fr-FR"}
	applyDraftDefaults(&d, "buzz", "en-GB")
	if d.Sound != "chirp" || d.Language != "fr-FR" {
		t.Errorf("set fields overwritten: %+v", d)
	}
}

func TestDescribeArtifact(t *testing.T) {
	art := &audio.Artifact{Duration: 30, OriginalDuration: 225, WasTrimmed: true, SampleRate: 44100, Channels: 2, Title: "Morning"}
	want := `"Morning" 0:30, 44100 Hz, 2 ch, trimmed from 3:45`
	if got := describeArtifact(art); got != want {
		t.Errorf("describeArtifact = %q, want %q", got, want)
	}

	art = &audio.Artifact{Duration: 4, SampleRate: 8000, Channels: 1}
	if got := describeArtifact(art); got != "0:04, 8000 Hz, 1 ch" {
		t.Errorf("describeArtifact = %q", got)
	}
}
