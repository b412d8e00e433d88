package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Mavwarf/wakeup/internal/audio"
)

var trimFlags = []string{"start", "end", "rate"}

// processFile runs the upload pipeline over a file on disk.
func processFile(path string, flags map[string]string, maxDuration float64) (*audio.Artifact, error) {
	w, err := parseWindow(flags, maxDuration)
	if err != nil {
		return nil, err
	}
	rate, err := parseRate(flags)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return audio.Process(ctx, data, audio.MIMETypeForExt(filepath.Ext(path)), audio.ProcessOptions{
		Window:     w,
		TargetRate: rate,
	})
}

// describeArtifact summarizes a clip for the terminal.
func describeArtifact(art *audio.Artifact) string {
	s := fmt.Sprintf("%s, %d Hz, %d ch", audio.FormatDuration(art.Duration), art.SampleRate, art.Channels)
	if art.WasTrimmed {
		s += fmt.Sprintf(", trimmed from %s", audio.FormatDuration(art.OriginalDuration))
	}
	if art.Title != "" {
		s = fmt.Sprintf("%q ", art.Title) + s
	}
	return s
}

func attachCmd(args []string, opts globalOpts) {
	pos, flags, err := parseFlags(args, trimFlags...)
	if err != nil {
		fatal("%v", err)
	}
	if len(pos) != 2 {
		fatal("usage: wakeup attach <id> <file> [--start s] [--end s] [--rate hz]")
	}

	a := openApp(opts)
	defer a.close()
	al := a.find(pos[0])

	art, err := processFile(pos[1], flags, a.cfg.MaxDuration())
	if err != nil {
		fatal("%s: %v", pos[1], err)
	}
	al, err = a.mgr.AttachAudio(al.ID, art)
	warnPersistence(err)
	fmt.Printf("Attached %s to %s\n", describeArtifact(art), al.Label)
}

func retrimCmd(args []string, opts globalOpts) {
	pos, flags, err := parseFlags(args, trimFlags...)
	if err != nil {
		fatal("%v", err)
	}
	if len(pos) != 1 {
		fatal("usage: wakeup retrim <id> [--start s] [--end s] [--rate hz]")
	}

	a := openApp(opts)
	defer a.close()
	al := a.find(pos[0])
	if al.CustomAudio == nil {
		fatal("%s has no attached audio", al.Label)
	}

	w, err := parseWindow(flags, a.cfg.MaxDuration())
	if err != nil {
		fatal("%v", err)
	}
	if w == nil {
		dw := audio.DefaultWindow(al.CustomAudio.Duration)
		w = &dw
	}
	rate, err := parseRate(flags)
	if err != nil {
		fatal("%v", err)
	}
	art, err := audio.Retrim(al.CustomAudio, *w, rate)
	if err != nil {
		fatal("%v", err)
	}
	al, err = a.mgr.AttachAudio(al.ID, art)
	warnPersistence(err)
	fmt.Printf("Retrimmed %s: %s\n", al.Label, describeArtifact(art))
}

func detachCmd(args []string, opts globalOpts) {
	if len(args) != 1 {
		fatal("usage: wakeup detach <id>")
	}
	a := openApp(opts)
	defer a.close()

	al, err := a.mgr.DetachAudio(a.find(args[0]).ID)
	warnPersistence(err)
	fmt.Printf("%s plays %s again\n", al.Label, al.Sound)
}

func soundsCmd() {
	for _, id := range audio.SoundIDs() {
		def := audio.Sounds[id]
		length := ""
		if b, err := audio.Synthesize(id); err == nil {
			length = fmt.Sprintf("%.2fs", b.Duration())
		}
		fmt.Printf("  %-8s %-6s %s\n", id, length, def.Description)
	}
}

func playCmd(args []string, opts globalOpts) {
	if len(args) != 1 {
		fatal("usage: wakeup play <sound|file>")
	}
	volume := opts.volume
	if volume < 0 {
		volume = 100
	}
	if err := audio.Play(args[0], float64(volume)/100.0); err != nil {
		fatal("%v", err)
	}
}

func trimCmd(args []string, opts globalOpts) {
	pos, flags, err := parseFlags(args, trimFlags...)
	if err != nil {
		fatal("%v", err)
	}
	if len(pos) != 2 {
		fatal("usage: wakeup trim <in> <out.wav> [--start s] [--end s] [--rate hz]")
	}

	art, err := processFile(pos[0], flags, audio.MaxDuration)
	if err != nil {
		fatal("%s: %v", pos[0], err)
	}
	if err := os.WriteFile(pos[1], art.Data, 0644); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Wrote %s (%s)\n", pos[1], describeArtifact(art))
}
