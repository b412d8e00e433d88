package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Mavwarf/wakeup/internal/alarm"
	"github.com/Mavwarf/wakeup/internal/calendar"
)

func exportCmd(args []string, opts globalOpts) {
	if len(args) > 1 {
		fatal("usage: wakeup export [file.ics]")
	}
	a := openApp(opts)
	defer a.close()

	var w io.Writer = os.Stdout
	if len(args) == 1 {
		f, err := os.Create(args[0])
		if err != nil {
			fatal("%v", err)
		}
		defer f.Close()
		w = f
	}
	if err := calendar.Export(w, a.mgr.All(), time.Now()); err != nil {
		fatal("%v", err)
	}
	if len(args) == 1 {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", args[0])
	}
}

func importCmd(args []string, opts globalOpts) {
	if len(args) != 1 {
		fatal("usage: wakeup import <file.ics>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		fatal("%v", err)
	}
	defer f.Close()

	drafts, err := calendar.Import(f)
	if err != nil {
		fatal("%v", err)
	}

	a := openApp(opts)
	defer a.close()

	for _, d := range drafts {
		applyDraftDefaults(&d, a.cfg.DefaultSound, a.cfg.DefaultLanguage)
		al, err := a.mgr.Add(d)
		warnPersistence(err)
		fmt.Printf("Added %s  %s  %s  %s\n", shortID(al.ID), al.Time(), al.Repeat, al.Label)
	}
	fmt.Printf("Imported %d alarms\n", len(drafts))
}

// applyDraftDefaults fills the fields a foreign calendar leaves empty
// from config.
func applyDraftDefaults(d *alarm.Draft, sound, language string) {
	if d.Sound == "" {
		d.Sound = sound
	}
	if d.Language == "" {
		d.Language = language
	}
}
