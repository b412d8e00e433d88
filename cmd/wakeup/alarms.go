package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Mavwarf/wakeup/internal/alarm"
	"github.com/Mavwarf/wakeup/internal/audio"
	"github.com/Mavwarf/wakeup/internal/scheduler"
	"github.com/Mavwarf/wakeup/internal/speech"
	"github.com/Mavwarf/wakeup/internal/tmpl"
)

var alarmFlags = []string{"label", "message", "sound", "repeat", "language", "say"}

// warnPersistence reports a change that was applied but not saved.
// Anything else is fatal.
func warnPersistence(err error) {
	if err == nil {
		return
	}
	var pe *alarm.PersistenceError
	if errors.As(err, &pe) {
		fmt.Fprintf(os.Stderr, "Warning: %v (change kept in memory only)\n", err)
		return
	}
	fatal("%v", err)
}

func listCmd(opts globalOpts) {
	a := openApp(opts)
	defer a.close()
	renderAlarmList(os.Stdout, a.mgr.All(), time.Now())
}

// renderAlarmList prints one row per alarm with its next firing.
func renderAlarmList(w io.Writer, alarms []alarm.Alarm, now time.Time) {
	if len(alarms) == 0 {
		fmt.Fprintln(w, "No alarms. Add one with: wakeup add 07:30")
		return
	}
	fmt.Fprintf(w, "%-8s  %-5s  %-8s  %-3s  %-9s  %-16s  %s\n", "ID", "Time", "Repeat", "On", "Sound", "Next", "Label")
	for _, al := range alarms {
		on := "no"
		next := "-"
		if al.Enabled {
			on = "yes"
			if t, ok := alarm.Next(now, al); ok {
				next = t.Format("Mon 01-02 15:04")
			}
		}
		fmt.Fprintf(w, "%-8s  %-5s  %-8s  %-3s  %-9s  %-16s  %s\n",
			shortID(al.ID), al.Time(), al.Repeat, on, soundLabel(al), next, al.Label)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// soundLabel names the active playback source.
func soundLabel(al alarm.Alarm) string {
	if al.CustomAudio != nil {
		return "custom " + audio.FormatDuration(al.CustomAudio.Duration)
	}
	return al.Sound
}

func addCmd(args []string, opts globalOpts) {
	pos, flags, err := parseFlags(args, alarmFlags...)
	if err != nil {
		fatal("%v", err)
	}
	if len(pos) != 1 {
		fatal("usage: wakeup add <HH:MM> [--label text] [--message text] [--sound id] [--repeat policy] [--language tag] [--say n]")
	}

	a := openApp(opts)
	defer a.close()

	d, err := buildDraft(pos[0], flags)
	if err != nil {
		fatal("%v", err)
	}
	if d.Sound == "" {
		d.Sound = a.cfg.DefaultSound
	}
	if d.Language == "" {
		d.Language = a.cfg.DefaultLanguage
	}

	al, err := a.mgr.Add(d)
	warnPersistence(err)
	fmt.Printf("Added %s  %s  %s  %s\n", shortID(al.ID), al.Time(), al.Repeat, al.Label)
	if opts.announce {
		announce(a, al, "Alarm set for")
	}
}

// buildDraft turns the add command's arguments into a draft.
func buildDraft(clock string, flags map[string]string) (alarm.Draft, error) {
	var d alarm.Draft
	var err error
	if d.Hours, d.Minutes, err = parseClock(clock); err != nil {
		return d, err
	}
	p, err := buildPatch(flags)
	if err != nil {
		return d, err
	}
	if p.Label != nil {
		d.Label = *p.Label
	}
	if p.Message != nil {
		d.Message = *p.Message
	}
	if p.Sound != nil {
		d.Sound = *p.Sound
	}
	if p.Repeat != nil {
		d.Repeat = *p.Repeat
	}
	if p.Language != nil {
		d.Language = *p.Language
	}
	if p.MessageRepeat != nil {
		d.MessageRepeat = *p.MessageRepeat
	}
	return d, nil
}

// buildPatch validates alarm flags into a patch. Absent flags stay nil.
func buildPatch(flags map[string]string) (alarm.Patch, error) {
	var p alarm.Patch
	if v, ok := flags["time"]; ok {
		h, m, err := parseClock(v)
		if err != nil {
			return p, err
		}
		p.Hours, p.Minutes = &h, &m
	}
	if v, ok := flags["label"]; ok {
		p.Label = &v
	}
	if v, ok := flags["message"]; ok {
		p.Message = &v
	}
	if v, ok := flags["sound"]; ok {
		if !audio.IsSound(v) {
			return p, fmt.Errorf("unknown sound %q (available: %s)", v, strings.Join(audio.SoundIDs(), ", "))
		}
		p.Sound = &v
	}
	if v, ok := flags["repeat"]; ok {
		r, err := alarm.ParseRepeat(v)
		if err != nil {
			return p, err
		}
		p.Repeat = &r
	}
	if v, ok := flags["language"]; ok {
		p.Language = &v
	}
	if v, ok := flags["say"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("--say must be a number between 1 and %d", alarm.MaxMessageRepeat)
		}
		n = alarm.ClampMessageRepeat(n)
		p.MessageRepeat = &n
	}
	return p, nil
}

func editCmd(args []string, opts globalOpts) {
	pos, flags, err := parseFlags(args, append(alarmFlags, "time")...)
	if err != nil {
		fatal("%v", err)
	}
	if len(pos) != 1 {
		fatal("usage: wakeup edit <id> [--time HH:MM] [alarm flags]")
	}
	p, err := buildPatch(flags)
	if err != nil {
		fatal("%v", err)
	}

	a := openApp(opts)
	defer a.close()

	al, err := a.mgr.Update(a.find(pos[0]).ID, p)
	warnPersistence(err)
	fmt.Printf("Updated %s  %s  %s  %s\n", shortID(al.ID), al.Time(), al.Repeat, al.Label)
	if opts.announce {
		announce(a, al, "Alarm updated for")
	}
}

func deleteCmd(args []string, opts globalOpts) {
	if len(args) == 0 {
		fatal("usage: wakeup delete <id...>")
	}
	a := openApp(opts)
	defer a.close()

	ids := make([]string, 0, len(args))
	for _, ref := range args {
		ids = append(ids, a.find(ref).ID)
	}
	if len(ids) == 1 {
		warnPersistence(a.mgr.Delete(ids[0]))
		fmt.Printf("Deleted %s\n", shortID(ids[0]))
		return
	}
	n, err := a.mgr.DeleteMultiple(ids)
	warnPersistence(err)
	fmt.Printf("Deleted %d alarms\n", n)
}

func toggleCmd(args []string, opts globalOpts) {
	if len(args) != 1 {
		fatal("usage: wakeup toggle <id>")
	}
	a := openApp(opts)
	defer a.close()

	al, err := a.mgr.Toggle(a.find(args[0]).ID)
	warnPersistence(err)
	state := "disarmed"
	if al.Enabled {
		state = "armed"
	}
	fmt.Printf("%s %s (%s)\n", al.Label, state, al.Time())
}

// setEnabledCmd arms (enable) or disarms (disable) the given alarms with a
// single write.
func setEnabledCmd(args []string, opts globalOpts, enabled bool) {
	verb := enabledVerb(enabled)
	if len(args) == 0 {
		fatal("usage: wakeup %s <id...>", verb)
	}
	a := openApp(opts)
	defer a.close()

	ids := make([]string, 0, len(args))
	seen := make(map[string]bool, len(args))
	for _, ref := range args {
		id := a.find(ref).ID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	n, err := a.mgr.SetEnabledMultiple(ids, enabled)
	warnPersistence(err)
	fmt.Println(enabledSummary(enabled, n, len(ids)))
}

func enabledVerb(enabled bool) string {
	if enabled {
		return "enable"
	}
	return "disable"
}

func enabledSummary(enabled bool, changed, requested int) string {
	state := "Disarmed"
	if enabled {
		state = "Armed"
	}
	noun := "alarms"
	if changed == 1 {
		noun = "alarm"
	}
	if unchanged := requested - changed; unchanged > 0 {
		return fmt.Sprintf("%s %d %s (%d already %s)", state, changed, noun, unchanged, strings.ToLower(state))
	}
	return fmt.Sprintf("%s %d %s", state, changed, noun)
}

func fireCmd(args []string, opts globalOpts) {
	if len(args) != 1 {
		fatal("usage: wakeup fire <id>")
	}
	a := openApp(opts)
	defer a.close()

	al := a.find(args[0])
	sched, release := a.newScheduler(nil)
	defer release()

	f := sched.Fire(al)
	printFiring(os.Stdout, f)
	sched.Wait()
}

// printFiring writes one line describing a firing.
func printFiring(w io.Writer, f scheduler.Firing) {
	var notes []string
	if f.Silenced {
		notes = append(notes, "silenced")
	}
	if f.Disarmed {
		notes = append(notes, "disarmed")
	}
	suffix := ""
	if len(notes) > 0 {
		suffix = " (" + strings.Join(notes, ", ") + ")"
	}
	fmt.Fprintf(w, "%s  %s: %s%s\n", f.At.Format("15:04:05"), f.Alarm.Label, f.Message, suffix)
}

// announceText is the confirmation spoken after add or edit.
func announceText(prefix string, al alarm.Alarm) string {
	return prefix + " " + tmpl.Clock(al.Hours, al.Minutes)
}

func announce(a *app, al alarm.Alarm, prefix string) {
	u := speech.Utterance{
		Text:     announceText(prefix, al),
		Language: al.Language,
		Rate:     a.cfg.SpeechRate,
		Pitch:    a.cfg.SpeechPitch,
		Volume:   a.volume,
	}
	if err := speech.Say(context.Background(), u); err != nil {
		fmt.Fprintf(os.Stderr, "wakeup: announce: %v\n", err)
	}
}
