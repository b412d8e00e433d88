package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Mavwarf/wakeup/internal/alarm"
	"github.com/Mavwarf/wakeup/internal/audio"
	"github.com/Mavwarf/wakeup/internal/config"
	"github.com/Mavwarf/wakeup/internal/cooldown"
	"github.com/Mavwarf/wakeup/internal/eventlog"
	"github.com/Mavwarf/wakeup/internal/mqtt"
	"github.com/Mavwarf/wakeup/internal/paths"
	"github.com/Mavwarf/wakeup/internal/scheduler"
	"github.com/Mavwarf/wakeup/internal/silent"
	"github.com/Mavwarf/wakeup/internal/speech"
	"github.com/Mavwarf/wakeup/internal/store"
	"github.com/Mavwarf/wakeup/internal/toast"
	"github.com/Mavwarf/wakeup/internal/webhook"
)

// app bundles the loaded config with the opened alarm collection.
type app struct {
	cfg    config.Config
	store  store.Store
	mgr    *alarm.Manager
	volume int
}

// openApp loads config, opens the configured store and reads the alarm
// collection. Any failure is fatal.
func openApp(opts globalOpts) *app {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fatal("%v", err)
	}
	s, err := store.Open(cfg.Store, paths.DataDir())
	if err != nil {
		fatal("opening store: %v", err)
	}
	mgr := alarm.NewManager(s)
	if _, err := mgr.LoadAll(); err != nil {
		s.Close()
		fatal("%v", err)
	}
	return &app{cfg: cfg, store: s, mgr: mgr, volume: resolveVolume(opts.volume, cfg)}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "wakeup: closing store: %v\n", err)
	}
}

// find resolves an id or unique id prefix, exiting on failure.
func (a *app) find(ref string) alarm.Alarm {
	al, err := a.mgr.Find(ref)
	if err != nil {
		fatal("%v", err)
	}
	return al
}

// openHistory returns the firing history, or nil when history is off.
func (a *app) openHistory() eventlog.Store {
	if !a.cfg.History {
		return nil
	}
	h, err := eventlog.Open(a.cfg.Store, paths.DataDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "wakeup: history: %v\n", err)
		return nil
	}
	return h
}

// newScheduler wires the scheduler to the platform collaborators named
// in config. The returned func releases what it opened.
func (a *app) newScheduler(onFire func(scheduler.Firing)) (*scheduler.Scheduler, func()) {
	opts := scheduler.Options{
		Interval:    a.cfg.TickInterval(),
		Notifier:    &toast.Notifier{Enabled: a.cfg.Notifications},
		Guard:       cooldown.Default(),
		Silent:      silent.ActiveAt,
		SpeechRate:  a.cfg.SpeechRate,
		SpeechPitch: a.cfg.SpeechPitch,
		OnFire:      onFire,
	}

	history := a.openHistory()
	if history != nil {
		opts.History = history
	}
	var pubs publishers
	if m := a.cfg.MQTT; m.Broker != "" {
		pubs = append(pubs, mqtt.NewPublisher(mqtt.Options{
			Broker:   m.Broker,
			ClientID: m.ClientID,
			Topic:    m.Topic,
			Username: m.Username,
			Password: m.Password,
			QoS:      m.QoS,
			Retain:   m.Retain,
		}))
	}
	if h := a.cfg.Webhook; h.URL != "" {
		pubs = append(pubs, webhookPublisher{&webhook.Publisher{URL: h.URL, Headers: h.Headers}})
	}
	if len(pubs) > 0 {
		opts.Publisher = pubs
	}

	sched := scheduler.New(a.mgr, audio.NewPlayer(a.volume), &speech.Speaker{Volume: a.volume}, opts)
	return sched, func() {
		if history != nil {
			history.Close()
		}
	}
}

// publishers fans a firing out to every configured integration.
type publishers []scheduler.Publisher

func (ps publishers) PublishFiring(e mqtt.Event) error {
	var errs []error
	for _, p := range ps {
		if err := p.PublishFiring(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// webhookPublisher posts the same event payload MQTT carries.
type webhookPublisher struct{ *webhook.Publisher }

func (w webhookPublisher) PublishFiring(e mqtt.Event) error {
	return w.Publish(e)
}

// resolveVolume returns the CLI volume if set (not -1), otherwise the
// config volume.
func resolveVolume(cliVolume int, cfg config.Config) int {
	if cliVolume >= 0 {
		return cliVolume
	}
	return cfg.Volume
}

// parseFlags splits args into positional arguments and --name value
// pairs. Every flag takes a value.
func parseFlags(args []string, known ...string) ([]string, map[string]string, error) {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	var pos []string
	flags := map[string]string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") || arg == "--" {
			pos = append(pos, arg)
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !allowed[name] {
			return nil, nil, fmt.Errorf("unknown flag --%s", name)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("--%s requires a value", name)
			}
			i++
			value = args[i]
		}
		flags[name] = value
	}
	return pos, flags, nil
}

// parseClock parses H:MM or HH:MM. Out-of-range parts are clamped.
func parseClock(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q (expected HH:MM)", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return alarm.ClampHours(h), alarm.ClampMinutes(m), nil
}

// parseSeconds parses a non-negative number of seconds, also accepting
// m:ss as printed by audio.FormatDuration.
func parseSeconds(s string) (float64, error) {
	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err1 := strconv.Atoi(m)
		secs, err2 := strconv.ParseFloat(sec, 64)
		if err1 != nil || err2 != nil || mins < 0 || secs < 0 {
			return 0, fmt.Errorf("invalid time offset %q", s)
		}
		return float64(mins)*60 + secs, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid time offset %q", s)
	}
	return v, nil
}

// parseWindow builds a trim window from --start and --end. It returns
// nil when neither is given and limit is at least audio.MaxDuration.
// A missing end runs limit seconds from the start.
func parseWindow(flags map[string]string, limit float64) (*audio.Window, error) {
	startS, hasStart := flags["start"]
	endS, hasEnd := flags["end"]
	if !hasStart && !hasEnd && limit >= audio.MaxDuration {
		return nil, nil
	}
	var w audio.Window
	var err error
	if hasStart {
		if w.Start, err = parseSeconds(startS); err != nil {
			return nil, err
		}
	}
	w.End = w.Start + limit
	if hasEnd {
		if w.End, err = parseSeconds(endS); err != nil {
			return nil, err
		}
		if w.End > w.Start+limit {
			w.End = w.Start + limit
		}
	}
	return &w, nil
}

// parseRate parses an optional --rate flag; zero keeps the source rate.
func parseRate(flags map[string]string) (int, error) {
	s, ok := flags["rate"]
	if !ok {
		return 0, nil
	}
	r, err := strconv.Atoi(s)
	if err != nil || r < 8000 || r > 192000 {
		return 0, fmt.Errorf("rate must be between 8000 and 192000 Hz")
	}
	return r, nil
}
