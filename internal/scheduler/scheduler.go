// Package scheduler fires alarms. A single evaluator goroutine, driven by
// a fixed-period ticker, picks up changes to the alarm collection and,
// when an armed alarm's minute comes up, plays its sound, speaks its
// message, shows a notification and disarms one-shot alarms.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Mavwarf/wakeup/internal/alarm"
	"github.com/Mavwarf/wakeup/internal/eventlog"
	"github.com/Mavwarf/wakeup/internal/mqtt"
	"github.com/Mavwarf/wakeup/internal/speech"
	"github.com/Mavwarf/wakeup/internal/tmpl"
)

const (
	// DefaultInterval is the tick period.
	DefaultInterval = time.Second

	// SpeechGap separates the starts of repeated message announcements.
	SpeechGap = 3 * time.Second

	// DefaultSpeechRate and DefaultSpeechPitch are used when Options
	// leaves them zero.
	DefaultSpeechRate  = 0.9
	DefaultSpeechPitch = 1.1

	// catchUp is the longest tick gap across which a skipped :00 second
	// is still evaluated. Longer gaps (host sleep) are not caught up.
	catchUp = 2 * time.Second
)

// Clock supplies time to the scheduler. NewTicker returns a channel that
// delivers the time every d and a function that stops it.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) (<-chan time.Time, func())
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Alarms is the alarm collection the scheduler reads and disarms.
type Alarms interface {
	LoadAll() ([]alarm.Alarm, error)
	All() []alarm.Alarm
	SetEnabled(id string, enabled bool) error
	Flush() error
}

// Player plays an alarm's sound.
type Player interface {
	PlayArtifact(data []byte, mimeType string) error
	PlayTone(id string) error
}

// Speaker speaks one utterance, returning early when ctx is cancelled.
type Speaker interface {
	Speak(ctx context.Context, u speech.Utterance) error
}

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(title, body string) error
}

// History records firings.
type History interface {
	Log(r eventlog.Record) error
}

// Publisher announces firings to other systems.
type Publisher interface {
	PublishFiring(e mqtt.Event) error
}

// Guard persists fired minutes across restarts.
type Guard interface {
	Seen(alarmID string, t time.Time) bool
	Mark(alarmID string, t time.Time)
}

// Options holds the optional collaborators. Nil fields are skipped.
type Options struct {
	Clock     Clock
	Interval  time.Duration
	Notifier  Notifier
	History   History
	Publisher Publisher
	Guard     Guard

	// Silent reports whether sound and speech are muted at t.
	Silent func(t time.Time) bool

	SpeechRate  float64
	SpeechPitch float64

	// OnFire runs synchronously after each firing is recorded.
	OnFire func(f Firing)

	// Logger receives playback, speech and persistence failures.
	// Nil uses log.Default().
	Logger *log.Logger
}

// Firing describes one alarm that went off during a tick.
type Firing struct {
	Alarm    alarm.Alarm // snapshot taken when it fired
	At       time.Time
	Message  string // message after template expansion
	Silenced bool
	Disarmed bool
}

// Scheduler evaluates alarms once per tick.
type Scheduler struct {
	alarms  Alarms
	player  Player
	speaker Speaker
	opts    Options
	clock   Clock
	logger  *log.Logger

	mu       sync.Mutex
	last     time.Time
	fired    map[string]time.Time // alarm id -> minute it last fired
	speechCx context.Context
	cancel   context.CancelFunc
	stop     context.CancelFunc
	done     chan struct{}

	wg sync.WaitGroup
}

// New returns a Scheduler over the alarm collection a.
func New(a Alarms, p Player, sp Speaker, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Interval <= 0 || opts.Interval > DefaultInterval {
		opts.Interval = DefaultInterval
	}
	if opts.SpeechRate <= 0 {
		opts.SpeechRate = DefaultSpeechRate
	}
	if opts.SpeechPitch <= 0 {
		opts.SpeechPitch = DefaultSpeechPitch
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Scheduler{
		alarms:  a,
		player:  p,
		speaker: sp,
		opts:    opts,
		clock:   opts.Clock,
		logger:  logger,
		fired:   make(map[string]time.Time),
	}
	s.speechCx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start runs the evaluator until ctx is cancelled or Stop is called.
// Ticks land on a fixed grid, so a slow tick does not push the next one
// later. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return
	}
	ctx, stop := context.WithCancel(ctx)
	s.stop = stop
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	ticks, stopTicker := s.clock.NewTicker(s.opts.Interval)
	go func() {
		defer close(done)
		defer stopTicker()
		s.Tick(s.clock.Now())
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticks:
				s.Tick(now)
			}
		}
	}()
}

// Stop halts the evaluator, cancels speech and waits for the evaluator
// goroutine to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	s.StopSpeaking()
}

// Wait blocks until playback, speech and notification goroutines of
// earlier firings have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// StopSpeaking cancels all pending and in-progress speech.
func (s *Scheduler) StopSpeaking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	s.speechCx, s.cancel = context.WithCancel(context.Background())
}

// Tick evaluates every armed alarm against now and fires the ones due.
// A pending failed write is retried first.
func (s *Scheduler) Tick(now time.Time) []Firing {
	if err := s.alarms.Flush(); err != nil {
		s.logger.Printf("scheduler: %v", err)
	}
	list, err := s.alarms.LoadAll()
	if err != nil {
		s.logger.Printf("scheduler: reload: %v", err)
		list = s.alarms.All()
	}

	at := s.instant(now)

	var firings []Firing
	for _, a := range list {
		if !a.Enabled || !alarm.Matches(at, a) {
			continue
		}
		if !s.claim(a.ID, at) {
			continue
		}
		firings = append(firings, s.fire(a, at, true))
	}
	return firings
}

// Fire triggers a immediately, bypassing its schedule. One-shot alarms
// are not disarmed.
func (s *Scheduler) Fire(a alarm.Alarm) Firing {
	return s.fire(a, s.clock.Now(), false)
}

// instant returns the time alarms are matched against. When the previous
// tick came shortly before a minute boundary that this tick has already
// passed, the boundary itself is used so a late tick does not skip :00.
func (s *Scheduler) instant(now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.last
	s.last = now
	if now.Second() == 0 || last.IsZero() {
		return now
	}
	boundary := now.Truncate(time.Minute)
	if last.Before(boundary) && now.Sub(last) <= catchUp {
		return boundary
	}
	return now
}

// claim records that id fires in the minute of at. It returns false when
// the alarm already fired in that minute, in this process or, through the
// guard, in an earlier one.
func (s *Scheduler) claim(id string, at time.Time) bool {
	minute := at.Truncate(time.Minute)

	s.mu.Lock()
	for k, m := range s.fired {
		if !m.Equal(minute) {
			delete(s.fired, k)
		}
	}
	if m, ok := s.fired[id]; ok && m.Equal(minute) {
		s.mu.Unlock()
		return false
	}
	s.fired[id] = minute
	s.mu.Unlock()

	if s.opts.Guard != nil {
		if s.opts.Guard.Seen(id, at) {
			return false
		}
		s.opts.Guard.Mark(id, at)
	}
	return true
}

func (s *Scheduler) fire(a alarm.Alarm, at time.Time, scheduled bool) Firing {
	f := Firing{
		Alarm:   a,
		At:      at,
		Message: tmpl.Expand(a.Message, tmpl.Vars{Label: a.Label, Time: at}),
	}
	if s.opts.Silent != nil {
		f.Silenced = s.opts.Silent(at)
	}
	src := a.Source()

	if !f.Silenced {
		s.play(src)
		s.announce(speech.Utterance{
			Text:     f.Message,
			Language: a.Language,
			Rate:     s.opts.SpeechRate,
			Pitch:    s.opts.SpeechPitch,
		}, a.MessageRepeat, at)
	}

	if s.opts.Notifier != nil {
		title, body := a.Label, f.Message
		s.spawn(func() {
			if err := s.opts.Notifier.Notify(title, body); err != nil {
				s.logger.Printf("scheduler: notify %s: %v", a.ID, err)
			}
		})
	}

	if scheduled && a.Repeat == alarm.Never {
		f.Disarmed = s.disarm(a.ID)
	}

	s.record(f, src)
	if s.opts.OnFire != nil {
		s.opts.OnFire(f)
	}
	return f
}

func (s *Scheduler) play(src alarm.Source) {
	if s.player == nil {
		return
	}
	s.spawn(func() {
		var err error
		if src.Custom() {
			err = s.player.PlayArtifact(src.Artifact.Data, src.Artifact.MIMEType)
		} else {
			err = s.player.PlayTone(src.Tone)
		}
		if err != nil {
			s.logger.Printf("scheduler: play %s: %v", src, err)
		}
	})
}

// announce speaks u times times, each start SpeechGap after the previous
// one measured from at. StopSpeaking drops the remaining repeats.
func (s *Scheduler) announce(u speech.Utterance, times int, at time.Time) {
	if s.speaker == nil || times < 1 {
		return
	}
	s.mu.Lock()
	ctx := s.speechCx
	s.mu.Unlock()

	s.spawn(func() {
		for i := 0; i < times; i++ {
			if i > 0 {
				wait := at.Add(time.Duration(i) * SpeechGap).Sub(s.clock.Now())
				if wait > 0 {
					select {
					case <-ctx.Done():
						return
					case <-s.clock.After(wait):
					}
				}
			}
			if ctx.Err() != nil {
				return
			}
			if err := s.speaker.Speak(ctx, u); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Printf("scheduler: speak: %v", err)
			}
		}
	})
}

// disarm switches a one-shot alarm off before the next tick can see it.
// A failed write keeps the change in memory for Flush to retry.
func (s *Scheduler) disarm(id string) bool {
	err := s.alarms.SetEnabled(id, false)
	if err == nil {
		return true
	}
	s.logger.Printf("scheduler: disarm %s: %v", id, err)
	var pe *alarm.PersistenceError
	return errors.As(err, &pe)
}

func (s *Scheduler) record(f Firing, src alarm.Source) {
	source := src.Tone
	if src.Custom() {
		source = "custom"
	}
	if s.opts.History != nil {
		err := s.opts.History.Log(eventlog.Record{
			Time:     f.At,
			AlarmID:  f.Alarm.ID,
			Label:    f.Alarm.Label,
			Message:  f.Message,
			Source:   source,
			Repeat:   string(f.Alarm.Repeat),
			Silenced: f.Silenced,
			Disarmed: f.Disarmed,
		})
		if err != nil {
			s.logger.Printf("scheduler: history: %v", err)
		}
	}
	if s.opts.Publisher != nil {
		e := mqtt.Event{
			AlarmID:  f.Alarm.ID,
			Label:    f.Alarm.Label,
			Message:  f.Message,
			Source:   source,
			Repeat:   string(f.Alarm.Repeat),
			Time:     f.At,
			Disarmed: f.Disarmed,
			Silenced: f.Silenced,
		}
		s.spawn(func() {
			if err := s.opts.Publisher.PublishFiring(e); err != nil {
				s.logger.Printf("scheduler: publish: %v", err)
			}
		})
	}
}

func (s *Scheduler) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}
