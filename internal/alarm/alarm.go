// Package alarm holds the alarm record, its repeat policy, and the
// collection manager that persists alarms through a key/value store.
package alarm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Mavwarf/wakeup/internal/audio"
)

// Repeat is an alarm's recurrence policy.
type Repeat string

const (
	Never    Repeat = "never"
	Daily    Repeat = "daily"
	Weekdays Repeat = "weekdays"
	Weekends Repeat = "weekends"
)

// Defaults applied when a stored record omits a field.
const (
	DefaultLabel         = "Alarm"
	DefaultMessage       = "Wake up!"
	DefaultLanguage      = "en-IN"
	DefaultMessageRepeat = 1
	DefaultRepeat        = Never
	MaxMessageRepeat     = 5
)

// ParseRepeat validates a repeat policy name.
func ParseRepeat(s string) (Repeat, error) {
	switch r := Repeat(strings.ToLower(strings.TrimSpace(s))); r {
	case Never, Daily, Weekdays, Weekends:
		return r, nil
	case "":
		return DefaultRepeat, nil
	}
	return "", fmt.Errorf("unknown repeat %q (expected never, daily, weekdays or weekends)", s)
}

// Allows reports whether the policy permits firing on day.
func (r Repeat) Allows(day time.Weekday) bool {
	switch r {
	case Weekdays:
		return day >= time.Monday && day <= time.Friday
	case Weekends:
		return day == time.Saturday || day == time.Sunday
	default:
		return true
	}
}

// RepeatAllows is Repeat.Allows as a function.
func RepeatAllows(r Repeat, day time.Weekday) bool {
	return r.Allows(day)
}

// Alarm is one scheduled alarm. Records are replaced whole on update;
// nothing mutates a stored Alarm in place.
type Alarm struct {
	ID            string          `json:"id"`
	Hours         int             `json:"hours"`
	Minutes       int             `json:"minutes"`
	Label         string          `json:"label"`
	Message       string          `json:"message"`
	Sound         string          `json:"sound"`
	CustomAudio   *audio.Artifact `json:"customAudio,omitempty"`
	Repeat        Repeat          `json:"repeat"`
	Language      string          `json:"language"`
	MessageRepeat int             `json:"messageRepeat"`
	Enabled       bool            `json:"enabled"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// UnmarshalJSON sets defaults then decodes the JSON structure, so a record
// written by an older version comes back fully populated. Out-of-range
// numbers are clamped and unknown enum values fall back to defaults.
func (a *Alarm) UnmarshalJSON(data []byte) error {
	*a = Alarm{
		Label:         DefaultLabel,
		Message:       DefaultMessage,
		Sound:         audio.DefaultSound,
		Repeat:        DefaultRepeat,
		Language:      DefaultLanguage,
		MessageRepeat: DefaultMessageRepeat,
		Enabled:       true,
	}
	type Alias Alarm
	if err := json.Unmarshal(data, (*Alias)(a)); err != nil {
		return err
	}
	a.Normalize()
	return nil
}

// Normalize clamps numeric fields and replaces empty or unknown values
// with their defaults.
func (a *Alarm) Normalize() {
	a.Hours = ClampHours(a.Hours)
	a.Minutes = ClampMinutes(a.Minutes)
	a.MessageRepeat = ClampMessageRepeat(a.MessageRepeat)
	if strings.TrimSpace(a.Label) == "" {
		a.Label = DefaultLabel
	}
	if strings.TrimSpace(a.Message) == "" {
		a.Message = DefaultMessage
	}
	if !audio.IsSound(a.Sound) {
		a.Sound = audio.DefaultSound
	}
	if r, err := ParseRepeat(string(a.Repeat)); err == nil {
		a.Repeat = r
	} else {
		a.Repeat = DefaultRepeat
	}
	if strings.TrimSpace(a.Language) == "" {
		a.Language = DefaultLanguage
	}
}

// Time returns the alarm time as HH:MM.
func (a Alarm) Time() string {
	return fmt.Sprintf("%02d:%02d", a.Hours, a.Minutes)
}

// Source is the playback source of an alarm: a custom clip when one is
// attached, otherwise a built-in tone.
type Source struct {
	Artifact *audio.Artifact
	Tone     string
}

// Custom reports whether the source is an attached clip.
func (s Source) Custom() bool {
	return s.Artifact != nil
}

func (s Source) String() string {
	if s.Artifact != nil {
		if s.Artifact.Title != "" {
			return fmt.Sprintf("custom (%s, %s)", s.Artifact.Title, audio.FormatDuration(s.Artifact.Duration))
		}
		return fmt.Sprintf("custom (%s)", audio.FormatDuration(s.Artifact.Duration))
	}
	return s.Tone
}

// Source resolves the active playback source.
func (a Alarm) Source() Source {
	if a.CustomAudio != nil {
		return Source{Artifact: a.CustomAudio}
	}
	return Source{Tone: a.Sound}
}

// Matches reports whether now is the firing instant for a: second zero of
// the alarm's hour and minute on a day its repeat policy allows. It does
// not look at Enabled.
func Matches(now time.Time, a Alarm) bool {
	return now.Second() == 0 &&
		now.Hour() == a.Hours &&
		now.Minute() == a.Minutes &&
		a.Repeat.Allows(now.Weekday())
}

// Next returns the first firing instant strictly after from, or false
// when the policy allows no day (never happens for the defined policies).
func Next(from time.Time, a Alarm) (time.Time, bool) {
	day := time.Date(from.Year(), from.Month(), from.Day(), a.Hours, a.Minutes, 0, 0, from.Location())
	for i := 0; i < 8; i++ {
		at := day.AddDate(0, 0, i)
		if at.After(from) && a.Repeat.Allows(at.Weekday()) {
			return at, true
		}
	}
	return time.Time{}, false
}

// ClampHours limits h to [0, 23].
func ClampHours(h int) int {
	return clamp(h, 0, 23)
}

// ClampMinutes limits m to [0, 59].
func ClampMinutes(m int) int {
	return clamp(m, 0, 59)
}

// ClampMessageRepeat limits n to [1, MaxMessageRepeat].
func ClampMessageRepeat(n int) int {
	return clamp(n, 1, MaxMessageRepeat)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
