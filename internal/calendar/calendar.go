// Package calendar converts alarms to and from iCalendar files, so a
// schedule can be viewed in a calendar app or moved between machines.
package calendar

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/Mavwarf/wakeup/internal/alarm"
)

// ProductID identifies wakeup as the producer of exported calendars.
const ProductID = "-//Mavwarf//wakeup//EN"

// Non-standard properties carrying alarm fields iCalendar has no slot for.
const (
	propSound         = "X-WAKEUP-SOUND"
	propLanguage      = "X-WAKEUP-LANGUAGE"
	propMessageRepeat = "X-WAKEUP-MESSAGE-REPEAT"
)

// floatingFormat is an iCalendar local ("floating") date-time: the alarm
// rings at the same wall clock time in whatever zone the reader is in.
const floatingFormat = "20060102T150405"

// Export writes the enabled alarms as a VCALENDAR. Each alarm becomes a
// one-minute VEVENT starting at its next firing after from, with an RRULE
// for repeating policies and a display VALARM.
func Export(w io.Writer, alarms []alarm.Alarm, from time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	stamp := from.UTC()
	for _, a := range alarms {
		if !a.Enabled {
			continue
		}
		next, ok := alarm.Next(from, a)
		if !ok {
			continue
		}
		cal.Children = append(cal.Children, event(a, next, stamp))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

func event(a alarm.Alarm, start, stamp time.Time) *ical.Component {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, a.ID+"@wakeup")
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp)

	dtstart := ical.NewProp(ical.PropDateTimeStart)
	dtstart.Value = start.Format(floatingFormat)
	ev.Props.Set(dtstart)

	duration := ical.NewProp(ical.PropDuration)
	duration.Value = "PT1M"
	ev.Props.Set(duration)

	ev.Props.SetText(ical.PropSummary, a.Label)
	ev.Props.SetText(ical.PropDescription, a.Message)
	if rule := RRule(a.Repeat); rule != "" {
		rrule := ical.NewProp(ical.PropRecurrenceRule)
		rrule.Value = rule
		ev.Props.Set(rrule)
	}
	ev.Props.SetText(propSound, a.Sound)
	ev.Props.SetText(propLanguage, a.Language)
	ev.Props.SetText(propMessageRepeat, strconv.Itoa(a.MessageRepeat))

	valarm := ical.NewComponent(ical.CompAlarm)
	valarm.Props.SetText(ical.PropAction, "DISPLAY")
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = "PT0S"
	valarm.Props.Set(trigger)
	valarm.Props.SetText(ical.PropDescription, a.Message)
	ev.Children = append(ev.Children, valarm)

	return ev.Component
}

// RRule returns the recurrence rule for a repeat policy, empty for never.
func RRule(r alarm.Repeat) string {
	switch r {
	case alarm.Daily:
		return "FREQ=DAILY"
	case alarm.Weekdays:
		return "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"
	case alarm.Weekends:
		return "FREQ=WEEKLY;BYDAY=SA,SU"
	default:
		return ""
	}
}

// ParseRRule maps a recurrence rule back to a repeat policy. Rules that
// none of the policies express are an error.
func ParseRRule(rule string) (alarm.Repeat, error) {
	parts := map[string]string{}
	for _, kv := range strings.Split(strings.ToUpper(strings.TrimSpace(rule)), ";") {
		if k, v, ok := strings.Cut(kv, "="); ok {
			parts[k] = v
		}
	}
	if _, ok := parts["COUNT"]; ok {
		return "", fmt.Errorf("unsupported recurrence %q: COUNT", rule)
	}
	if _, ok := parts["UNTIL"]; ok {
		return "", fmt.Errorf("unsupported recurrence %q: UNTIL", rule)
	}
	if iv, ok := parts["INTERVAL"]; ok && iv != "1" {
		return "", fmt.Errorf("unsupported recurrence %q: INTERVAL", rule)
	}

	days := strings.Split(parts["BYDAY"], ",")
	sort.Strings(days)
	byday := strings.Join(days, ",")

	switch parts["FREQ"] {
	case "DAILY":
		if parts["BYDAY"] == "" {
			return alarm.Daily, nil
		}
	case "WEEKLY":
		switch byday {
		case "FR,MO,TH,TU,WE":
			return alarm.Weekdays, nil
		case "SA,SU":
			return alarm.Weekends, nil
		case "FR,MO,SA,SU,TH,TU,WE":
			return alarm.Daily, nil
		}
	}
	return "", fmt.Errorf("unsupported recurrence %q", rule)
}

// Import reads VEVENTs from r and returns one alarm draft per event.
// Events without a start time or with a recurrence no repeat policy
// matches are skipped and logged.
func Import(r io.Reader) ([]alarm.Draft, error) {
	dec := ical.NewDecoder(r)
	var drafts []alarm.Draft
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding calendar: %w", err)
		}
		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			d, err := draft(comp)
			if err != nil {
				log.Printf("calendar: skipping event: %v", err)
				continue
			}
			drafts = append(drafts, d)
		}
	}
	return drafts, nil
}

func draft(comp *ical.Component) (alarm.Draft, error) {
	var d alarm.Draft
	d.Label = text(comp, ical.PropSummary)

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return d, fmt.Errorf("%q has no start time", d.Label)
	}
	start, err := parseDateTimeProperty(startProp)
	if err != nil {
		return d, fmt.Errorf("%q: %w", d.Label, err)
	}
	d.Hours, d.Minutes = start.Hour(), start.Minute()

	d.Repeat = alarm.Never
	if rr := comp.Props.Get(ical.PropRecurrenceRule); rr != nil {
		if d.Repeat, err = ParseRRule(rr.Value); err != nil {
			return d, fmt.Errorf("%q: %w", d.Label, err)
		}
	}

	d.Message = text(comp, ical.PropDescription)
	d.Sound = text(comp, propSound)
	d.Language = text(comp, propLanguage)
	if n, err := strconv.Atoi(text(comp, propMessageRepeat)); err == nil {
		d.MessageRepeat = n
	}
	return d, nil
}

func text(comp *ical.Component, name string) string {
	s, err := comp.Props.Text(name)
	if err != nil {
		return ""
	}
	return s
}

// parseDateTimeProperty reads a start time in the local zone, falling
// back to the raw layouts some producers write.
func parseDateTimeProperty(prop *ical.Prop) (time.Time, error) {
	if t, err := prop.DateTime(time.Local); err == nil {
		return t.In(time.Local), nil
	}
	for _, layout := range []string{floatingFormat, "20060102T150405Z", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, prop.Value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse datetime value: %s", prop.Value)
}
