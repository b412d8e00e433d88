package eventlog

import (
	"fmt"
	"time"
)

// Record describes one alarm firing.
type Record struct {
	Time     time.Time
	AlarmID  string
	Label    string
	Message  string // spoken text after template expansion
	Source   string // built-in sound id or "custom"
	Repeat   string
	Silenced bool // fired while silent mode was active
	Disarmed bool // one-shot alarm switched off by this firing
}

// summaryLine formats the first line of a firing block. The quoted label
// goes last so free text never precedes a key=value field.
func summaryLine(ts string, r Record) string {
	fired := "ok"
	if r.Silenced {
		fired = "silent"
	}
	return fmt.Sprintf("%s  alarm=%s  source=%s  repeat=%s  fired=%s  disarmed=%t  label=%q",
		ts, r.AlarmID, r.Source, r.Repeat, fired, r.Disarmed, r.Label)
}

// detailLine formats the indented message line under a firing.
func detailLine(ts, message string) string {
	return fmt.Sprintf("%s    message=%q", ts, message)
}

func silentEnableLine(ts string, d time.Duration) string {
	return fmt.Sprintf("%s  silent=enabled (%s)", ts, d)
}

func silentDisableLine(ts string) string {
	return ts + "  silent=disabled"
}
