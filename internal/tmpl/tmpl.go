package tmpl

import (
	"fmt"
	"strings"
	"time"
)

// Vars holds the runtime values available to alarm message templates.
type Vars struct {
	Label string
	Time  time.Time
}

// Expand replaces template placeholders in s with runtime values.
// {label} → label as-is, {Label} → title-cased, {time} → HH:MM,
// {day} → weekday name. A zero Time leaves {time} and {day} empty.
func Expand(s string, v Vars) string {
	if !strings.Contains(s, "{") {
		return s
	}
	s = strings.ReplaceAll(s, "{Label}", TitleCase(v.Label))
	s = strings.ReplaceAll(s, "{label}", v.Label)
	clock, day := "", ""
	if !v.Time.IsZero() {
		clock = Clock(v.Time.Hour(), v.Time.Minute())
		day = v.Time.Weekday().String()
	}
	s = strings.ReplaceAll(s, "{time}", clock)
	s = strings.ReplaceAll(s, "{day}", day)
	return s
}

// Clock formats an hour and minute as zero-padded HH:MM.
func Clock(hours, minutes int) string {
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// TitleCase uppercases the first byte of s.
func TitleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
