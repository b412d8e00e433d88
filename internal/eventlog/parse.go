package eventlog

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// EntryKind classifies a log entry.
type EntryKind int

const (
	KindFired EntryKind = iota
	KindSilenced
	KindOther
)

// Entry is a single parsed log entry.
type Entry struct {
	Time     time.Time
	AlarmID  string
	Label    string
	Source   string
	Kind     EntryKind
	Disarmed bool
}

// AlarmSummary holds firing counts for one alarm on one day.
type AlarmSummary struct {
	AlarmID  string
	Label    string
	Fired    int
	Silenced int
}

// DayGroup holds all summaries for a single calendar day.
type DayGroup struct {
	Date      time.Time
	Summaries []AlarmSummary
}

// ParseEntries splits log content on blank lines and parses summary lines
// into entries. Indented detail lines and malformed lines are skipped.
func ParseEntries(content string) []Entry {
	var entries []Entry
	for _, block := range SplitBlocks(content) {
		for _, line := range strings.Split(block, "\n") {
			if isDetailLine(line) {
				continue
			}
			ts, ok := ExtractTimestamp(line)
			if !ok {
				continue
			}
			id := extractField(line, "alarm")
			if id == "" {
				continue
			}

			kind := KindOther
			switch extractField(line, "fired") {
			case "ok":
				kind = KindFired
			case "silent":
				kind = KindSilenced
			}

			entries = append(entries, Entry{
				Time:     ts,
				AlarmID:  id,
				Label:    extractQuotedField(line, "label"),
				Source:   extractField(line, "source"),
				Kind:     kind,
				Disarmed: extractField(line, "disarmed") == "true",
			})
		}
	}
	return entries
}

// SummarizeByDay filters entries to the last N calendar days (local time),
// groups by date and alarm, and returns day groups sorted descending with
// summaries sorted by label. Pass days=0 to include all entries.
func SummarizeByDay(entries []Entry, days int) []DayGroup {
	now := time.Now()
	var cutoff time.Time
	if days > 0 {
		cutoff = DayCutoff(days)
	}

	type key struct {
		date string
		id   string
	}
	grouped := map[key]*AlarmSummary{}
	dates := map[string]time.Time{}

	for _, e := range entries {
		if e.Kind == KindOther {
			continue
		}
		local := e.Time.In(now.Location())
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, now.Location())
		if days > 0 && day.Before(cutoff) {
			continue
		}

		ds := day.Format("2006-01-02")
		k := key{date: ds, id: e.AlarmID}
		s, ok := grouped[k]
		if !ok {
			s = &AlarmSummary{AlarmID: e.AlarmID}
			grouped[k] = s
			dates[ds] = day
		}
		// Latest label wins.
		s.Label = e.Label
		if e.Kind == KindFired {
			s.Fired++
		} else {
			s.Silenced++
		}
	}

	dayMap := map[string]*DayGroup{}
	for k, s := range grouped {
		dg, ok := dayMap[k.date]
		if !ok {
			dg = &DayGroup{Date: dates[k.date]}
			dayMap[k.date] = dg
		}
		dg.Summaries = append(dg.Summaries, *s)
	}

	for _, dg := range dayMap {
		sort.Slice(dg.Summaries, func(i, j int) bool {
			if dg.Summaries[i].Label != dg.Summaries[j].Label {
				return dg.Summaries[i].Label < dg.Summaries[j].Label
			}
			return dg.Summaries[i].AlarmID < dg.Summaries[j].AlarmID
		})
	}

	groups := make([]DayGroup, 0, len(dayMap))
	for _, dg := range dayMap {
		groups = append(groups, *dg)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Date.After(groups[j].Date)
	})
	return groups
}

// ExtractTimestamp parses the RFC3339 timestamp at the start of a log line
// (everything before the first "  " double-space separator). Returns the
// parsed time and true on success, or zero time and false on failure.
func ExtractTimestamp(line string) (time.Time, bool) {
	tsEnd := strings.Index(line, "  ")
	if tsEnd < 0 {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, line[:tsEnd])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// isDetailLine reports whether the text after the timestamp is indented
// by four spaces.
func isDetailLine(line string) bool {
	tsEnd := strings.Index(line, "  ")
	return tsEnd >= 0 && strings.HasPrefix(line[tsEnd:], "    ")
}

// extractField returns the value after "key=" in a space-separated line.
// Returns "" if not found.
func extractField(line, key string) string {
	prefix := key + "="
	for _, field := range strings.Fields(line) {
		if strings.HasPrefix(field, prefix) {
			return field[len(prefix):]
		}
	}
	return ""
}

// extractQuotedField returns the decoded value of key="..." in line.
func extractQuotedField(line, key string) string {
	idx := strings.Index(line, "  "+key+`="`)
	if idx < 0 {
		return ""
	}
	return extractQuoted(line[idx+len(key)+3:])
}

// KindString returns a human-readable string for an EntryKind.
func KindString(k EntryKind) string {
	switch k {
	case KindFired:
		return "fired"
	case KindSilenced:
		return "silenced"
	default:
		return "other"
	}
}

// extractQuoted extracts a Go %q-encoded string from the start of s.
// It finds the matching closing quote (respecting backslash escapes),
// then uses strconv.Unquote to decode the value. Returns "" on failure.
func extractQuoted(s string) string {
	if len(s) == 0 || s[0] != '"' {
		return ""
	}
	for i := 1; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '"' {
			text, err := strconv.Unquote(s[:i+1])
			if err != nil {
				return ""
			}
			return text
		}
	}
	return ""
}
