package eventlog

import (
	"strings"
	"time"
)

// SplitBlocks splits log content on blank lines, trims whitespace from
// each block, and returns only non-empty blocks.
func SplitBlocks(content string) []string {
	raw := strings.Split(content, "\n\n")
	blocks := make([]string, 0, len(raw))
	for _, b := range raw {
		b = strings.TrimSpace(b)
		if b != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// DayCutoff returns midnight N days ago (inclusive) in the local timezone.
// For days=1 it returns today at midnight, for days=7 it returns 6 days ago, etc.
func DayCutoff(days int) time.Time {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, -(days - 1))
}

// FilterBlocksByAlarm removes all log blocks belonging to the given alarm.
// Returns the filtered content and the number of removed blocks.
func FilterBlocksByAlarm(content string, id string) (string, int) {
	var kept []string
	removed := 0
	for _, block := range SplitBlocks(content) {
		if extractField(firstLine(block), "alarm") == id {
			removed++
		} else {
			kept = append(kept, block)
		}
	}
	return strings.Join(kept, "\n\n"), removed
}

// FilterBlocksByDays returns only log blocks whose timestamp falls within
// the last N calendar days. Each block is separated by a blank line.
func FilterBlocksByDays(content string, days int) string {
	cutoff := DayCutoff(days)

	var kept []string
	for _, block := range SplitBlocks(content) {
		ts, ok := ExtractTimestamp(firstLine(block))
		if !ok {
			continue
		}
		if !ts.In(cutoff.Location()).Before(cutoff) {
			kept = append(kept, block)
		}
	}
	return strings.Join(kept, "\n\n")
}

func firstLine(block string) string {
	if idx := strings.Index(block, "\n"); idx > 0 {
		return block[:idx]
	}
	return block
}
