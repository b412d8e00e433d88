// Package silent implements a timed mute for alarm sound and speech.
// Notifications and auto-disarm are unaffected.
package silent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Mavwarf/wakeup/internal/paths"
)

type state struct {
	SilentUntil string `json:"silent_until"`
	Reason      string `json:"reason,omitempty"`
}

// ActiveAt reports whether silent mode covers the instant t. The
// scheduler asks with its own clock's time. A missing, unreadable, or
// corrupt state file is treated as "not silent" (fail-open).
func ActiveAt(t time.Time) bool {
	return activeAt(statePath(), t)
}

// SilentUntil returns the end time of silent mode and true if active,
// or zero time and false if not silent.
func SilentUntil() (time.Time, bool) {
	return silentUntil(statePath(), time.Now())
}

// Enable mutes alarms for the given duration from now.
func Enable(d time.Duration, reason string) {
	enable(statePath(), time.Now().Add(d), reason)
}

// Disable deactivates silent mode by removing the state file.
func Disable() {
	disable(statePath())
}

func activeAt(path string, now time.Time) bool {
	_, ok := silentUntil(path, now)
	return ok
}

func silentUntil(path string, now time.Time) (time.Time, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}

	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return time.Time{}, false
	}

	t, err := time.Parse(time.RFC3339, s.SilentUntil)
	if err != nil {
		return time.Time{}, false
	}

	if !now.Before(t) {
		return time.Time{}, false
	}

	return t, true
}

func enable(path string, until time.Time, reason string) {
	s := state{SilentUntil: until.Format(time.RFC3339), Reason: reason}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "silent: marshal: %v\n", err)
		return
	}
	if err := paths.AtomicWrite(path, data); err != nil {
		fmt.Fprintf(os.Stderr, "silent: write: %v\n", err)
	}
}

func disable(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "silent: remove %s: %v\n", path, err)
	}
}

func statePath() string {
	return filepath.Join(paths.DataDir(), paths.SilentFileName)
}
