// Package cooldown persists which alarm minutes have already fired, so a
// daemon restarted inside a firing minute does not ring the same alarm
// twice.
package cooldown

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Mavwarf/wakeup/internal/paths"
)

// retention is how long fired entries are kept before pruning.
const retention = 24 * time.Hour

// Guard is a file-backed set of (alarm, minute) pairs. A missing or
// unreadable state file is treated as "never fired" (fail-open). The zero
// path disables persistence.
type Guard struct {
	path string
	mu   sync.Mutex
}

// New returns a Guard backed by the file at path.
func New(path string) *Guard {
	return &Guard{path: path}
}

// Default returns a Guard backed by the fired-state file in the data dir.
func Default() *Guard {
	return New(filepath.Join(paths.DataDir(), paths.FiredFileName))
}

// Seen reports whether alarmID already fired in the minute containing t.
func (g *Guard) Seen(alarmID string, t time.Time) bool {
	if g == nil || g.path == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return check(g.path, paths.FiredKey(alarmID, t))
}

// Mark records that alarmID fired in the minute containing t. Errors are
// printed to stderr but never fatal (best-effort).
func (g *Guard) Mark(alarmID string, t time.Time) {
	if g == nil || g.path == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	record(g.path, paths.FiredKey(alarmID, t), t)
}

func check(path, key string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false // missing or unreadable → allow
	}

	var state map[string]string
	if err := json.Unmarshal(data, &state); err != nil {
		return false // corrupt → allow
	}

	_, ok := state[key]
	return ok
}

func record(path, key string, now time.Time) {
	// Load existing state.
	state := make(map[string]string)
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &state) // ignore corrupt; overwrite
	}

	// Prune expired entries.
	for k, v := range state {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil || now.Sub(t) > retention {
			delete(state, k)
		}
	}

	state[key] = now.Format(time.RFC3339)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "cooldown: marshal: %v\n", err)
		return
	}
	if err := paths.AtomicWrite(path, data); err != nil {
		fmt.Fprintf(os.Stderr, "cooldown: write %s: %v\n", path, err)
	}
}
