package eventlog

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mavwarf/wakeup/internal/paths"
)

// Store abstracts firing history storage. FileStore keeps a flat log file,
// SQLiteStore a database table.
type Store interface {
	// Write
	Log(r Record) error
	LogSilentEnable(d time.Duration) error
	LogSilentDisable() error

	// Read
	Entries(days int) ([]Entry, error) // parsed entries, 0 = all
	ReadContent() (string, error)      // log text

	// Maintenance
	Clean(days int) (int, error)        // remove old entries, return removed count
	RemoveAlarm(id string) (int, error) // remove one alarm's entries
	Clear() error                       // delete all data

	// Metadata
	Path() string
	Close() error
}

// Open returns the history store of the given kind ("file" or "sqlite")
// inside dir.
func Open(kind, dir string) (Store, error) {
	switch strings.ToLower(kind) {
	case "", "file":
		return NewFileStore(filepath.Join(dir, paths.LogFileName)), nil
	case "sqlite":
		return NewSQLiteStore(filepath.Join(dir, paths.DBFileName))
	default:
		return nil, fmt.Errorf("unknown history store %q", kind)
	}
}
