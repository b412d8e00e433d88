// Package store provides the key/value backends alarms are persisted
// through: one JSON file per key, or a single SQLite table.
package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Mavwarf/wakeup/internal/paths"
)

// Backend names accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// Store is a key/value store. Get returns (nil, nil) for a key that was
// never written. Version returns a token that changes on every write of
// key, or "" for a missing key, without reading the value.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Version(key string) (string, error)
	Path() string
	Close() error
}

// Open returns the backend named kind rooted in dir. An empty kind selects
// the file backend.
func Open(kind, dir string) (Store, error) {
	switch strings.ToLower(kind) {
	case "", KindFile:
		return NewFileStore(filepath.Join(dir, paths.StoreDirName))
	case KindSQLite:
		return NewSQLiteStore(filepath.Join(dir, paths.DBFileName))
	}
	return nil, fmt.Errorf("unknown store %q (expected %s or %s)", kind, KindFile, KindSQLite)
}

// validKey rejects keys that could escape the store directory.
func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("store: invalid key %q", key)
	}
	return nil
}
