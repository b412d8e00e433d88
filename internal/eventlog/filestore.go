package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mavwarf/wakeup/internal/paths"
)

// FileStore implements Store using a flat log file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore that reads and writes the given log file.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// openLog opens (or creates) the log file for appending, creating the
// parent directory if needed.
func (f *FileStore) openLog() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), paths.DirPerm); err != nil {
		return nil, err
	}
	return os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, paths.FilePerm)
}

// writeBlock appends lines followed by a blank separator line.
func (f *FileStore) writeBlock(lines ...string) error {
	file, err := f.openLog()
	if err != nil {
		return err
	}
	defer file.Close()
	for _, l := range lines {
		if _, err := fmt.Fprintln(file, l); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(file)
	return err
}

func (f *FileStore) Log(r Record) error {
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	ts := r.Time.Format(time.RFC3339)
	lines := []string{summaryLine(ts, r)}
	if r.Message != "" {
		lines = append(lines, detailLine(ts, r.Message))
	}
	return f.writeBlock(lines...)
}

func (f *FileStore) LogSilentEnable(d time.Duration) error {
	return f.writeBlock(silentEnableLine(time.Now().Format(time.RFC3339), d))
}

func (f *FileStore) LogSilentDisable() error {
	return f.writeBlock(silentDisableLine(time.Now().Format(time.RFC3339)))
}

func (f *FileStore) Entries(days int) ([]Entry, error) {
	content, err := f.ReadContent()
	if err != nil {
		return nil, err
	}
	entries := ParseEntries(content)
	if days <= 0 {
		return entries, nil
	}

	cutoff := DayCutoff(days)
	var filtered []Entry
	for _, e := range entries {
		if !e.Time.In(cutoff.Location()).Before(cutoff) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func (f *FileStore) ReadContent() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

func (f *FileStore) Clean(days int) (int, error) {
	content, err := f.ReadContent()
	if err != nil {
		return 0, err
	}
	content = strings.TrimRight(content, "\n\r ")
	if content == "" {
		return 0, nil
	}

	orig := len(SplitBlocks(content))
	filtered := FilterBlocksByDays(content, days)
	removed := orig - len(SplitBlocks(filtered))
	return removed, f.rewrite(filtered)
}

func (f *FileStore) RemoveAlarm(id string) (int, error) {
	content, err := f.ReadContent()
	if err != nil {
		return 0, err
	}
	content = strings.TrimRight(content, "\n\r ")
	if content == "" {
		return 0, nil
	}

	filtered, removed := FilterBlocksByAlarm(content, id)
	if removed == 0 {
		return 0, nil
	}
	return removed, f.rewrite(filtered)
}

// rewrite replaces the log with the given blocks, removing the file when
// nothing is left.
func (f *FileStore) rewrite(content string) error {
	if content == "" {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return paths.AtomicWrite(f.path, []byte(content+"\n\n"))
}

func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FileStore) Path() string {
	return f.path
}

// Close is a no-op; the file is opened per write.
func (f *FileStore) Close() error {
	return nil
}
