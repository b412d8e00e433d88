package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Mavwarf/wakeup/internal/paths"
)

// FileStore keeps each key in its own file under a directory. Keys without
// an extension are stored as JSON files. Writes are atomic (temp file +
// rename).
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, paths.DirPerm); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &FileStore{dir: filepath.Clean(dir)}, nil
}

// KeyPath returns the file backing key.
func (s *FileStore) KeyPath(key string) string {
	if filepath.Ext(key) == "" {
		key += ".json"
	}
	return filepath.Join(s.dir, key)
}

func (s *FileStore) Get(key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.KeyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) Put(key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := paths.AtomicWrite(s.KeyPath(key), value); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. A missing key is not an error.
func (s *FileStore) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.KeyPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// Version returns the modification time and size of key's file.
func (s *FileStore) Version(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	fi, err := os.Stat(s.KeyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: stat %s: %w", key, err)
	}
	return fmt.Sprintf("%d-%d", fi.ModTime().UnixNano(), fi.Size()), nil
}

func (s *FileStore) Path() string {
	return s.dir
}

func (s *FileStore) Close() error {
	return nil
}

// Watcher calls back when a key's file changes on disk, such as when a
// second wakeup process edits the alarm list. Bursts of events are
// debounced into one callback.
type Watcher struct {
	file     string
	onChange func()
	logger   *log.Logger
	watcher  *fsnotify.Watcher
	delay    time.Duration

	timerMu sync.Mutex
	timer   *time.Timer

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Watch starts watching key. onChange runs on its own goroutine after
// debounce has passed without further events.
func (s *FileStore) Watch(key string, debounce time.Duration, onChange func(), logger *log.Logger) (*Watcher, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	w := &Watcher{
		file:     filepath.Clean(s.KeyPath(key)),
		onChange: onChange,
		logger:   logger,
		watcher:  fw,
		delay:    debounce,
		done:     make(chan struct{}),
	}

	// Watch the directory: atomic writes replace the file, which drops a
	// watch placed on the file itself.
	if err := fw.Add(s.dir); err != nil {
		fw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)

		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.timerMu.Unlock()

		w.closeErr = w.watcher.Close()
		w.wg.Wait()
	})
	return w.closeErr
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("store watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule() {
	select {
	case <-w.done:
		return
	default:
	}

	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.onChange()
	})
}
