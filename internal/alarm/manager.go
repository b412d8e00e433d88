package alarm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mavwarf/wakeup/internal/audio"
)

// CollectionKey is the store key the alarm collection lives under.
const CollectionKey = "alarms"

// ClipKey is the store key an alarm's custom clip lives under. The
// collection keeps only the clip's metadata, so it stays small enough to
// check on every tick.
func ClipKey(id string) string {
	return "clip-" + id + ".wav"
}

// ErrNotFound is returned for an id that names no alarm.
var ErrNotFound = errors.New("alarm not found")

// Store is the key/value contract the collection is persisted through.
// Get returns (nil, nil) for a key that was never written.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// Versioner is implemented by stores that report, without reading the
// value, a token that changes whenever key is written. LoadAll skips the
// read while the collection's token is unchanged.
type Versioner interface {
	Version(key string) (string, error)
}

// Deleter is implemented by stores that can drop a key. Clips of deleted
// or detached alarms are removed through it.
type Deleter interface {
	Delete(key string) error
}

// PersistenceError reports a failed read or write of the collection. A
// failed write leaves the change applied in memory; Flush retries it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("alarm: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Draft is the user input for a new alarm.
type Draft struct {
	Hours         int
	Minutes       int
	Label         string
	Message       string
	Sound         string
	Repeat        Repeat
	Language      string
	MessageRepeat int
	CustomAudio   *audio.Artifact
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Hours         *int
	Minutes       *int
	Label         *string
	Message       *string
	Sound         *string
	Repeat        *Repeat
	Language      *string
	MessageRepeat *int
	Enabled       *bool
}

// Manager owns the in-memory alarm list and writes the whole collection
// to the store on every mutation. Custom clips are written under their own
// keys, only when they change. It is safe for concurrent use.
type Manager struct {
	store Store
	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	alarms []Alarm
	dirty  bool

	loaded  bool   // alarms mirrors the stored collection at version
	version string // collection version last read or written

	clipVersions map[string]string // alarm id -> clip version last read or written
	clipsDirty   map[string]bool   // clips waiting to be written
	clipsStale   map[string]bool   // clips no alarm refers to any more
}

// NewManager returns a Manager over s. Call LoadAll to read the stored
// collection.
func NewManager(s Store) *Manager {
	return &Manager{
		store: s,
		now:   time.Now,
		newID: uuid.NewString,

		clipVersions: make(map[string]string),
		clipsDirty:   make(map[string]bool),
		clipsStale:   make(map[string]bool),
	}
}

// LoadAll reads the collection from the store, replacing the in-memory
// list. Missing optional fields come back with their defaults. While an
// unsaved change is pending the in-memory list wins and is returned as is.
// When the store reports versions and the collection has not been written
// since the last read, the in-memory list is returned without a read.
func (m *Manager) LoadAll() ([]Alarm, error) {
	return m.load(false)
}

// Reload rereads the collection even when its version is unchanged, for
// callers such as a file watcher.
func (m *Manager) Reload() error {
	_, err := m.load(true)
	return err
}

func (m *Manager) load(force bool) ([]Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirty {
		return cloneAlarms(m.alarms), nil
	}
	version, versioned := m.versionOf(CollectionKey)
	if !force && versioned && m.loaded && version == m.version {
		return cloneAlarms(m.alarms), nil
	}
	alarms, err := m.read()
	if err != nil {
		return nil, err
	}
	m.alarms = alarms
	m.loaded, m.version = true, version
	return cloneAlarms(alarms), nil
}

// SaveAll replaces the whole collection.
func (m *Manager) SaveAll(alarms []Alarm) error {
	next := cloneAlarms(alarms)
	for i := range next {
		next[i].Normalize()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackClips(m.alarms, next)
	m.alarms = next
	m.dirty = true
	return m.saveLocked("save")
}

// All returns a copy of the current list in insertion order.
func (m *Manager) All() []Alarm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAlarms(m.alarms)
}

// Get returns the alarm with the given id.
func (m *Manager) Get(id string) (Alarm, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		return m.alarms[i], true
	}
	return Alarm{}, false
}

// Find resolves a full id or a unique id prefix.
func (m *Manager) Find(ref string) (Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(ref); i >= 0 {
		return m.alarms[i], nil
	}
	var found []Alarm
	if ref != "" {
		for _, a := range m.alarms {
			if strings.HasPrefix(a.ID, ref) {
				found = append(found, a)
			}
		}
	}
	switch len(found) {
	case 0:
		return Alarm{}, fmt.Errorf("%w: %q", ErrNotFound, ref)
	case 1:
		return found[0], nil
	}
	return Alarm{}, fmt.Errorf("alarm id %q is ambiguous (%d matches)", ref, len(found))
}

// Add creates an enabled alarm from d with a fresh id.
func (m *Manager) Add(d Draft) (Alarm, error) {
	a := Alarm{
		ID:            m.newID(),
		Hours:         d.Hours,
		Minutes:       d.Minutes,
		Label:         d.Label,
		Message:       d.Message,
		Sound:         d.Sound,
		CustomAudio:   d.CustomAudio,
		Repeat:        d.Repeat,
		Language:      d.Language,
		MessageRepeat: d.MessageRepeat,
		Enabled:       true,
		CreatedAt:     m.now(),
	}
	if a.MessageRepeat == 0 {
		a.MessageRepeat = DefaultMessageRepeat
	}
	a.Normalize()

	err := m.mutate("add", func(list []Alarm) ([]Alarm, error) {
		return append(list, a), nil
	})
	if err != nil && !isPersistence(err) {
		return Alarm{}, err
	}
	return a, err
}

// Update applies p to the alarm with the given id and returns the new record.
func (m *Manager) Update(id string, p Patch) (Alarm, error) {
	return m.replace("update", id, func(a *Alarm) {
		if p.Hours != nil {
			a.Hours = *p.Hours
		}
		if p.Minutes != nil {
			a.Minutes = *p.Minutes
		}
		if p.Label != nil {
			a.Label = *p.Label
		}
		if p.Message != nil {
			a.Message = *p.Message
		}
		if p.Sound != nil {
			a.Sound = *p.Sound
		}
		if p.Repeat != nil {
			a.Repeat = *p.Repeat
		}
		if p.Language != nil {
			a.Language = *p.Language
		}
		if p.MessageRepeat != nil {
			a.MessageRepeat = *p.MessageRepeat
		}
		if p.Enabled != nil {
			a.Enabled = *p.Enabled
		}
	})
}

// Toggle flips the enabled flag.
func (m *Manager) Toggle(id string) (Alarm, error) {
	return m.replace("toggle", id, func(a *Alarm) {
		a.Enabled = !a.Enabled
	})
}

// SetEnabled arms or disarms an alarm. Setting the current value still
// writes, so a pending dirty list is flushed.
func (m *Manager) SetEnabled(id string, enabled bool) error {
	_, err := m.replace("set enabled", id, func(a *Alarm) {
		a.Enabled = enabled
	})
	return err
}

// SetEnabledMultiple arms or disarms every alarm whose id is in ids with a
// single write, and returns how many alarms changed. Unknown ids are
// ignored.
func (m *Manager) SetEnabledMultiple(ids []string, enabled bool) (int, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	changed := 0
	err := m.mutate("set enabled", func(list []Alarm) ([]Alarm, error) {
		for i := range list {
			if want[list[i].ID] && list[i].Enabled != enabled {
				list[i].Enabled = enabled
				changed++
			}
		}
		return list, nil
	})
	if err != nil && !isPersistence(err) {
		return 0, err
	}
	return changed, err
}

// AttachAudio makes art the alarm's playback source. Only finished
// artifacts are attached, so a failed upload never touches the alarm.
func (m *Manager) AttachAudio(id string, art *audio.Artifact) (Alarm, error) {
	if art == nil {
		return Alarm{}, errors.New("alarm: attach: nil artifact")
	}
	return m.replace("attach audio", id, func(a *Alarm) {
		a.CustomAudio = art
	})
}

// DetachAudio drops the custom clip; the built-in tone plays again.
func (m *Manager) DetachAudio(id string) (Alarm, error) {
	return m.replace("detach audio", id, func(a *Alarm) {
		a.CustomAudio = nil
	})
}

// Delete removes one alarm.
func (m *Manager) Delete(id string) error {
	return m.mutate("delete", func(list []Alarm) ([]Alarm, error) {
		out := list[:0]
		found := false
		for _, a := range list {
			if a.ID == id {
				found = true
				continue
			}
			out = append(out, a)
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return out, nil
	})
}

// DeleteMultiple removes every alarm whose id is in ids and returns how
// many were removed. Unknown ids are ignored.
func (m *Manager) DeleteMultiple(ids []string) (int, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	removed := 0
	err := m.mutate("delete", func(list []Alarm) ([]Alarm, error) {
		out := list[:0]
		for _, a := range list {
			if drop[a.ID] {
				removed++
				continue
			}
			out = append(out, a)
		}
		return out, nil
	})
	if err != nil && !isPersistence(err) {
		return 0, err
	}
	return removed, err
}

// Dirty reports whether a change is waiting to be written.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// Flush retries a failed write. It is a no-op when nothing is pending.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirty {
		return nil
	}
	return m.saveLocked("flush")
}

func (m *Manager) replace(op, id string, fn func(*Alarm)) (Alarm, error) {
	var updated Alarm
	err := m.mutate(op, func(list []Alarm) ([]Alarm, error) {
		for i := range list {
			if list[i].ID == id {
				a := list[i]
				fn(&a)
				a.Normalize()
				list[i] = a
				updated = a
				return list, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	})
	if err != nil && !isPersistence(err) {
		return Alarm{}, err
	}
	return updated, err
}

// mutate applies fn to a copy of the list, swaps the copy in, and writes
// the collection.
func (m *Manager) mutate(op string, fn func([]Alarm) ([]Alarm, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(cloneAlarms(m.alarms))
	if err != nil {
		return err
	}
	m.trackClips(m.alarms, next)
	m.alarms = next
	m.dirty = true
	return m.saveLocked(op)
}

func (m *Manager) saveLocked(op string) error {
	for _, a := range m.alarms {
		if a.CustomAudio == nil || !m.clipsDirty[a.ID] {
			continue
		}
		key := ClipKey(a.ID)
		if err := m.store.Put(key, a.CustomAudio.Data); err != nil {
			return &PersistenceError{Op: op, Err: err}
		}
		delete(m.clipsDirty, a.ID)
		m.clipVersions[a.ID], _ = m.versionOf(key)
	}

	stored := make([]Alarm, len(m.alarms))
	for i, a := range m.alarms {
		if a.CustomAudio != nil {
			meta := *a.CustomAudio
			meta.Data = nil
			a.CustomAudio = &meta
		}
		stored[i] = a
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	if err := m.store.Put(CollectionKey, data); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	m.dirty = false
	m.version, _ = m.versionOf(CollectionKey)
	m.loaded = true

	m.dropStaleClips()
	return nil
}

// trackClips queues clip writes for artifacts that are new in next and
// clip removals for alarms that no longer carry one. Artifacts are
// immutable, so a changed pointer means a changed clip.
func (m *Manager) trackClips(prev, next []Alarm) {
	before := make(map[string]*audio.Artifact, len(prev))
	for _, a := range prev {
		if a.CustomAudio != nil {
			before[a.ID] = a.CustomAudio
		}
	}
	kept := make(map[string]bool, len(next))
	for _, a := range next {
		if a.CustomAudio == nil {
			continue
		}
		kept[a.ID] = true
		if before[a.ID] != a.CustomAudio {
			m.clipsDirty[a.ID] = true
			delete(m.clipsStale, a.ID)
		}
	}
	for id := range before {
		if !kept[id] {
			m.clipsStale[id] = true
			delete(m.clipsDirty, id)
		}
	}
}

// dropStaleClips deletes clips no alarm refers to. A failed delete stays
// queued for the next save; an orphaned clip costs only disk space.
func (m *Manager) dropStaleClips() {
	d, ok := m.store.(Deleter)
	for id := range m.clipsStale {
		if ok {
			if err := d.Delete(ClipKey(id)); err != nil {
				continue
			}
		}
		delete(m.clipsStale, id)
		delete(m.clipVersions, id)
	}
}

// versionOf returns key's version; ok is false when the store does not
// track versions or the lookup failed.
func (m *Manager) versionOf(key string) (string, bool) {
	v, isVersioner := m.store.(Versioner)
	if !isVersioner {
		return "", false
	}
	version, err := v.Version(key)
	if err != nil {
		return "", false
	}
	return version, true
}

func (m *Manager) read() ([]Alarm, error) {
	data, err := m.store.Get(CollectionKey)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	if len(data) == 0 {
		return []Alarm{}, nil
	}
	var alarms []Alarm
	if err := json.Unmarshal(data, &alarms); err != nil {
		return nil, &PersistenceError{Op: "load", Err: fmt.Errorf("decode: %w", err)}
	}
	if alarms == nil {
		alarms = []Alarm{}
	}

	held := make(map[string]*audio.Artifact, len(m.alarms))
	for _, a := range m.alarms {
		if a.CustomAudio != nil {
			held[a.ID] = a.CustomAudio
		}
	}
	for i := range alarms {
		a := &alarms[i]
		if a.CustomAudio == nil {
			continue
		}
		if len(a.CustomAudio.Data) > 0 {
			// Written with the clip inline; the next save moves it out.
			m.clipsDirty[a.ID] = true
			m.dirty = true
			continue
		}
		if err := m.readClip(a, held[a.ID]); err != nil {
			return nil, err
		}
	}
	return alarms, nil
}

// readClip fills in a's clip data. The copy already held in memory is
// reused while the clip's version is unchanged. A clip that is gone from
// the store is dropped and the alarm falls back to its built-in sound.
func (m *Manager) readClip(a *Alarm, held *audio.Artifact) error {
	key := ClipKey(a.ID)
	version, versioned := m.versionOf(key)
	if held != nil && len(held.Data) > 0 && versioned && version != "" && version == m.clipVersions[a.ID] {
		a.CustomAudio.Data = held.Data
		return nil
	}
	data, err := m.store.Get(key)
	if err != nil {
		return &PersistenceError{Op: "load clip", Err: err}
	}
	if len(data) == 0 {
		a.CustomAudio = nil
		return nil
	}
	a.CustomAudio.Data = data
	m.clipVersions[a.ID] = version
	return nil
}

func (m *Manager) index(id string) int {
	for i, a := range m.alarms {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func cloneAlarms(list []Alarm) []Alarm {
	return append([]Alarm(nil), list...)
}

func isPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
