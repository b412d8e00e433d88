package alarm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Mavwarf/wakeup/internal/audio"
)

type memStore struct {
	data    map[string][]byte
	failPut error
	failGet error
	puts    int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(key string) ([]byte, error) {
	if s.failGet != nil {
		return nil, s.failGet
	}
	return s.data[key], nil
}

func (s *memStore) Put(key string, value []byte) error {
	if s.failPut != nil {
		return s.failPut
	}
	s.puts++
	s.data[key] = append([]byte(nil), value...)
	return nil
}

var _ Store = (*memStore)(nil)

func newTestManager(s Store) *Manager {
	m := NewManager(s)
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	m.now = func() time.Time { return time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC) }
	return m
}

func TestAddAssignsIDAndPersists(t *testing.T) {
	s := newMemStore()
	m := newTestManager(s)

	a, err := m.Add(Draft{Hours: 25, Minutes: 30, Label: "Gym", Repeat: Daily})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != "id-1" || !a.Enabled || a.Hours != 23 {
		t.Errorf("added = %+v", a)
	}
	if a.MessageRepeat != 1 || a.Sound != "bell" || a.Language != "en-IN" {
		t.Errorf("defaults not applied: %+v", a)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	var stored []Alarm
	if err := json.Unmarshal(s.data[CollectionKey], &stored); err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].ID != "id-1" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestLoadAllEmptyStore(t *testing.T) {
	m := newTestManager(newMemStore())
	got, err := m.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d alarms, want 0", len(got))
	}
}

func TestLoadAllAppliesDefaults(t *testing.T) {
	s := newMemStore()
	s.data[CollectionKey] = []byte(`[{"id":"old","hours":6,"minutes":0,"enabled":true}]`)
	m := newTestManager(s)
	got, err := m.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Language != "en-IN" || got[0].MessageRepeat != 1 {
		t.Errorf("loaded = %+v", got)
	}
}

func TestLoadAllCorrupt(t *testing.T) {
	s := newMemStore()
	s.data[CollectionKey] = []byte(`{not json`)
	_, err := newTestManager(s).LoadAll()
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "load" {
		t.Errorf("err = %v, want load PersistenceError", err)
	}
}

func TestUpdatePatch(t *testing.T) {
	m := newTestManager(newMemStore())
	a, _ := m.Add(Draft{Hours: 7, Minutes: 0, Label: "Work"})

	label := "Office"
	mins := 75
	rep := Weekdays
	got, err := m.Update(a.ID, Patch{Label: &label, Minutes: &mins, Repeat: &rep})
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "Office" || got.Minutes != 59 || got.Repeat != Weekdays || got.Hours != 7 {
		t.Errorf("updated = %+v", got)
	}
	if stored, _ := m.Get(a.ID); stored.Label != "Office" {
		t.Errorf("Get after update = %+v", stored)
	}
}

func TestUpdateUnknownID(t *testing.T) {
	m := newTestManager(newMemStore())
	if _, err := m.Update("nope", Patch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestToggleAndSetEnabled(t *testing.T) {
	m := newTestManager(newMemStore())
	a, _ := m.Add(Draft{Hours: 7})

	got, err := m.Toggle(a.ID)
	if err != nil || got.Enabled {
		t.Fatalf("Toggle = %+v, %v; want disabled", got, err)
	}
	if err := m.SetEnabled(a.ID, true); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.Get(a.ID); !got.Enabled {
		t.Error("SetEnabled(true) did not arm")
	}
}

func TestDeleteAndDeleteMultiple(t *testing.T) {
	m := newTestManager(newMemStore())
	for i := 0; i < 4; i++ {
		m.Add(Draft{Hours: i})
	}
	if err := m.Delete("id-2"); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete("id-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	n, err := m.DeleteMultiple([]string{"id-1", "id-4", "missing"})
	if err != nil || n != 2 {
		t.Errorf("DeleteMultiple = %d, %v; want 2", n, err)
	}
	all := m.All()
	if len(all) != 1 || all[0].ID != "id-3" {
		t.Errorf("remaining = %+v", all)
	}
}

func TestAttachAndDetachAudio(t *testing.T) {
	m := newTestManager(newMemStore())
	a, _ := m.Add(Draft{Hours: 7, Sound: "buzz"})

	art := &audio.Artifact{Data: []byte("RIFF"), Duration: 3}
	got, err := m.AttachAudio(a.ID, art)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Source().Custom() {
		t.Error("attached clip is not the active source")
	}

	got, err = m.DetachAudio(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s := got.Source(); s.Custom() || s.Tone != "buzz" {
		t.Errorf("source after detach = %v", s)
	}

	if _, err := m.AttachAudio(a.ID, nil); err == nil {
		t.Error("expected error attaching nil artifact")
	}
}

func TestFailedWriteKeepsChangeAndFlushRetries(t *testing.T) {
	s := newMemStore()
	m := newTestManager(s)
	a, _ := m.Add(Draft{Hours: 7})

	s.failPut = errors.New("disk full")
	err := m.SetEnabled(a.ID, false)
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error text = %q", err)
	}
	if got, _ := m.Get(a.ID); got.Enabled {
		t.Error("in-memory change lost after failed write")
	}
	if !m.Dirty() {
		t.Error("manager should be dirty after failed write")
	}

	// A reload while dirty keeps the newer in-memory list.
	list, _ := m.LoadAll()
	if list[0].Enabled {
		t.Error("LoadAll discarded a pending change")
	}

	if err := m.Flush(); err == nil {
		t.Error("Flush should fail while the store is failing")
	}
	s.failPut = nil
	if err := m.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if m.Dirty() {
		t.Error("still dirty after successful flush")
	}

	fresh := newTestManager(s)
	stored, _ := fresh.LoadAll()
	if stored[0].Enabled {
		t.Error("flushed state not persisted")
	}
}

func TestFlushNoopWhenClean(t *testing.T) {
	s := newMemStore()
	m := newTestManager(s)
	m.Add(Draft{})
	before := s.puts
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}
	if s.puts != before {
		t.Error("Flush wrote without pending changes")
	}
}

func TestFind(t *testing.T) {
	m := newTestManager(newMemStore())
	m.Add(Draft{})
	m.newID = func() string { return "abc-123" }
	m.Add(Draft{})
	m.newID = func() string { return "abd-456" }
	m.Add(Draft{})

	if a, err := m.Find("abc"); err != nil || a.ID != "abc-123" {
		t.Errorf("Find(abc) = %v, %v", a.ID, err)
	}
	if _, err := m.Find("ab"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("Find(ab) err = %v, want ambiguous", err)
	}
	if _, err := m.Find("zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(zzz) err = %v, want ErrNotFound", err)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	m := newTestManager(newMemStore())
	m.Add(Draft{Label: "One"})
	list := m.All()
	list[0].Label = "Changed"
	if got := m.All(); got[0].Label != "One" {
		t.Error("All exposed the internal list")
	}
}

func TestSaveAllNormalizes(t *testing.T) {
	s := newMemStore()
	m := newTestManager(s)
	err := m.SaveAll([]Alarm{{ID: "x", Hours: 99, Minutes: 99}})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := m.Get("x")
	if got.Hours != 23 || got.Minutes != 59 || got.Sound != "bell" {
		t.Errorf("saved = %+v", got)
	}
}

// versionedStore adds per-key versions and deletes to memStore and counts
// reads per key.
type versionedStore struct {
	*memStore
	versions map[string]int
	gets     map[string]int
	failDel  error
}

func newVersionedStore() *versionedStore {
	return &versionedStore{
		memStore: newMemStore(),
		versions: make(map[string]int),
		gets:     make(map[string]int),
	}
}

func (s *versionedStore) Get(key string) ([]byte, error) {
	s.gets[key]++
	return s.memStore.Get(key)
}

func (s *versionedStore) Put(key string, value []byte) error {
	if err := s.memStore.Put(key, value); err != nil {
		return err
	}
	s.versions[key]++
	return nil
}

func (s *versionedStore) Delete(key string) error {
	if s.failDel != nil {
		return s.failDel
	}
	delete(s.data, key)
	delete(s.versions, key)
	return nil
}

func (s *versionedStore) Version(key string) (string, error) {
	if _, ok := s.data[key]; !ok {
		return "", nil
	}
	return fmt.Sprint(s.versions[key]), nil
}

var (
	_ Versioner = (*versionedStore)(nil)
	_ Deleter   = (*versionedStore)(nil)
)

func TestSetEnabledMultipleWritesOnce(t *testing.T) {
	s := newMemStore()
	m := newTestManager(s)
	a, _ := m.Add(Draft{Hours: 6})
	b, _ := m.Add(Draft{Hours: 7})
	c, _ := m.Add(Draft{Hours: 8})
	m.SetEnabled(b.ID, false)

	tests := []struct {
		name    string
		ids     []string
		enabled bool
		changed int
		want    map[string]bool
	}{
		{"disable two", []string{a.ID, c.ID}, false, 2, map[string]bool{a.ID: false, b.ID: false, c.ID: false}},
		{"enable all with unknown", []string{a.ID, b.ID, c.ID, "nope"}, true, 3, map[string]bool{a.ID: true, b.ID: true, c.ID: true}},
		{"already enabled", []string{a.ID}, true, 0, map[string]bool{a.ID: true, b.ID: true, c.ID: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.puts
			n, err := m.SetEnabledMultiple(tt.ids, tt.enabled)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.changed {
				t.Errorf("changed = %d, want %d", n, tt.changed)
			}
			if s.puts-before != 1 {
				t.Errorf("puts = %d, want 1", s.puts-before)
			}
			var stored []Alarm
			if err := json.Unmarshal(s.data[CollectionKey], &stored); err != nil {
				t.Fatal(err)
			}
			for _, al := range stored {
				if al.Enabled != tt.want[al.ID] {
					t.Errorf("%s enabled = %v, want %v", al.ID, al.Enabled, tt.want[al.ID])
				}
			}
		})
	}
}

func TestClipStoredUnderOwnKey(t *testing.T) {
	s := newVersionedStore()
	m := newTestManager(s)
	a, _ := m.Add(Draft{Hours: 7})
	clip := []byte("RIFF....WAVEdata")

	if _, err := m.AttachAudio(a.ID, &audio.Artifact{Data: clip, Duration: 2}); err != nil {
		t.Fatal(err)
	}
	if string(s.data[ClipKey(a.ID)]) != string(clip) {
		t.Errorf("clip key holds %q", s.data[ClipKey(a.ID)])
	}
	if strings.Contains(string(s.data[CollectionKey]), `"data"`) {
		t.Errorf("collection carries clip data: %s", s.data[CollectionKey])
	}

	// An unrelated change leaves the clip alone.
	clipPuts := s.versions[ClipKey(a.ID)]
	m.SetEnabled(a.ID, false)
	if s.versions[ClipKey(a.ID)] != clipPuts {
		t.Error("clip rewritten by an unrelated change")
	}

	fresh := newTestManager(s)
	list, err := fresh.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if list[0].CustomAudio == nil || string(list[0].CustomAudio.Data) != string(clip) {
		t.Errorf("reloaded clip = %+v", list[0].CustomAudio)
	}
}

func TestDetachAndDeleteDropClip(t *testing.T) {
	s := newVersionedStore()
	m := newTestManager(s)
	a, _ := m.Add(Draft{Hours: 7})
	b, _ := m.Add(Draft{Hours: 8})
	m.AttachAudio(a.ID, &audio.Artifact{Data: []byte("a")})
	m.AttachAudio(b.ID, &audio.Artifact{Data: []byte("b")})

	m.DetachAudio(a.ID)
	if _, ok := s.data[ClipKey(a.ID)]; ok {
		t.Error("detached clip still stored")
	}

	s.failDel = errors.New("busy")
	m.Delete(b.ID)
	if _, ok := s.data[ClipKey(b.ID)]; !ok {
		t.Fatal("clip vanished despite failing delete")
	}
	s.failDel = nil
	m.Add(Draft{Hours: 9})
	if _, ok := s.data[ClipKey(b.ID)]; ok {
		t.Error("failed clip delete not retried on next save")
	}
}

func TestFailedClipWriteFlushRetries(t *testing.T) {
	s := newVersionedStore()
	m := newTestManager(s)
	a, _ := m.Add(Draft{Hours: 7})

	s.failPut = errors.New("disk full")
	if _, err := m.AttachAudio(a.ID, &audio.Artifact{Data: []byte("clip")}); !isPersistence(err) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	s.failPut = nil
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}
	if string(s.data[ClipKey(a.ID)]) != "clip" {
		t.Errorf("clip after flush = %q", s.data[ClipKey(a.ID)])
	}
}

func TestLoadAllSkipsUnchangedCollection(t *testing.T) {
	s := newVersionedStore()
	m := newTestManager(s)
	a, _ := m.Add(Draft{Hours: 7})
	m.AttachAudio(a.ID, &audio.Artifact{Data: []byte("clip")})

	for i := 0; i < 3; i++ {
		if _, err := m.LoadAll(); err != nil {
			t.Fatal(err)
		}
	}
	if n := s.gets[CollectionKey]; n != 0 {
		t.Errorf("collection read %d times, want 0", n)
	}

	// Another process rewrites the collection but not the clip.
	other := newTestManager(s)
	other.LoadAll()
	other.SetEnabled(a.ID, false)
	clipGets := s.gets[ClipKey(a.ID)]

	list, err := m.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if list[0].Enabled {
		t.Error("external change not picked up")
	}
	if list[0].CustomAudio == nil || string(list[0].CustomAudio.Data) != "clip" {
		t.Errorf("clip after reload = %+v", list[0].CustomAudio)
	}
	if s.gets[ClipKey(a.ID)] != clipGets {
		t.Error("unchanged clip read again")
	}

	before := s.gets[CollectionKey]
	if err := m.Reload(); err != nil {
		t.Fatal(err)
	}
	if s.gets[CollectionKey] != before+1 {
		t.Error("Reload did not read the collection")
	}
}

func TestLoadAllMovesInlineClipOut(t *testing.T) {
	s := newVersionedStore()
	s.data[CollectionKey] = []byte(`[{"id":"old","hours":6,"enabled":true,"customAudio":{"data":"UklGRg==","mimeType":"audio/wav"}}]`)
	m := newTestManager(s)

	list, err := m.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if list[0].CustomAudio == nil || string(list[0].CustomAudio.Data) != "RIFF" {
		t.Fatalf("inline clip = %+v", list[0].CustomAudio)
	}
	if !m.Dirty() {
		t.Fatal("inline clip not queued for migration")
	}
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}
	if string(s.data[ClipKey("old")]) != "RIFF" {
		t.Errorf("migrated clip = %q", s.data[ClipKey("old")])
	}
	if strings.Contains(string(s.data[CollectionKey]), `"data"`) {
		t.Errorf("collection still inline: %s", s.data[CollectionKey])
	}
}

func TestLoadAllMissingClipFallsBackToTone(t *testing.T) {
	s := newMemStore()
	s.data[CollectionKey] = []byte(`[{"id":"old","hours":6,"sound":"buzz","enabled":true,"customAudio":{"mimeType":"audio/wav","duration":3}}]`)
	list, err := newTestManager(s).LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if src := list[0].Source(); src.Custom() || src.Tone != "buzz" {
		t.Errorf("source = %v, want buzz tone", src)
	}
}
