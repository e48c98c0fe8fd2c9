package resource

import (
	"sort"
	"sync"
)

type entry struct {
	value any
	kind  Kind
}

// Table maps descriptor numbers to host values. New handles take the
// lowest free number, as POSIX descriptors do.
type Table struct {
	entries   map[Handle]entry
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[Handle]entry)}
}

// Insert adds a value under the lowest free handle.
func (t *Table) Insert(kind Kind, value any) Handle {
	t.mu.Lock()
	var h Handle
	for {
		if _, used := t.entries[h]; !used {
			break
		}
		h++
	}
	t.entries[h] = entry{kind: kind, value: value}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Kind: kind, Value: value})
	return h
}

// InsertAt places a value at h, dropping any value already there.
func (t *Table) InsertAt(h Handle, kind Kind, value any) {
	t.Remove(h)

	t.mu.Lock()
	t.entries[h] = entry{kind: kind, value: value}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Kind: kind, Value: value})
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, Kind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[h]
	return e.value, e.kind, ok
}

// GetTyped retrieves a value only if it has the expected kind.
func (t *Table) GetTyped(h Handle, kind Kind) (any, bool) {
	v, k, ok := t.Get(h)
	if !ok || k != kind {
		return nil, false
	}
	return v, true
}

// Remove drops a handle and returns (value, true) if found.
func (t *Table) Remove(h Handle) (any, bool) {
	t.mu.Lock()
	e, ok := t.entries[h]
	if ok {
		delete(t.entries, h)
	}
	t.mu.Unlock()
	if !ok {
		return nil, false
	}

	if d, ok := e.value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, Kind: e.kind, Value: e.value})
	return e.value, true
}

// Len returns the number of open handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Each calls fn for every handle in ascending order until fn returns false.
func (t *Table) Each(fn func(Handle, Kind, any) bool) {
	t.mu.RLock()
	handles := make([]Handle, 0, len(t.entries))
	for h := range t.entries {
		handles = append(handles, h)
	}
	entries := make(map[Handle]entry, len(t.entries))
	for h, e := range t.entries {
		entries[h] = e
	}
	t.mu.RUnlock()

	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		e := entries[h]
		if !fn(h, e.kind, e.value) {
			return
		}
	}
}

// Clear drops all handles.
func (t *Table) Clear() {
	var handles []Handle
	t.Each(func(h Handle, _ Kind, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Remove(h)
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
