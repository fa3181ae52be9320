package snapshot

import (
	"sort"
	"sync"

	"cosmetic-picker/internal/dom"
)

type listenerEntry struct {
	id      int
	typ     dom.EventType
	capture bool
	fn      dom.Listener
}

type listeners struct {
	mu      sync.Mutex
	next    int
	entries []listenerEntry
}

func newListeners() *listeners {
	return &listeners{}
}

func (l *listeners) add(typ dom.EventType, capture bool, fn dom.Listener) func() {
	l.mu.Lock()
	id := l.next
	l.next++
	l.entries = append(l.entries, listenerEntry{id: id, typ: typ, capture: capture, fn: fn})
	l.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()

			for i, e := range l.entries {
				if e.id == id {
					l.entries = append(l.entries[:i], l.entries[i+1:]...)
					return
				}
			}
		})
	}
}

// fire calls capture listeners first, then the rest, each group in
// registration order. Listeners may remove themselves while firing.
func (l *listeners) fire(ev dom.Event) {
	l.mu.Lock()
	var matched []listenerEntry
	for _, e := range l.entries {
		if e.typ == ev.Type {
			matched = append(matched, e)
		}
	}
	l.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].capture && !matched[j].capture
	})

	for _, e := range matched {
		if !l.has(e.id) {
			continue
		}
		e.fn(ev)
	}
}

func (l *listeners) has(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.id == id {
			return true
		}
	}

	return false
}

func (l *listeners) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
