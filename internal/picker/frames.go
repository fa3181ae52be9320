package picker

import (
	"sync"

	"cosmetic-picker/internal/dom"
)

// FrameMonitor binds a pointer-enter listener on every <iframe> in the
// document and follows insertions and removals. The iframe's own document is
// out of reach, so entering it reports the iframe element itself.
type FrameMonitor struct {
	mu         sync.Mutex
	doc        dom.Document
	onEnter    func(frame dom.Element)
	bound      map[dom.Element]func()
	disconnect func()
}

func NewFrameMonitor(doc dom.Document, onEnter func(frame dom.Element)) *FrameMonitor {
	m := &FrameMonitor{
		doc:     doc,
		onEnter: onEnter,
		bound:   make(map[dom.Element]func()),
	}

	m.mu.Lock()
	if frames, err := doc.QuerySelectorAll("iframe"); err == nil {
		for _, f := range frames {
			m.bind(f)
		}
	}
	m.disconnect = doc.ObserveChildList(m.handleMutation)
	m.mu.Unlock()

	return m
}

// Bound is the number of iframes currently carrying a listener.
func (m *FrameMonitor) Bound() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.bound)
}

func (m *FrameMonitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disconnect != nil {
		m.disconnect()
		m.disconnect = nil
	}
	for el, remove := range m.bound {
		remove()
		delete(m.bound, el)
	}
}

func (m *FrameMonitor) handleMutation(added, removed []dom.Element) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disconnect == nil {
		return
	}

	for _, el := range added {
		m.bindTree(el)
	}

	if len(removed) == 0 {
		return
	}
	// Removed subtrees may hold iframes deeper down; anything detached goes.
	for el, remove := range m.bound {
		if !el.IsConnected() {
			remove()
			delete(m.bound, el)
		}
	}
}

func (m *FrameMonitor) bindTree(el dom.Element) {
	if el.TagName() == "iframe" {
		m.bind(el)
		return
	}
	for _, c := range el.Children() {
		m.bindTree(c)
	}
}

func (m *FrameMonitor) bind(frame dom.Element) {
	if _, ok := m.bound[frame]; ok {
		return
	}

	m.bound[frame] = frame.AddEventListener(dom.EventPointerEnter, false, func(dom.Event) {
		m.onEnter(frame)
	})
}
