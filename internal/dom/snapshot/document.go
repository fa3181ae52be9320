// Package snapshot is an in-memory host document backed by a parsed HTML tree.
//
// Layout is not computed: element rectangles come from data-rect="l,t,w,h"
// attributes or from SetRect. Events are dispatched synchronously by the
// PointerMove, Click, KeyDown, Scroll, Resize and PointerEnter methods.
package snapshot

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"cosmetic-picker/internal/dom"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

const rectAttr = "data-rect"

type Document struct {
	mu        sync.Mutex
	gq        *goquery.Document
	root      *html.Node
	elements  map[*html.Node]*Element
	rects     map[*html.Node]dom.Rect
	observers map[int]func(added, removed []dom.Element)
	nextObs   int

	docListeners *listeners
	winListeners *listeners
	overlay      *Overlay
}

var _ dom.Document = (*Document)(nil)

func Parse(r io.Reader) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	d := &Document{
		gq:           gq,
		root:         gq.Nodes[0],
		elements:     make(map[*html.Node]*Element),
		rects:        make(map[*html.Node]dom.Rect),
		observers:    make(map[int]func(added, removed []dom.Element)),
		docListeners: newListeners(),
		winListeners: newListeners(),
		overlay:      newOverlay(),
	}
	d.layout(d.root)

	return d, nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Find returns the first element matching selector, or nil.
func (d *Document) Find(selector string) dom.Element {
	matches, err := d.QuerySelectorAll(selector)
	if err != nil || len(matches) == 0 {
		return nil
	}

	return matches[0]
}

func (d *Document) Body() dom.Element {
	sel := d.gq.Find("body")
	if sel.Length() == 0 {
		return nil
	}

	return d.wrap(sel.Nodes[0])
}

func (d *Document) QuerySelectorAll(selector string) ([]dom.Element, error) {
	group, err := compile(selector)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	nodes := cascadia.QueryAll(d.root, group)
	d.mu.Unlock()

	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}

	return out, nil
}

// ElementFromPoint returns the last element in document order whose rectangle
// contains the point. While the cover is shown nothing below it is reachable.
func (d *Document) ElementFromPoint(x, y float64) dom.Element {
	if d.overlay.coverVisible() {
		return nil
	}

	d.mu.Lock()
	var hit *html.Node
	walk(d.root, func(n *html.Node) {
		if r, ok := d.rects[n]; ok && !r.Empty() && r.Contains(x, y) {
			hit = n
		}
	})
	d.mu.Unlock()

	if hit == nil {
		return nil
	}

	return d.wrap(hit)
}

func (d *Document) ObserveChildList(fn func(added, removed []dom.Element)) (disconnect func()) {
	d.mu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

func (d *Document) AddEventListener(typ dom.EventType, capture bool, fn dom.Listener) func() {
	return d.docListeners.add(typ, capture, fn)
}

func (d *Document) Window() dom.EventTarget {
	return windowTarget{d}
}

func (d *Document) Overlay() dom.Overlay {
	return d.overlay
}

// Injected exposes the recording overlay for inspection.
func (d *Document) Injected() *Overlay {
	return d.overlay
}

func (d *Document) SetRect(el dom.Element, r dom.Rect) {
	e, ok := el.(*Element)
	if !ok {
		return
	}

	d.mu.Lock()
	d.rects[e.node] = r
	d.mu.Unlock()
}

// Remove detaches el from the tree and notifies child-list observers.
func (d *Document) Remove(el dom.Element) {
	e, ok := el.(*Element)
	if !ok || e.node.Parent == nil {
		return
	}

	d.mu.Lock()
	e.node.Parent.RemoveChild(e.node)
	d.mu.Unlock()

	d.notify(nil, []dom.Element{e})
}

// AppendHTML parses fragment in the context of parent, appends the result and
// notifies child-list observers with the inserted elements.
func (d *Document) AppendHTML(parent dom.Element, fragment string) ([]dom.Element, error) {
	p, ok := parent.(*Element)
	if !ok {
		return nil, fmt.Errorf("append html: foreign element %T", parent)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), p.node)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}

	d.mu.Lock()
	var added []*html.Node
	for _, n := range nodes {
		p.node.AppendChild(n)
		d.layoutLocked(n)
		if n.Type == html.ElementNode {
			added = append(added, n)
		}
	}
	d.mu.Unlock()

	out := make([]dom.Element, 0, len(added))
	for _, n := range added {
		out = append(out, d.wrap(n))
	}
	d.notify(out, nil)

	return out, nil
}

// ListenerCount is the number of live listeners across the document, the
// window and every element.
func (d *Document) ListenerCount() int {
	total := d.docListeners.len() + d.winListeners.len()

	d.mu.Lock()
	elems := make([]*Element, 0, len(d.elements))
	for _, e := range d.elements {
		elems = append(elems, e)
	}
	d.mu.Unlock()

	for _, e := range elems {
		total += e.listeners.len()
	}

	return total
}

// ObserverCount is the number of connected child-list observers.
func (d *Document) ObserverCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.observers)
}

func (d *Document) PointerMove(x, y float64) {
	d.docListeners.fire(dom.Event{Type: dom.EventPointerMove, X: x, Y: y})
}

func (d *Document) Click(x, y float64) {
	d.docListeners.fire(dom.Event{Type: dom.EventClick, X: x, Y: y})
}

// ClickPanel dispatches a document click whose target lies inside the panel.
func (d *Document) ClickPanel(x, y float64) {
	d.docListeners.fire(dom.Event{Type: dom.EventClick, X: x, Y: y, InPanel: true})
}

func (d *Document) KeyDown(key string) {
	d.docListeners.fire(dom.Event{Type: dom.EventKeyDown, Key: key})
}

func (d *Document) Scroll() {
	d.winListeners.fire(dom.Event{Type: dom.EventScroll})
}

func (d *Document) Resize() {
	d.winListeners.fire(dom.Event{Type: dom.EventResize})
}

func (d *Document) PointerEnter(el dom.Element) {
	e, ok := el.(*Element)
	if !ok {
		return
	}

	e.listeners.fire(dom.Event{Type: dom.EventPointerEnter, Target: e})
}

func (d *Document) notify(added, removed []dom.Element) {
	d.mu.Lock()
	fns := make([]func(added, removed []dom.Element), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(added, removed)
	}
}

func (d *Document) wrap(n *html.Node) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.elements[n]; ok {
		return e
	}

	e := &Element{doc: d, node: n, listeners: newListeners()}
	d.elements[n] = e

	return e
}

func (d *Document) layout(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.layoutLocked(n)
}

func (d *Document) layoutLocked(n *html.Node) {
	walk(n, func(c *html.Node) {
		raw, ok := attr(c, rectAttr)
		if !ok {
			return
		}
		if r, err := parseRect(raw); err == nil {
			d.rects[c] = r
		}
	})
}

func (d *Document) connected(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}

	return false
}

type windowTarget struct {
	d *Document
}

func (w windowTarget) AddEventListener(typ dom.EventType, capture bool, fn dom.Listener) func() {
	return w.d.winListeners.add(typ, capture, fn)
}

func compile(selector string) (cascadia.SelectorGroup, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, fmt.Errorf("%w: empty selector", dom.ErrInvalidSelector)
	}

	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dom.ErrInvalidSelector, err)
	}

	return group, nil
}

func parseRect(raw string) (dom.Rect, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return dom.Rect{}, fmt.Errorf("rect %q: want 4 numbers", raw)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return dom.Rect{}, fmt.Errorf("rect %q: %w", raw, err)
		}
		v[i] = f
	}

	return dom.Rect{Left: v[0], Top: v[1], Width: v[2], Height: v[3]}, nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}

	return "", false
}
