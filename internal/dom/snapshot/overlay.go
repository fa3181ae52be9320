package snapshot

import (
	"errors"
	"sync"

	"cosmetic-picker/internal/dom"
)

var errRemoved = errors.New("node already removed")

// Overlay records every node the engine injects so tests can assert on it.
type Overlay struct {
	mu     sync.Mutex
	layers []*Layer
	covers []*Cover
	panels []*Panel
}

var _ dom.Overlay = (*Overlay)(nil)

func newOverlay() *Overlay {
	return &Overlay{}
}

func (o *Overlay) NewLayer() (dom.Layer, error) {
	l := &Layer{overlay: o}

	o.mu.Lock()
	o.layers = append(o.layers, l)
	o.mu.Unlock()

	return l, nil
}

func (o *Overlay) NewCover() (dom.Cover, error) {
	c := &Cover{overlay: o, visible: true}

	o.mu.Lock()
	o.covers = append(o.covers, c)
	o.mu.Unlock()

	return c, nil
}

func (o *Overlay) NewPanel(onAction func(dom.PanelAction)) (dom.Panel, error) {
	p := &Panel{overlay: o, onAction: onAction}

	o.mu.Lock()
	o.panels = append(o.panels, p)
	o.mu.Unlock()

	return p, nil
}

// Layers returns the layers that are still attached.
func (o *Overlay) Layers() []*Layer {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*Layer
	for _, l := range o.layers {
		if !l.removed {
			out = append(out, l)
		}
	}

	return out
}

// Cover returns the attached cover, or nil.
func (o *Overlay) Cover() *Cover {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, c := range o.covers {
		if !c.removed {
			return c
		}
	}

	return nil
}

// Panel returns the attached panel, or nil.
func (o *Overlay) Panel() *Panel {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, p := range o.panels {
		if !p.removed {
			return p
		}
	}

	return nil
}

// NodeCount is the number of injected nodes still attached.
func (o *Overlay) NodeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for _, l := range o.layers {
		if l.removed {
			continue
		}
		n++
		for _, b := range l.boxes {
			if !b.removed {
				n++
			}
		}
	}
	for _, c := range o.covers {
		if !c.removed {
			n++
		}
	}
	for _, p := range o.panels {
		if !p.removed {
			n++
		}
	}

	return n
}

func (o *Overlay) coverVisible() bool {
	c := o.Cover()
	if c == nil {
		return false
	}

	return c.Visible()
}

type Layer struct {
	overlay *Overlay
	boxes   []*Box
	removed bool
}

func (l *Layer) NewBox(style dom.BoxStyle) (dom.Box, error) {
	l.overlay.mu.Lock()
	defer l.overlay.mu.Unlock()

	if l.removed {
		return nil, errRemoved
	}

	b := &Box{overlay: l.overlay, style: style}
	l.boxes = append(l.boxes, b)

	return b, nil
}

func (l *Layer) Remove() error {
	l.overlay.mu.Lock()
	defer l.overlay.mu.Unlock()

	if l.removed {
		return errRemoved
	}
	l.removed = true
	for _, b := range l.boxes {
		b.removed = true
	}

	return nil
}

// Boxes returns the attached boxes of the given style in creation order.
func (l *Layer) Boxes(style dom.BoxStyle) []*Box {
	l.overlay.mu.Lock()
	defer l.overlay.mu.Unlock()

	var out []*Box
	for _, b := range l.boxes {
		if !b.removed && b.style == style {
			out = append(out, b)
		}
	}

	return out
}

type Box struct {
	overlay *Overlay
	style   dom.BoxStyle
	rect    dom.Rect
	visible bool
	removed bool
}

func (b *Box) Place(r dom.Rect) {
	b.overlay.mu.Lock()
	defer b.overlay.mu.Unlock()

	b.rect = r
	b.visible = true
}

func (b *Box) Hide() {
	b.overlay.mu.Lock()
	defer b.overlay.mu.Unlock()

	b.visible = false
}

func (b *Box) Remove() error {
	b.overlay.mu.Lock()
	defer b.overlay.mu.Unlock()

	if b.removed {
		return errRemoved
	}
	b.removed = true

	return nil
}

func (b *Box) Rect() dom.Rect {
	b.overlay.mu.Lock()
	defer b.overlay.mu.Unlock()

	return b.rect
}

func (b *Box) Visible() bool {
	b.overlay.mu.Lock()
	defer b.overlay.mu.Unlock()

	return b.visible
}

type Cover struct {
	overlay *Overlay
	visible bool
	removed bool
}

func (c *Cover) Show() {
	c.overlay.mu.Lock()
	c.visible = true
	c.overlay.mu.Unlock()
}

func (c *Cover) Hide() {
	c.overlay.mu.Lock()
	c.visible = false
	c.overlay.mu.Unlock()
}

func (c *Cover) Remove() error {
	c.overlay.mu.Lock()
	defer c.overlay.mu.Unlock()

	if c.removed {
		return errRemoved
	}
	c.removed = true

	return nil
}

func (c *Cover) Visible() bool {
	c.overlay.mu.Lock()
	defer c.overlay.mu.Unlock()

	return c.visible && !c.removed
}

type Panel struct {
	overlay  *Overlay
	onAction func(dom.PanelAction)
	views    []dom.PanelView
	removed  bool
}

func (p *Panel) Render(view dom.PanelView) {
	p.overlay.mu.Lock()
	defer p.overlay.mu.Unlock()

	p.views = append(p.views, view)
}

func (p *Panel) Remove() error {
	p.overlay.mu.Lock()
	defer p.overlay.mu.Unlock()

	if p.removed {
		return errRemoved
	}
	p.removed = true

	return nil
}

// View returns the last rendered view.
func (p *Panel) View() dom.PanelView {
	p.overlay.mu.Lock()
	defer p.overlay.mu.Unlock()

	if len(p.views) == 0 {
		return dom.PanelView{}
	}

	return p.views[len(p.views)-1]
}

// Act simulates the user operating a panel control.
func (p *Panel) Act(a dom.PanelAction) {
	p.overlay.mu.Lock()
	removed := p.removed
	p.overlay.mu.Unlock()

	if removed || p.onAction == nil {
		return
	}
	p.onAction(a)
}
