package picker

import (
	"fmt"

	"cosmetic-picker/internal/dom"

	"go.uber.org/multierr"
)

// Highlighter keeps one box over the primary element and a pool of boxes
// over every other match, repositioned on scroll and resize.
type Highlighter struct {
	layer      dom.Layer
	primaryBox dom.Box
	boxes      []dom.Box

	primary dom.Element
	others  []dom.Element

	detach []func()
}

func NewHighlighter(doc dom.Document) (*Highlighter, error) {
	layer, err := doc.Overlay().NewLayer()
	if err != nil {
		return nil, fmt.Errorf("create highlight layer: %w", err)
	}

	h := &Highlighter{layer: layer}

	win := doc.Window()
	refresh := func(dom.Event) { h.RefreshPositions() }
	h.detach = append(h.detach,
		// Capture phase so scrolling of nested containers is seen too.
		win.AddEventListener(dom.EventScroll, true, refresh),
		win.AddEventListener(dom.EventResize, false, refresh),
	)

	return h, nil
}

func (h *Highlighter) SetHighlights(primary dom.Element, others []dom.Element) {
	h.primary = primary
	h.others = append(h.others[:0], others...)

	for len(h.boxes) < len(h.others) {
		box, err := h.layer.NewBox(dom.BoxMatch)
		if err != nil {
			h.others = h.others[:len(h.boxes)]
			break
		}
		h.boxes = append(h.boxes, box)
	}
	for len(h.boxes) > len(h.others) {
		last := h.boxes[len(h.boxes)-1]
		h.boxes = h.boxes[:len(h.boxes)-1]
		_ = last.Remove()
	}

	h.RefreshPositions()
}

func (h *Highlighter) RefreshPositions() {
	if h.primary != nil && h.primaryBox == nil {
		if box, err := h.layer.NewBox(dom.BoxPrimary); err == nil {
			h.primaryBox = box
		}
	}
	if h.primaryBox != nil {
		place(h.primaryBox, h.primary)
	}

	for i, box := range h.boxes {
		place(box, h.others[i])
	}
}

// MatchBoxes is the number of non-primary boxes currently allocated.
func (h *Highlighter) MatchBoxes() int {
	return len(h.boxes)
}

// Close removes every injected node and detaches the viewport listeners.
func (h *Highlighter) Close() error {
	for _, fn := range h.detach {
		fn()
	}
	h.detach = nil

	var err error
	for _, box := range h.boxes {
		err = multierr.Append(err, box.Remove())
	}
	if h.primaryBox != nil {
		err = multierr.Append(err, h.primaryBox.Remove())
	}
	h.boxes, h.primaryBox, h.primary, h.others = nil, nil, nil, nil

	return multierr.Append(err, h.layer.Remove())
}

func place(box dom.Box, el dom.Element) {
	if dom.Live(el) == nil {
		box.Hide()
		return
	}

	box.Place(el.BoundingClientRect())
}
