// Package dom describes the host document the picker engine runs against.
//
// The engine never owns page nodes: every Element is a back-reference into a
// live document that page script may mutate at any time. Implementations must
// hand out the same Element value for the same underlying node, so identity
// checks are plain == comparisons.
package dom

import (
	"errors"
	"strings"
)

// ErrInvalidSelector is wrapped by QuerySelectorAll and Matches when the
// selector does not parse.
var ErrInvalidSelector = errors.New("invalid selector")

type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x < r.Left+r.Width && y >= r.Top && y < r.Top+r.Height
}

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

type EventType string

const (
	EventPointerMove  EventType = "mousemove"
	EventClick        EventType = "click"
	EventKeyDown      EventType = "keydown"
	EventScroll       EventType = "scroll"
	EventResize       EventType = "resize"
	EventPointerEnter EventType = "mouseenter"
)

type Event struct {
	Type   EventType
	X      float64
	Y      float64
	Key    string
	Target Element
	// InPanel is set when the event target sits inside the engine panel.
	InPanel bool
}

type Listener func(Event)

type EventTarget interface {
	// AddEventListener registers fn and returns the function that removes it.
	AddEventListener(typ EventType, capture bool, fn Listener) (remove func())
}

type Element interface {
	EventTarget

	// TagName is lowercase.
	TagName() string
	Attr(name string) (string, bool)
	ClassList() []string
	Parent() Element
	Children() []Element
	IsConnected() bool
	BoundingClientRect() Rect
	InnerText() string
	Matches(selector string) (bool, error)
}

type Document interface {
	EventTarget

	Body() Element
	QuerySelectorAll(selector string) ([]Element, error)
	ElementFromPoint(x, y float64) Element
	// ObserveChildList reports element insertions and removals anywhere in the
	// document subtree until disconnect is called.
	ObserveChildList(fn func(added, removed []Element)) (disconnect func())
	Window() EventTarget
	Overlay() Overlay
}

// Overlay creates the nodes the engine injects into the page. Those nodes are
// never reported by QuerySelectorAll, ElementFromPoint or ObserveChildList.
type Overlay interface {
	NewLayer() (Layer, error)
	NewCover() (Cover, error)
	NewPanel(onAction func(PanelAction)) (Panel, error)
}

type BoxStyle int

const (
	BoxPrimary BoxStyle = iota
	BoxMatch
)

// Layer is a fixed container at the viewport origin spanning the whole
// viewport with pointer events disabled.
type Layer interface {
	NewBox(style BoxStyle) (Box, error)
	Remove() error
}

type Box interface {
	Place(r Rect)
	Hide()
	Remove() error
}

// Cover is the transparent full-viewport node that swallows page interaction
// while picking.
type Cover interface {
	Show()
	Hide()
	Remove() error
}

type Panel interface {
	Render(view PanelView)
	Remove() error
}

type PanelView struct {
	TargetTag        string
	Candidates       []string
	Strictness       int
	Selector         string
	ManualOverride   bool
	CanAscend        bool
	CanDescend       bool
	TextEnabled      bool
	Text             string
	MatchCount       int
	PredicateWarning bool
	SelectorWarning  bool
}

type PanelActionKind string

const (
	ActionStrictness PanelActionKind = "strictness"
	ActionEdit       PanelActionKind = "edit"
	ActionAscend     PanelActionKind = "ascend"
	ActionDescend    PanelActionKind = "descend"
	ActionText       PanelActionKind = "text"
	ActionConfirm    PanelActionKind = "confirm"
	ActionCancel     PanelActionKind = "cancel"
)

type PanelAction struct {
	Kind    PanelActionKind
	Value   string
	Level   int
	Enabled bool
}

// IsRoot reports whether el is the <html> or <body> element.
func IsRoot(el Element) bool {
	if el == nil {
		return false
	}

	switch strings.ToLower(el.TagName()) {
	case "html", "body":
		return true
	}

	return false
}

// Live returns el when it is still attached to its document, nil otherwise.
func Live(el Element) Element {
	if el == nil || !el.IsConnected() {
		return nil
	}

	return el
}

// Contains reports whether descendant is ancestor itself or lies below it.
func Contains(ancestor, descendant Element) bool {
	if ancestor == nil {
		return false
	}

	for n := descendant; n != nil; n = n.Parent() {
		if n == ancestor {
			return true
		}
	}

	return false
}
