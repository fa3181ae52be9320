package browser

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cosmetic-picker/internal/dom"
	"cosmetic-picker/pkg/logg"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const (
	hostLayerName   = "PickerHost"
	eventBufferSize = 256
	watchInterval   = 500 * time.Millisecond
)

var (
	errBridgeGone = errors.New("picker bridge is no longer installed")
	errNodeGone   = errors.New("injected node no longer exists")
)

type evaluator interface {
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

// PickerHost is the live tab seen through the picker bridge. DOM reads are
// page round trips; events arrive through an exposed binding and are handed
// to listeners on a single pump goroutine, never on a playwright callback.
type PickerHost struct {
	eval   evaluator
	logger *zap.Logger
	token  string

	mu        sync.Mutex
	elements  map[int]*liveElement
	listeners map[int]dom.Listener
	observers map[int]func(added, removed []dom.Element)
	panels    map[int]func(dom.PanelAction)
	nextID    int
	closed    bool

	events   chan map[string]interface{}
	stop     chan struct{}
	gone     chan struct{}
	goneOnce sync.Once
	wg       sync.WaitGroup
}

var _ dom.Document = (*PickerHost)(nil)

func attachHost(page playwright.Page, logger *zap.Logger) (*PickerHost, error) {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	binding := "__cosmeticPickerEmit_" + token

	h := newHost(page, token, logger)

	err := page.ExposeFunction(binding, func(args ...interface{}) interface{} {
		if len(args) > 0 {
			h.deliver(args[0])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expose event binding: %w", err)
	}

	if _, err := page.Evaluate(bridgeScript, map[string]interface{}{
		"binding": binding,
		"token":   token,
	}); err != nil {
		return nil, fmt.Errorf("install bridge: %w", err)
	}

	h.start()

	return h, nil
}

func newHost(eval evaluator, token string, logger *zap.Logger) *PickerHost {
	return &PickerHost{
		eval:      eval,
		logger:    logger.With(zap.String(logg.Layer, hostLayerName)),
		token:     token,
		elements:  make(map[int]*liveElement),
		listeners: make(map[int]dom.Listener),
		observers: make(map[int]func(added, removed []dom.Element)),
		panels:    make(map[int]func(dom.PanelAction)),
		events:    make(chan map[string]interface{}, eventBufferSize),
		stop:      make(chan struct{}),
		gone:      make(chan struct{}),
	}
}

func (h *PickerHost) start() {
	h.wg.Add(2)
	go h.pump()
	go h.watch()
}

// Gone is closed once the bridge has disappeared from the page, typically
// because the tab navigated away.
func (h *PickerHost) Gone() <-chan struct{} {
	return h.gone
}

// Close stops event delivery and removes every listener, observer and node
// the bridge still holds. It must not be called from a listener.
func (h *PickerHost) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	close(h.stop)
	h.wg.Wait()

	_, err := h.call("dispose")
	if errors.Is(err, errBridgeGone) {
		err = nil
	}

	h.mu.Lock()
	h.listeners = map[int]dom.Listener{}
	h.observers = map[int]func(added, removed []dom.Element){}
	h.panels = map[int]func(dom.PanelAction){}
	h.mu.Unlock()

	return err
}

func (h *PickerHost) markGone() {
	h.goneOnce.Do(func() {
		close(h.gone)
		h.logger.Info("Picker bridge is gone")
	})
}

// deliver runs on playwright's callback goroutine and only enqueues.
func (h *PickerHost) deliver(raw interface{}) {
	payload, ok := raw.(map[string]interface{})
	if !ok {
		return
	}

	select {
	case <-h.stop:
	case h.events <- payload:
	default:
		h.logger.Debug("Dropping bridge event, queue full", zap.String("kind", getString(payload, "kind")))
	}
}

func (h *PickerHost) pump() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stop:
			return
		case payload := <-h.events:
			h.dispatch(payload)
		}
	}
}

func (h *PickerHost) watch() {
	defer h.wg.Done()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			if _, err := h.call("ping"); err != nil {
				h.logger.Debug("Bridge ping failed", zap.Error(err))
				h.markGone()
				return
			}
		}
	}
}

func (h *PickerHost) dispatch(payload map[string]interface{}) {
	switch getString(payload, "kind") {
	case "event":
		h.mu.Lock()
		fn := h.listeners[getInt(payload, "lid")]
		h.mu.Unlock()
		if fn == nil {
			return
		}

		ev := dom.Event{
			Type:    dom.EventType(getString(payload, "type")),
			X:       getFloat(payload, "x"),
			Y:       getFloat(payload, "y"),
			Key:     getString(payload, "key"),
			InPanel: getBool(payload, "inPanel"),
		}
		if target := h.ref(payload["target"]); target != nil {
			ev.Target = target
		}
		fn(ev)

	case "mutation":
		h.mu.Lock()
		fn := h.observers[getInt(payload, "oid")]
		h.mu.Unlock()
		if fn == nil {
			return
		}
		fn(h.refs(payload["added"]), h.refs(payload["removed"]))

	case "panel":
		h.mu.Lock()
		fn := h.panels[getInt(payload, "nid")]
		h.mu.Unlock()
		if fn == nil {
			return
		}
		action, _ := payload["action"].(map[string]interface{})
		fn(dom.PanelAction{
			Kind:    dom.PanelActionKind(getString(action, "kind")),
			Value:   getString(action, "value"),
			Level:   getInt(action, "level"),
			Enabled: getBool(action, "enabled"),
		})

	default:
		h.logger.Debug("Unknown bridge payload", zap.Any("payload", payload))
	}
}

// call runs op on the bridge and returns its value.
func (h *PickerHost) call(op string, args ...interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}

	res, err := h.eval.Evaluate(bridgeCall, []interface{}{h.token, op, args})
	if err != nil {
		return nil, fmt.Errorf("bridge %s: %w", op, err)
	}

	out, _ := res.(map[string]interface{})
	if out == nil || getBool(out, "gone") {
		h.markGone()
		return nil, errBridgeGone
	}

	return out["value"], nil
}

// read is call for DOM reads, where a failure degrades to the zero value.
func (h *PickerHost) read(op string, args ...interface{}) interface{} {
	v, err := h.call(op, args...)
	if err != nil {
		h.logger.Debug("Bridge read failed", zap.String(logg.Operation, op), zap.Error(err))
		return nil
	}

	return v
}

func (h *PickerHost) nextHandle() int {
	h.nextID++
	return h.nextID
}

// ref interns an [id, tag] pair so each page node maps to one Element.
func (h *PickerHost) ref(v interface{}) *liveElement {
	pair, ok := v.([]interface{})
	if !ok || len(pair) != 2 {
		return nil
	}

	id := toInt(pair[0])
	if id == 0 {
		return nil
	}
	tag, _ := pair[1].(string)

	h.mu.Lock()
	defer h.mu.Unlock()

	if el, ok := h.elements[id]; ok {
		return el
	}
	el := &liveElement{host: h, id: id, tag: strings.ToLower(tag)}
	h.elements[id] = el

	return el
}

func (h *PickerHost) refs(v interface{}) []dom.Element {
	list, _ := v.([]interface{})
	out := make([]dom.Element, 0, len(list))
	for _, item := range list {
		if el := h.ref(item); el != nil {
			out = append(out, el)
		}
	}

	return out
}

// element converts without producing a typed nil interface.
func (h *PickerHost) element(v interface{}) dom.Element {
	if el := h.ref(v); el != nil {
		return el
	}

	return nil
}

func (h *PickerHost) listen(kind string, id int, typ dom.EventType, capture bool, fn dom.Listener) func() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	lid := h.nextHandle()
	h.listeners[lid] = fn
	h.mu.Unlock()

	v, err := h.call("listen", lid, kind, id, string(typ), capture)
	if added, _ := v.(bool); err != nil || !added {
		h.mu.Lock()
		delete(h.listeners, lid)
		h.mu.Unlock()
		h.logger.Debug("Failed to add listener", zap.String("type", string(typ)), zap.Error(err))
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, lid)
			h.mu.Unlock()

			if _, err := h.call("unlisten", lid); err != nil && !errors.Is(err, errBridgeGone) {
				h.logger.Debug("Failed to remove listener", zap.Error(err))
			}
		})
	}
}

func (h *PickerHost) AddEventListener(typ dom.EventType, capture bool, fn dom.Listener) func() {
	return h.listen("document", 0, typ, capture, fn)
}

func (h *PickerHost) Body() dom.Element {
	return h.element(h.read("body"))
}

func (h *PickerHost) QuerySelectorAll(selector string) ([]dom.Element, error) {
	v, err := h.call("query", selector)
	if err != nil {
		return nil, err
	}

	res, _ := v.(map[string]interface{})
	if msg := getString(res, "error"); msg != "" {
		return nil, fmt.Errorf("%w: %q: %s", dom.ErrInvalidSelector, selector, msg)
	}

	return h.refs(res["refs"]), nil
}

func (h *PickerHost) ElementFromPoint(x, y float64) dom.Element {
	return h.element(h.read("fromPoint", x, y))
}

func (h *PickerHost) ObserveChildList(fn func(added, removed []dom.Element)) func() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	oid := h.nextHandle()
	h.observers[oid] = fn
	h.mu.Unlock()

	if _, err := h.call("observe", oid); err != nil {
		h.logger.Debug("Failed to observe mutations", zap.Error(err))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.observers, oid)
			h.mu.Unlock()

			if _, err := h.call("disconnect", oid); err != nil && !errors.Is(err, errBridgeGone) {
				h.logger.Debug("Failed to disconnect observer", zap.Error(err))
			}
		})
	}
}

func (h *PickerHost) Window() dom.EventTarget {
	return windowTarget{host: h}
}

func (h *PickerHost) Overlay() dom.Overlay {
	return liveOverlay{host: h}
}

type windowTarget struct {
	host *PickerHost
}

func (w windowTarget) AddEventListener(typ dom.EventType, capture bool, fn dom.Listener) func() {
	return w.host.listen("window", 0, typ, capture, fn)
}

type liveElement struct {
	host *PickerHost
	id   int
	tag  string
}

var _ dom.Element = (*liveElement)(nil)

func (e *liveElement) TagName() string {
	return e.tag
}

func (e *liveElement) Attr(name string) (string, bool) {
	v, ok := e.host.read("attr", e.id, name).(string)
	return v, ok
}

func (e *liveElement) ClassList() []string {
	return toStrings(e.host.read("classes", e.id))
}

func (e *liveElement) Parent() dom.Element {
	return e.host.element(e.host.read("parent", e.id))
}

func (e *liveElement) Children() []dom.Element {
	return e.host.refs(e.host.read("children", e.id))
}

func (e *liveElement) IsConnected() bool {
	ok, _ := e.host.read("connected", e.id).(bool)
	return ok
}

func (e *liveElement) BoundingClientRect() dom.Rect {
	r, _ := e.host.read("rect", e.id).(map[string]interface{})

	return dom.Rect{
		Left:   getFloat(r, "left"),
		Top:    getFloat(r, "top"),
		Width:  getFloat(r, "width"),
		Height: getFloat(r, "height"),
	}
}

func (e *liveElement) InnerText() string {
	s, _ := e.host.read("text", e.id).(string)
	return s
}

func (e *liveElement) Matches(selector string) (bool, error) {
	v, err := e.host.call("matches", e.id, selector)
	if err != nil {
		return false, err
	}

	res, _ := v.(map[string]interface{})
	if msg := getString(res, "error"); msg != "" {
		return false, fmt.Errorf("%w: %q: %s", dom.ErrInvalidSelector, selector, msg)
	}

	return getBool(res, "ok"), nil
}

func (e *liveElement) AddEventListener(typ dom.EventType, capture bool, fn dom.Listener) func() {
	return e.host.listen("element", e.id, typ, capture, fn)
}

func (e *liveElement) String() string {
	return fmt.Sprintf("<%s #%d>", e.tag, e.id)
}
