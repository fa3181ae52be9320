package browser

import (
	"errors"
	"fmt"

	"cosmetic-picker/internal/dom"

	"go.uber.org/zap"
)

// Injected nodes are addressed by bridge node ids, never by element refs, so
// they stay invisible to the engine's own DOM queries.

type liveOverlay struct {
	host *PickerHost
}

func (o liveOverlay) NewLayer() (dom.Layer, error) {
	nid, err := o.host.create("layer")
	if err != nil {
		return nil, err
	}

	return liveLayer{node: liveNode{host: o.host, nid: nid}}, nil
}

func (o liveOverlay) NewCover() (dom.Cover, error) {
	nid, err := o.host.create("cover")
	if err != nil {
		return nil, err
	}

	return liveCover{node: liveNode{host: o.host, nid: nid}}, nil
}

func (o liveOverlay) NewPanel(onAction func(dom.PanelAction)) (dom.Panel, error) {
	nid, err := o.host.create("panel")
	if err != nil {
		return nil, err
	}

	o.host.mu.Lock()
	o.host.panels[nid] = onAction
	o.host.mu.Unlock()

	return livePanel{node: liveNode{host: o.host, nid: nid}}, nil
}

func (h *PickerHost) create(op string, args ...interface{}) (int, error) {
	v, err := h.call(op, args...)
	if err != nil {
		return 0, err
	}

	nid := toInt(v)
	if nid == 0 {
		return 0, fmt.Errorf("create %s: %w", op, errNodeGone)
	}

	return nid, nil
}

type liveNode struct {
	host *PickerHost
	nid  int
}

func (n liveNode) do(op string, args ...interface{}) {
	if _, err := n.host.call(op, append([]interface{}{n.nid}, args...)...); err != nil && !errors.Is(err, errBridgeGone) {
		n.host.logger.Debug("Overlay update failed", zap.String("op", op), zap.Int("nid", n.nid), zap.Error(err))
	}
}

func (n liveNode) remove() error {
	_, err := n.host.call("remove", n.nid)
	if errors.Is(err, errBridgeGone) {
		return nil
	}

	return err
}

type liveLayer struct {
	node liveNode
}

func (l liveLayer) NewBox(style dom.BoxStyle) (dom.Box, error) {
	kind := "match"
	if style == dom.BoxPrimary {
		kind = "primary"
	}

	nid, err := l.node.host.create("box", l.node.nid, kind)
	if err != nil {
		return nil, err
	}

	return liveBox{node: liveNode{host: l.node.host, nid: nid}}, nil
}

func (l liveLayer) Remove() error {
	return l.node.remove()
}

type liveBox struct {
	node liveNode
}

func (b liveBox) Place(r dom.Rect) {
	b.node.do("place", map[string]interface{}{
		"left":   r.Left,
		"top":    r.Top,
		"width":  r.Width,
		"height": r.Height,
	})
}

func (b liveBox) Hide() {
	b.node.do("hide")
}

func (b liveBox) Remove() error {
	return b.node.remove()
}

type liveCover struct {
	node liveNode
}

func (c liveCover) Show() {
	c.node.do("show")
}

func (c liveCover) Hide() {
	c.node.do("hide")
}

func (c liveCover) Remove() error {
	return c.node.remove()
}

type livePanel struct {
	node liveNode
}

func (p livePanel) Render(view dom.PanelView) {
	candidates := view.Candidates
	if candidates == nil {
		candidates = []string{}
	}

	p.node.do("render", map[string]interface{}{
		"targetTag":        view.TargetTag,
		"candidates":       candidates,
		"strictness":       view.Strictness,
		"selector":         view.Selector,
		"manualOverride":   view.ManualOverride,
		"canAscend":        view.CanAscend,
		"canDescend":       view.CanDescend,
		"textEnabled":      view.TextEnabled,
		"text":             view.Text,
		"matchCount":       view.MatchCount,
		"predicateWarning": view.PredicateWarning,
		"selectorWarning":  view.SelectorWarning,
	})
}

func (p livePanel) Remove() error {
	p.node.host.mu.Lock()
	delete(p.node.host.panels, p.node.nid)
	p.node.host.mu.Unlock()

	return p.node.remove()
}
