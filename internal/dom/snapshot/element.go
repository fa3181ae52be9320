package snapshot

import (
	"strings"

	"cosmetic-picker/internal/dom"

	"golang.org/x/net/html"
)

type Element struct {
	doc       *Document
	node      *html.Node
	listeners *listeners
}

var _ dom.Element = (*Element)(nil)

func (e *Element) TagName() string {
	return strings.ToLower(e.node.Data)
}

func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	return attr(e.node, name)
}

func (e *Element) ClassList() []string {
	raw, _ := e.Attr("class")

	return strings.Fields(raw)
}

func (e *Element) Parent() dom.Element {
	e.doc.mu.Lock()
	p := e.node.Parent
	e.doc.mu.Unlock()

	if p == nil || p.Type != html.ElementNode {
		return nil
	}

	return e.doc.wrap(p)
}

func (e *Element) Children() []dom.Element {
	e.doc.mu.Lock()
	var kids []*html.Node
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			kids = append(kids, c)
		}
	}
	e.doc.mu.Unlock()

	out := make([]dom.Element, 0, len(kids))
	for _, c := range kids {
		out = append(out, e.doc.wrap(c))
	}

	return out
}

func (e *Element) IsConnected() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	return e.doc.connected(e.node)
}

func (e *Element) BoundingClientRect() dom.Rect {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	return e.doc.rects[e.node]
}

// InnerText approximates rendered text: script-like content is skipped and
// whitespace runs collapse to a single space.
func (e *Element) InnerText() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var b strings.Builder
	collectText(e.node, &b)

	return strings.Join(strings.Fields(b.String()), " ")
}

func (e *Element) Matches(selector string) (bool, error) {
	group, err := compile(selector)
	if err != nil {
		return false, err
	}

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	return group.Match(e.node), nil
}

func (e *Element) AddEventListener(typ dom.EventType, capture bool, fn dom.Listener) func() {
	return e.listeners.add(typ, capture, fn)
}

func (e *Element) String() string {
	return "<" + e.TagName() + ">"
}

var hiddenText = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

// blockBreak lists the elements whose boundaries separate words in rendered
// text. Inline elements join their neighbours directly.
var blockBreak = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"body": true, "br": true, "caption": true, "dd": true, "details": true,
	"dialog": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "option": true, "p": true, "pre": true, "section": true,
	"summary": true, "table": true, "tbody": true, "td": true, "tfoot": true,
	"th": true, "thead": true, "tr": true, "ul": true,
}

func collectText(n *html.Node, b *strings.Builder) {
	block := false
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if hiddenText[tag] {
			return
		}
		block = blockBreak[tag]
	}

	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if block {
		b.WriteByte(' ')
	}
}
