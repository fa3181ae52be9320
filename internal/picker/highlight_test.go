package picker

import (
	"testing"

	"cosmetic-picker/internal/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighlighterBoxCountFollowsMatches(t *testing.T) {
	doc := parse(t, feedPage())
	articles, err := doc.QuerySelectorAll("article")
	require.NoError(t, err)

	h, err := NewHighlighter(doc)
	require.NoError(t, err)
	defer h.Close()

	layer := doc.Injected().Layers()[0]

	for _, n := range []int{3, 1, 5, 0, 2} {
		h.SetHighlights(articles[0], articles[:n])

		assert.Equal(t, n, h.MatchBoxes())
		assert.Len(t, layer.Boxes(dom.BoxMatch), n)
		assert.Len(t, layer.Boxes(dom.BoxPrimary), 1)

		for i, box := range layer.Boxes(dom.BoxMatch) {
			assert.True(t, box.Visible())
			assert.Equal(t, articles[i].BoundingClientRect(), box.Rect())
		}
	}
}

func TestHighlighterRepositionsOnScrollAndResize(t *testing.T) {
	doc := parse(t, articlePage)
	span := find(t, doc, "span.badge")
	h3 := find(t, doc, "h3")

	h, err := NewHighlighter(doc)
	require.NoError(t, err)
	defer h.Close()

	h.SetHighlights(span, []dom.Element{h3})

	layer := doc.Injected().Layers()[0]
	primary := layer.Boxes(dom.BoxPrimary)[0]
	match := layer.Boxes(dom.BoxMatch)[0]
	assert.Equal(t, dom.Rect{Left: 20, Top: 60, Width: 100, Height: 20}, primary.Rect())

	doc.SetRect(span, dom.Rect{Left: 20, Top: -40, Width: 100, Height: 20})
	doc.SetRect(h3, dom.Rect{Left: 20, Top: -80, Width: 400, Height: 30})
	doc.Scroll()

	assert.Equal(t, dom.Rect{Left: 20, Top: -40, Width: 100, Height: 20}, primary.Rect())
	assert.Equal(t, dom.Rect{Left: 20, Top: -80, Width: 400, Height: 30}, match.Rect())

	doc.SetRect(span, dom.Rect{Left: 0, Top: 0, Width: 50, Height: 10})
	doc.Resize()

	assert.Equal(t, dom.Rect{Left: 0, Top: 0, Width: 50, Height: 10}, primary.Rect())
}

func TestHighlighterHidesDetachedElements(t *testing.T) {
	doc := parse(t, articlePage)
	span := find(t, doc, "span.badge")
	h3 := find(t, doc, "h3")

	h, err := NewHighlighter(doc)
	require.NoError(t, err)
	defer h.Close()

	h.SetHighlights(span, []dom.Element{h3})
	layer := doc.Injected().Layers()[0]

	doc.Remove(h3)
	doc.Scroll()

	assert.True(t, layer.Boxes(dom.BoxPrimary)[0].Visible())
	assert.False(t, layer.Boxes(dom.BoxMatch)[0].Visible())
}

func TestHighlighterCloseReleasesEverything(t *testing.T) {
	doc := parse(t, feedPage())
	articles, err := doc.QuerySelectorAll("article")
	require.NoError(t, err)

	before := doc.ListenerCount()

	h, err := NewHighlighter(doc)
	require.NoError(t, err)
	assert.Equal(t, before+2, doc.ListenerCount())

	h.SetHighlights(articles[2], articles)
	require.NoError(t, h.Close())

	assert.Equal(t, 0, doc.Injected().NodeCount())
	assert.Equal(t, before, doc.ListenerCount())
}
