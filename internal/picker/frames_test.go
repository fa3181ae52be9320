package picker

import (
	"testing"

	"cosmetic-picker/internal/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameMonitorBindsExistingAndInsertedFrames(t *testing.T) {
	doc := parse(t, articlePage)
	body := doc.Body()

	var entered []dom.Element
	m := NewFrameMonitor(doc, func(frame dom.Element) {
		entered = append(entered, frame)
	})
	defer m.Close()

	assert.Equal(t, 1, m.Bound())

	added, err := doc.AppendHTML(body, `<div class="slot"><iframe id="late" src="https://tracker.example.net/x"></iframe></div>`)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, 2, m.Bound())

	late := find(t, doc, "#late")
	doc.PointerEnter(late)
	doc.PointerEnter(find(t, doc, "#ad-frame"))
	doc.PointerEnter(find(t, doc, "h3"))

	require.Len(t, entered, 2)
	assert.Equal(t, late, entered[0])
	assert.Equal(t, "ad-frame", attrOf(entered[1], "id"))
}

func TestFrameMonitorUnbindsRemovedFrames(t *testing.T) {
	doc := parse(t, articlePage)

	added, err := doc.AppendHTML(doc.Body(), `<section><div><iframe></iframe></div></section>`)
	require.NoError(t, err)

	m := NewFrameMonitor(doc, func(dom.Element) {})
	defer m.Close()
	require.Equal(t, 2, m.Bound())

	before := doc.ListenerCount()
	doc.Remove(added[0])

	assert.Equal(t, 1, m.Bound())
	assert.Equal(t, before-1, doc.ListenerCount())
}

func TestFrameMonitorClose(t *testing.T) {
	doc := parse(t, articlePage)
	before := doc.ListenerCount()

	calls := 0
	m := NewFrameMonitor(doc, func(dom.Element) { calls++ })
	require.Equal(t, 1, doc.ObserverCount())

	m.Close()
	assert.Equal(t, 0, m.Bound())
	assert.Equal(t, 0, doc.ObserverCount())
	assert.Equal(t, before, doc.ListenerCount())

	_, err := doc.AppendHTML(doc.Body(), `<iframe></iframe>`)
	require.NoError(t, err)
	doc.PointerEnter(find(t, doc, "iframe"))
	assert.Zero(t, calls)
	assert.Equal(t, 0, m.Bound())
}

func attrOf(el dom.Element, name string) string {
	v, _ := el.Attr(name)
	return v
}
