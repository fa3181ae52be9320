package picker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentCandidate(t *testing.T) {
	doc := parse(t, articlePage)
	span := find(t, doc, "span.badge")
	card := find(t, doc, "div.card")
	post := find(t, doc, "#post-42")

	assert.Equal(t, card, ParentCandidate(span))
	assert.Equal(t, post, ParentCandidate(card))
	assert.Nil(t, ParentCandidate(post), "ascent stops below body")
	assert.Nil(t, ParentCandidate(doc.Body()))
	assert.Nil(t, ParentCandidate(nil))

	doc.Remove(card)
	assert.Nil(t, ParentCandidate(span), "detached elements have no parent candidate")
}

func TestChildCandidateWalksBackTowardsOriginal(t *testing.T) {
	doc := parse(t, articlePage)
	em := find(t, doc, "em")
	p := em.Parent()
	card := find(t, doc, "div.card")
	post := find(t, doc, "#post-42")

	assert.Equal(t, card, ChildCandidate(post, em))
	assert.Equal(t, p, ChildCandidate(card, em))
	assert.Equal(t, em, ChildCandidate(p, em))
}

func TestChildCandidateFallsBackToFirstChild(t *testing.T) {
	doc := parse(t, articlePage)
	card := find(t, doc, "div.card")
	h3 := find(t, doc, "h3")
	em := find(t, doc, "em")

	assert.Equal(t, h3, ChildCandidate(card, nil))
	assert.Equal(t, h3, ChildCandidate(card, card))
	assert.Nil(t, ChildCandidate(em, em), "leaf has no child")

	unrelated := find(t, doc, "iframe")
	assert.Equal(t, h3, ChildCandidate(card, unrelated))

	doc.Remove(em)
	assert.Equal(t, h3, ChildCandidate(card, em), "a detached original is ignored")
}

func TestChildCandidateSkipsIframes(t *testing.T) {
	doc := parse(t, `<html><body><iframe><p>fallback</p></iframe></body></html>`)
	frame := find(t, doc, "iframe")

	assert.Nil(t, ChildCandidate(frame, nil))
}

func TestAscendDescendRoundTrip(t *testing.T) {
	doc := parse(t, articlePage)
	em := find(t, doc, "em")

	current := em
	var path []string
	for next := ParentCandidate(current); next != nil; next = ParentCandidate(current) {
		path = append(path, next.TagName())
		current = next
	}
	require.Equal(t, []string{"p", "div", "div"}, path)

	for i := 0; i < len(path); i++ {
		current = ChildCandidate(current, em)
		require.NotNil(t, current)
	}
	assert.Equal(t, em, current)
}
