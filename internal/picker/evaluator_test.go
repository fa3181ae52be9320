package picker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSelectorOnly(t *testing.T) {
	doc := parse(t, feedPage())
	first := find(t, doc, "article")

	ev := Evaluate(doc, EvalInput{Selector: "article.feed-item", Primary: first, Original: first, Locked: true})

	assert.Len(t, ev.Matches, 5)
	assert.Len(t, ev.Others, 4)
	assert.NotContains(t, ev.Others, first)
	assert.False(t, ev.InvalidSelector)
	assert.False(t, ev.PredicateWarning)
	assert.False(t, ev.SelectorWarning)
}

func TestEvaluateTextPredicate(t *testing.T) {
	doc := parse(t, feedPage())
	articles, err := doc.QuerySelectorAll("article")
	require.NoError(t, err)

	tests := []struct {
		name        string
		predicate   string
		original    int
		wantMatches int
		wantWarning bool
	}{
		{name: "blank predicate is ignored", predicate: "   ", original: 0, wantMatches: 5},
		{name: "case insensitive", predicate: "sponsored", original: 1, wantMatches: 2},
		{name: "trimmed", predicate: "  SPONSORED ", original: 3, wantMatches: 2},
		{name: "original excluded", predicate: "Sponsored", original: 0, wantMatches: 2, wantWarning: true},
		{name: "nothing left", predicate: "unrelated", original: 2, wantMatches: 0, wantWarning: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluate(doc, EvalInput{
				Selector:  "article.feed-item",
				Predicate: tt.predicate,
				Primary:   articles[tt.original],
				Original:  articles[tt.original],
				Locked:    true,
			})

			assert.Len(t, ev.Matches, tt.wantMatches)
			assert.Equal(t, tt.wantWarning, ev.PredicateWarning)
			assert.False(t, ev.SelectorWarning)
			if tt.wantMatches < 5 {
				for _, el := range ev.Matches {
					assert.True(t, TextContains(el, strings.TrimSpace(tt.predicate)))
				}
			}
		})
	}
}

func TestEvaluateInvalidSelector(t *testing.T) {
	doc := parse(t, articlePage)
	span := find(t, doc, "span.badge")

	ev := Evaluate(doc, EvalInput{Selector: "div[[bad", Primary: span, Original: span, Locked: true})

	assert.True(t, ev.InvalidSelector)
	assert.Empty(t, ev.Matches)
	assert.Empty(t, ev.Others)
	assert.True(t, ev.SelectorWarning)
}

func TestEvaluateSelectorMissesPrimary(t *testing.T) {
	doc := parse(t, articlePage)
	span := find(t, doc, "span.badge")

	ev := Evaluate(doc, EvalInput{Selector: "p", Primary: span, Original: span, Locked: true})
	assert.Len(t, ev.Matches, 2)
	assert.Len(t, ev.Others, 2)
	assert.True(t, ev.SelectorWarning)

	ev = Evaluate(doc, EvalInput{Selector: "p", Primary: span, Original: span})
	assert.False(t, ev.SelectorWarning, "unlocked evaluation never warns")
}

func TestEvaluateWithoutOriginal(t *testing.T) {
	doc := parse(t, feedPage())
	feed := find(t, doc, "#feed")

	ev := Evaluate(doc, EvalInput{Selector: "article", Predicate: "nowhere", Primary: feed, Locked: true})

	assert.Empty(t, ev.Matches)
	assert.False(t, ev.PredicateWarning)
	assert.True(t, ev.SelectorWarning)
}

func TestTextContainsSeesDescendants(t *testing.T) {
	doc := parse(t, articlePage)
	second := find(t, doc, "div.card > p:nth-of-type(2)")

	assert.True(t, TextContains(second, "second PARAGRAPH"))
	assert.False(t, TextContains(second, "first"))
}
