package picker

import (
	"strings"

	"cosmetic-picker/internal/dom"
)

type EvalInput struct {
	Selector  string
	Predicate string
	// Primary is drawn with its own box and never reported in Others.
	Primary dom.Element
	// Original is the clicked element the predicate is checked against.
	Original dom.Element
	Locked   bool
}

type Evaluation struct {
	// Matches is every element satisfying the selector and predicate.
	Matches []dom.Element
	// Others is Matches without the primary element.
	Others           []dom.Element
	InvalidSelector  bool
	PredicateWarning bool
	SelectorWarning  bool
}

// Evaluate runs the selector against the whole document and narrows the
// result by the text predicate. A selector that does not parse yields no
// matches.
func Evaluate(doc dom.Document, in EvalInput) Evaluation {
	var out Evaluation

	predicate := strings.TrimSpace(in.Predicate)

	matches, err := doc.QuerySelectorAll(in.Selector)
	if err != nil {
		out.InvalidSelector = true
		matches = nil
	}

	for _, el := range matches {
		if predicate != "" && !TextContains(el, predicate) {
			continue
		}
		out.Matches = append(out.Matches, el)
		if el != in.Primary {
			out.Others = append(out.Others, el)
		}
	}

	if predicate != "" && in.Original != nil && !TextContains(in.Original, predicate) {
		out.PredicateWarning = true
	}

	if in.Locked && in.Primary != nil {
		ok, err := in.Primary.Matches(in.Selector)
		out.SelectorWarning = err != nil || !ok
	}

	return out
}

// TextContains reports whether el's rendered text contains needle, ignoring
// case.
func TextContains(el dom.Element, needle string) bool {
	return strings.Contains(strings.ToLower(el.InnerText()), strings.ToLower(needle))
}
