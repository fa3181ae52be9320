package picker

import (
	"cosmetic-picker/internal/dom"
)

// ParentCandidate is the element "select parent" moves to. Ascent stops below
// <body>.
func ParentCandidate(current dom.Element) dom.Element {
	if dom.Live(current) == nil {
		return nil
	}

	parent := current.Parent()
	if parent == nil || dom.IsRoot(parent) {
		return nil
	}

	return parent
}

// ChildCandidate is the element "select child" moves to: the next step back
// down towards original when original lies below current, otherwise current's
// first element child. Iframe content is not traversable.
func ChildCandidate(current, original dom.Element) dom.Element {
	if dom.Live(current) == nil || current.TagName() == "iframe" {
		return nil
	}

	if original = dom.Live(original); original != nil && original != current {
		for n := original; n != nil; n = n.Parent() {
			if n.Parent() == current {
				return n
			}
		}
	}

	children := current.Children()
	if len(children) == 0 {
		return nil
	}

	return children[0]
}
