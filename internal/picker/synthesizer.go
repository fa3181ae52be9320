package picker

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"cosmetic-picker/internal/dom"
)

// Strictness levels, from loosest to most specific.
const (
	LevelLoose = iota
	LevelStructural
	LevelAttribute
	LevelStrict

	NumLevels
)

const (
	pathAncestors = 2
	minClassLen   = 3
	minPrefixPos  = 3
)

var plainID = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Synthesize returns one selector per strictness level for el. It reads the
// live tree on every call; two calls without a mutation in between return the
// same list.
func Synthesize(el dom.Element) []string {
	if el == nil || dom.IsRoot(el) {
		return []string{"body", "body", "body", "body"}
	}

	tag := strings.ToLower(el.TagName())
	parent := el.Parent()

	loose := tag
	structural := tag
	if parent != nil {
		structural = structuralSegment(el, parent)
	}

	attrs := attributeCandidates(el, tag)
	attribute := structural
	if len(attrs) > 0 {
		attribute = attrs[0]
	}

	var strict string
	switch {
	case len(attrs) > 1:
		strict = attrs[1]
	case parent == nil:
		strict = tag
	default:
		strict = strictPath(el, parent)
	}

	return []string{loose, structural, attribute, strict}
}

// structuralSegment is tag plus :nth-of-type when el is not the first of its
// tag among its siblings.
func structuralSegment(el, parent dom.Element) string {
	tag := strings.ToLower(el.TagName())

	nth := 0
	for _, sib := range parent.Children() {
		if strings.ToLower(sib.TagName()) == tag {
			nth++
		}
		if sib == el {
			break
		}
	}

	if nth <= 1 {
		return tag
	}

	return fmt.Sprintf("%s:nth-of-type(%d)", tag, nth)
}

func attributeCandidates(el dom.Element, tag string) []string {
	var out []string

	if tag == "img" || tag == "iframe" {
		if src, ok := el.Attr("src"); ok && strings.TrimSpace(src) != "" {
			out = append(out, fmt.Sprintf("%s[src*=%s]", tag, QuoteAttr(srcFragment(src))))
		}
	}

	if id, ok := el.Attr("id"); ok && id != "" {
		if plainID.MatchString(id) {
			out = append(out, "#"+EscapeIdent(id))
		} else {
			out = append(out, "[id="+QuoteAttr(id)+"]")
		}

		if prefix, ok := idPrefix(id); ok {
			out = append(out, "[id^="+QuoteAttr(prefix)+"]")
		}
	}

	if suffix := classSuffix(el); suffix != "" {
		out = append(out, tag+suffix)
	}

	return out
}

// srcFragment picks the stable part of a resource URL: its host without a
// leading "www.", else the first path segment that looks like a file name,
// else the raw value.
func srcFragment(src string) string {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return src
	}

	if host := strings.TrimPrefix(u.Hostname(), "www."); host != "" {
		return host
	}

	for _, seg := range strings.Split(u.Path, "/") {
		if strings.Contains(seg, ".") && seg != "." && seg != ".." {
			return seg
		}
	}

	return src
}

// idPrefix returns the part of id before its first digit past position 2,
// for ids that look like "post-42" or "ad_slot_7".
func idPrefix(id string) (string, bool) {
	for i, r := range []rune(id) {
		if i >= minPrefixPos && unicode.IsDigit(r) {
			return string([]rune(id)[:i]), true
		}
	}

	return "", false
}

func goodClasses(el dom.Element) []string {
	var out []string
	for _, c := range el.ClassList() {
		if utf8.RuneCountInString(c) < minClassLen || strings.Contains(c, ":") {
			continue
		}
		if r := []rune(c)[0]; r >= '0' && r <= '9' {
			continue
		}
		out = append(out, c)
	}

	return out
}

func classSuffix(el dom.Element) string {
	var b strings.Builder
	for _, c := range goodClasses(el) {
		b.WriteByte('.')
		b.WriteString(EscapeIdent(c))
	}

	return b.String()
}

// strictPath is up to two ancestor tags (never <body> or above) followed by
// el's structural segment and its class suffix.
func strictPath(el, parent dom.Element) string {
	segments := []string{structuralSegment(el, parent) + classSuffix(el)}

	for anc := parent; anc != nil && len(segments) <= pathAncestors && !dom.IsRoot(anc); anc = anc.Parent() {
		segments = append([]string{strings.ToLower(anc.TagName())}, segments...)
	}

	return strings.Join(segments, " > ")
}
