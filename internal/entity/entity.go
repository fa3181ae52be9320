package entity

import (
	"strings"
	"time"
)

// FilterRule is one cosmetic filter: hide every element matching Selector
// whose rendered text contains HasText (case-insensitive) when HasText is set.
type FilterRule struct {
	Selector  string `json:"selector"`
	HasText   string `json:"hasText,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SameAs reports whether r and other hide the same elements.
func (r FilterRule) SameAs(other FilterRule) bool {
	return r.Selector == other.Selector && r.HasText == other.HasText
}

// Normalize trims the rule and drops a blank text predicate.
func (r FilterRule) Normalize() FilterRule {
	r.Selector = strings.TrimSpace(r.Selector)
	r.HasText = strings.TrimSpace(r.HasText)

	return r
}

type FilterFile struct {
	Version int                     `json:"version"`
	Filters map[string][]FilterRule `json:"filters"`
}

type PageInfo struct {
	URL   string
	Title string
}

type RuleReport struct {
	Index   int
	Rule    FilterRule
	Matches int
	Invalid bool
}

type PickerOutcome struct {
	SessionID string
	Host      string
	Rule      *FilterRule
	Saved     bool
	Duplicate bool
	Elapsed   time.Duration
}

type HostFilters struct {
	Host  string
	Rules []FilterRule
}
