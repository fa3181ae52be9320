package picker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeIdent(t *testing.T) {
	cases := map[string]string{
		"card":       "card",
		"ad-label":   "ad-label",
		"md:flex":    `md\:flex`,
		"1col":       `\31 col`,
		"-2x":        `-\32 x`,
		"-":          `\-`,
		"w-1/2":      `w-1\/2`,
		"a.b":        `a\.b`,
		"héllo":      "héllo",
		"tab\there":  `tab\9 here`,
		"[data]":     `\[data\]`,
		"_private42": "_private42",
	}

	for in, want := range cases {
		assert.Equal(t, want, EscapeIdent(in), "input %q", in)
	}
}

func TestQuoteAttr(t *testing.T) {
	assert.Equal(t, `"plain"`, QuoteAttr("plain"))
	assert.Equal(t, `"say \"hi\""`, QuoteAttr(`say "hi"`))
	assert.Equal(t, `"back\\slash"`, QuoteAttr(`back\slash`))
	assert.Equal(t, `"line\a break"`, QuoteAttr("line\nbreak"))
}
