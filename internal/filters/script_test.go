package filters

import (
	"strings"
	"testing"

	"cosmetic-picker/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptID(t *testing.T) {
	tests := map[string]string{
		"example.com":            "cosmetic-filter-example.com",
		"sub_domain.example.org": "cosmetic-filter-sub_domain.example.org",
		"host:8080":              "cosmetic-filter-host-8080",
		"weird host//name":       "cosmetic-filter-weird-host-name",
	}

	for host, want := range tests {
		assert.Equal(t, want, ScriptID(host), host)
	}
}

func TestMatchPattern(t *testing.T) {
	assert.Equal(t, "*://news.example.com/*", MatchPattern("news.example.com"))
}

func TestRenderUserScript(t *testing.T) {
	rules := []entity.FilterRule{
		{Selector: "div.promo", CreatedAt: "1700000000"},
		{Selector: "article", HasText: "Sponsored"},
		{Selector: "  "},
	}

	script, err := RenderUserScript("news.example.com", rules)
	require.NoError(t, err)

	assert.Contains(t, script, "// @match       *://news.example.com/*")
	assert.Contains(t, script, `location.hostname !== "news.example.com"`)
	assert.Contains(t, script, `const CSS = "div.promo { display: none !important; }";`)
	assert.Contains(t, script, `"selector": "article"`)
	assert.Contains(t, script, `"hasText": "Sponsored"`)
	assert.NotContains(t, script, "created_at")
	assert.NotContains(t, script, "__COSMETIC_PICKER_")
	assert.Equal(t, 1, strings.Count(script, `"selector"`))
}

func TestRenderUserScriptDropsUnparseableSelectors(t *testing.T) {
	script, err := RenderUserScript("example.com", []entity.FilterRule{
		{Selector: "div[[bad"},
		{Selector: ".ad"},
		{Selector: "p[[", HasText: "promo"},
	})
	require.NoError(t, err)

	assert.Contains(t, script, `const CSS = ".ad { display: none !important; }";`)
	assert.NotContains(t, script, "[[")
	assert.Equal(t, 3, strings.Count(script, "CONFIG = [];"), "no text rules survive")
}

func TestRenderUserScriptEscapesHost(t *testing.T) {
	script, err := RenderUserScript(`evil"host`, []entity.FilterRule{{Selector: ".ad"}})
	require.NoError(t, err)

	assert.Contains(t, script, `location.hostname !== "evil\"host"`)

	_, err = RenderUserScript("", nil)
	assert.Error(t, err)
}

func TestStylesheet(t *testing.T) {
	css := Stylesheet([]entity.FilterRule{
		{Selector: "div.promo"},
		{Selector: "article", HasText: "Sponsored"},
		{Selector: "#banner "},
		{Selector: ""},
		{Selector: "div[[bad"},
	})

	assert.Equal(t, "div.promo { display: none !important; }\n#banner { display: none !important; }", css)
	assert.Empty(t, Stylesheet(nil))
}
