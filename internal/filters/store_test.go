package filters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cosmetic-picker/internal/entity"
	"cosmetic-picker/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()

	s, err := Open(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	return s
}

func TestOpenMissingFile(t *testing.T) {
	s := openStore(t, t.TempDir())

	assert.Empty(t, s.Hosts())
	assert.Empty(t, s.Rules("example.com"))
}

func TestOpenBrokenFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644))

	s := openStore(t, dir)
	assert.Empty(t, s.Hosts())

	_, err := s.Append("example.com", entity.FilterRule{Selector: ".ad"})
	require.NoError(t, err)
	require.NoError(t, s.Save())

	reopened := openStore(t, dir)
	assert.Equal(t, []string{"example.com"}, reopened.Hosts())
}

func TestAppendAndSaveRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "rethread")
	s := openStore(t, dir)

	idx, err := s.Append("news.example.com", entity.FilterRule{Selector: "  div.promo  "})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = s.Append("news.example.com", entity.FilterRule{Selector: "article", HasText: " Sponsored "})
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = s.Append("a.example.org", entity.FilterRule{Selector: "#banner"})
	require.NoError(t, err)

	require.NoError(t, s.Save())

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "}\n"))
	assert.Contains(t, string(raw), "\n  \"filters\": {")

	var file entity.FilterFile
	require.NoError(t, json.Unmarshal(raw, &file))
	assert.Equal(t, 1, file.Version)
	assert.Equal(t, []entity.FilterRule{
		{Selector: "div.promo", CreatedAt: "1700000000"},
		{Selector: "article", HasText: "Sponsored", CreatedAt: "1700000000"},
	}, file.Filters["news.example.com"])

	reopened := openStore(t, dir)
	assert.Equal(t, []string{"a.example.org", "news.example.com"}, reopened.Hosts())
	assert.Equal(t, s.Rules("news.example.com"), reopened.Rules("news.example.com"))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestAppendRefusesDuplicates(t *testing.T) {
	s := openStore(t, t.TempDir())

	_, err := s.Append("example.com", entity.FilterRule{Selector: ".ad", HasText: "Promoted"})
	require.NoError(t, err)

	_, err = s.Append("example.com", entity.FilterRule{Selector: ".ad ", HasText: "Promoted"})
	require.ErrorIs(t, err, ErrDuplicate)
	assert.True(t, apperr.Is(err, apperr.CodeDuplicateRule))

	_, err = s.Append("example.com", entity.FilterRule{Selector: ".ad"})
	require.NoError(t, err, "a different text predicate is a different rule")

	_, err = s.Append("other.example.com", entity.FilterRule{Selector: ".ad", HasText: "Promoted"})
	require.NoError(t, err, "duplicates are per host")

	assert.Len(t, s.Rules("example.com"), 2)
}

func TestAppendValidates(t *testing.T) {
	s := openStore(t, t.TempDir())

	_, err := s.Append("", entity.FilterRule{Selector: ".ad"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = s.Append("example.com", entity.FilterRule{Selector: "   "})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = s.Append("example.com", entity.FilterRule{Selector: "div[[bad"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	assert.Empty(t, s.Hosts())
}

func TestValidSelector(t *testing.T) {
	for _, sel := range []string{"div.promo", "#ad-1", `img[src*="ads.example"]`, "ul > li:nth-of-type(2), aside"} {
		assert.True(t, ValidSelector(sel), sel)
	}
	for _, sel := range []string{"", "  ", "div[[bad", "a[href", ".ad {"} {
		assert.False(t, ValidSelector(sel), sel)
	}
}

func TestRemove(t *testing.T) {
	s := openStore(t, t.TempDir())
	for _, sel := range []string{".one", ".two", ".three"} {
		_, err := s.Append("example.com", entity.FilterRule{Selector: sel})
		require.NoError(t, err)
	}

	removed, left, err := s.Remove("example.com", 2)
	require.NoError(t, err)
	assert.Equal(t, ".two", removed.Selector)
	assert.Equal(t, 2, left)
	assert.Equal(t, ".three", s.Rules("example.com")[1].Selector)

	_, _, err = s.Remove("example.com", 0)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
	_, _, err = s.Remove("example.com", 3)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, _, err = s.Remove("missing.example.com", 1)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, _, err = s.Remove("example.com", 1)
	require.NoError(t, err)
	_, left, err = s.Remove("example.com", 1)
	require.NoError(t, err)
	assert.Zero(t, left)
	assert.Empty(t, s.Hosts(), "removing the last rule drops the host")
}

func TestRulesReturnsCopy(t *testing.T) {
	s := openStore(t, t.TempDir())
	_, err := s.Append("example.com", entity.FilterRule{Selector: ".ad"})
	require.NoError(t, err)

	rules := s.Rules("example.com")
	rules[0].Selector = "mutated"

	assert.Equal(t, ".ad", s.Rules("example.com")[0].Selector)
}

func TestOpenKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	src := `{
  "filters": {
    "example.com": [
      {"created_at": "1", "hasText": "Ad", "selector": "div"}
    ],
    "empty.example.com": []
  },
  "version": 1
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(src), 0o644))

	s := openStore(t, dir)

	assert.Equal(t, []string{"example.com"}, s.Hosts())
	assert.Equal(t, []entity.FilterRule{{Selector: "div", HasText: "Ad", CreatedAt: "1"}}, s.Rules("example.com"))
}
