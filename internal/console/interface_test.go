package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"cosmetic-picker/internal/entity"
	"cosmetic-picker/internal/usecase"
	"cosmetic-picker/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeFilters struct {
	added   []string
	removed []string
	opened  []string
	outcome *entity.PickerOutcome
	addErr  error
	list    []entity.HostFilters
}

func (f *fakeFilters) AddFilter(_ context.Context, host string) (*entity.PickerOutcome, error) {
	f.added = append(f.added, host)
	return f.outcome, f.addErr
}

func (f *fakeFilters) ListFilters() []entity.HostFilters { return f.list }

func (f *fakeFilters) RemoveFilter(_ context.Context, host string, index int) (entity.FilterRule, error) {
	f.removed = append(f.removed, host)
	if index != 1 {
		return entity.FilterRule{}, apperr.NotFoundError("RemoveFilter", assert.AnError)
	}

	return entity.FilterRule{Selector: ".ad"}, nil
}

func (f *fakeFilters) Sync(context.Context) (int, error) { return 2, nil }

func (f *fakeFilters) CheckFilters(string, string) ([]entity.RuleReport, error) { return nil, nil }

func (f *fakeFilters) CheckActivePage(_ context.Context, host string) (string, []entity.RuleReport, error) {
	return "example.com", []entity.RuleReport{
		{Index: 1, Rule: entity.FilterRule{Selector: ".ad"}, Matches: 3},
		{Index: 2, Rule: entity.FilterRule{Selector: "div[["}, Invalid: true},
	}, nil
}

func (f *fakeFilters) RenderScript(string) (string, error) { return "", nil }

func (f *fakeFilters) Open(_ context.Context, url string) error {
	f.opened = append(f.opened, url)
	return nil
}

func (f *fakeFilters) Screenshot(context.Context, string) error { return nil }

type fakeBrowser struct {
	ready   bool
	scripts []string
	result  interface{}
}

func (b *fakeBrowser) ActivePage(context.Context) (*entity.PageInfo, error) {
	return &entity.PageInfo{URL: "https://example.com/", Title: "Example Domain"}, nil
}

func (b *fakeBrowser) EvaluateJS(_ context.Context, script string) (interface{}, error) {
	b.scripts = append(b.scripts, script)
	return b.result, nil
}

func (b *fakeBrowser) IsReady() bool { return b.ready }

func run(t *testing.T, filters *fakeFilters, input string) string {
	t.Helper()

	return runWith(t, filters, &fakeBrowser{ready: true}, input)
}

func runWith(t *testing.T, filters *fakeFilters, browser *fakeBrowser, input string) string {
	t.Helper()

	var out bytes.Buffer
	i := NewInterface(Params{
		Logger:  zaptest.NewLogger(t),
		Usecase: &usecase.Service{Filters: filters, Browser: browser},
	})
	i.in = strings.NewReader(input)
	i.out = &out

	require.NoError(t, i.Start())

	return out.String()
}

func TestListAndRemove(t *testing.T) {
	filters := &fakeFilters{list: []entity.HostFilters{{
		Host: "example.com",
		Rules: []entity.FilterRule{
			{Selector: ".ad"},
			{Selector: "article", HasText: "Sponsored"},
		},
	}}}

	out := run(t, filters, "list\nrm example.com 1\nrm example.com 7\nrm example.com x\nexit\nlist\n")

	assert.Contains(t, out, "example.com\n  1. .ad\n  2. article  has-text \"Sponsored\"\n")
	assert.Contains(t, out, "Removed from example.com: .ad")
	assert.Contains(t, out, "index must be a number")
	assert.Equal(t, []string{"example.com", "example.com"}, filters.removed)
	assert.Equal(t, 1, strings.Count(out, "example.com\n  1."), "commands after exit must not run")
}

func TestPickOutcomes(t *testing.T) {
	filters := &fakeFilters{outcome: &entity.PickerOutcome{
		Host: "example.com",
		Rule: &entity.FilterRule{Selector: "div.promo"},
	}}
	out := run(t, filters, "pick\npick cdn.example.com\n")
	assert.Equal(t, []string{"", "cdn.example.com"}, filters.added)
	assert.Contains(t, out, "Saved for example.com: div.promo")

	filters = &fakeFilters{outcome: &entity.PickerOutcome{Host: "example.com"}}
	out = run(t, filters, "add\n")
	assert.Contains(t, out, "Picker cancelled.")

	filters = &fakeFilters{addErr: apperr.WrapErrorWithReason("AddFilter", apperr.CodeCancelledByUser, "context_cancelled")}
	out = run(t, filters, "p\n")
	assert.Contains(t, out, "Picker cancelled.")
	assert.NotContains(t, out, "❌")
}

func TestMiscCommands(t *testing.T) {
	filters := &fakeFilters{}
	out := run(t, filters, "open example.com\nopen\nsync\ncheck\nfrobnicate\nls\n")

	assert.Equal(t, []string{"example.com"}, filters.opened)
	assert.Contains(t, out, "usage: open <url>")
	assert.Contains(t, out, "Installed 2 userscript(s)")
	assert.Contains(t, out, "1. .ad  [3 match(es)]")
	assert.Contains(t, out, "2. div[[  [invalid selector]")
	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "No filters stored.")
}

func TestEvalAndPage(t *testing.T) {
	browser := &fakeBrowser{ready: true, result: map[string]interface{}{"count": float64(3)}}
	out := runWith(t, &fakeFilters{}, browser, "eval document.querySelectorAll('.ad').length\neval\npage\n")

	assert.Equal(t, []string{"document.querySelectorAll('.ad').length"}, browser.scripts)
	assert.Contains(t, out, "{\n  \"count\": 3\n}")
	assert.Contains(t, out, "usage: eval <javascript>")
	assert.Contains(t, out, "Example Domain\nhttps://example.com/\n")

	browser = &fakeBrowser{}
	out = runWith(t, &fakeFilters{}, browser, "js 1 + 1\npage\n")
	assert.Empty(t, browser.scripts)
	assert.Equal(t, 2, strings.Count(out, "browser_not_ready"))
}

func TestStopEndsLoop(t *testing.T) {
	i := NewInterface(Params{
		Logger:  zaptest.NewLogger(t),
		Usecase: &usecase.Service{Filters: &fakeFilters{}},
	})
	i.in = strings.NewReader("list\n")
	i.out = &bytes.Buffer{}

	require.NoError(t, i.Stop())
	require.NoError(t, i.Stop())
	assert.Error(t, i.ctx.Err())
	require.NoError(t, i.Start())
}
