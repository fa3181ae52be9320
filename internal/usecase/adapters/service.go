package adapters

import (
	"context"

	"cosmetic-picker/internal/entity"
)

type BrowserService interface {
	ActivePage(ctx context.Context) (*entity.PageInfo, error)
	EvaluateJS(ctx context.Context, script string) (interface{}, error)
	IsReady() bool
}

type FilterService interface {
	AddFilter(ctx context.Context, hostOverride string) (*entity.PickerOutcome, error)
	ListFilters() []entity.HostFilters
	RemoveFilter(ctx context.Context, host string, index int) (entity.FilterRule, error)
	Sync(ctx context.Context) (int, error)
	CheckFilters(host, html string) ([]entity.RuleReport, error)
	CheckActivePage(ctx context.Context, hostOverride string) (string, []entity.RuleReport, error)
	RenderScript(host string) (string, error)
	Open(ctx context.Context, rawURL string) error
	Screenshot(ctx context.Context, path string) error
}
