package ports

import (
	"context"

	"cosmetic-picker/internal/dom"
	"cosmetic-picker/internal/entity"
)

type BrowserManager interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	ActivePage(ctx context.Context) (*entity.PageInfo, error)
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	EvaluateJS(ctx context.Context, script string) (interface{}, error)
	InstallUserScript(ctx context.Context, id, source string) error
	RemoveUserScript(ctx context.Context, id string) error
	NewPickerHost(ctx context.Context) (PickerHost, error)
	IsReady() bool
}

// PickerHost is a document the picker can run against for as long as Gone
// stays open.
type PickerHost interface {
	dom.Document

	Gone() <-chan struct{}
	Close() error
}

type FilterStore interface {
	Path() string
	Hosts() []string
	Rules(host string) []entity.FilterRule
	Append(host string, rule entity.FilterRule) (int, error)
	Remove(host string, index int) (entity.FilterRule, int, error)
	Save() error
}
