package usecase

import (
	"cosmetic-picker/internal/config"
	"cosmetic-picker/internal/ports"
	"cosmetic-picker/internal/usecase/adapters"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	Filters adapters.FilterService
	Browser adapters.BrowserService
}

type Params struct {
	fx.In

	Logger  *zap.Logger
	Config  *config.Config
	Browser ports.BrowserManager
	Store   ports.FilterStore
}

func NewUsecase(params Params) *Service {
	factory := newServiceFactory(params)

	return &Service{
		Filters: factory.CreateFilterService(),
		Browser: factory.CreateBrowserService(),
	}
}
