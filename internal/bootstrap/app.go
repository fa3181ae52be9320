package bootstrap

import (
	"time"

	"cosmetic-picker/internal/browser"
	"cosmetic-picker/internal/config"
	"cosmetic-picker/internal/console"
	"cosmetic-picker/internal/filters"
	"cosmetic-picker/internal/ports"
	"cosmetic-picker/internal/usecase"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Core provides everything but the console: config, logging, tracing, the
// browser manager, the filter store and the use cases.
func Core() fx.Option {
	return fx.Options(
		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			fx.Annotate(browser.NewManager, fx.As(new(ports.BrowserManager))),
			newFilterStore,

			usecase.NewUsecase,
		),

		fx.Invoke(func(*sdktrace.TracerProvider) {}),

		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
	)
}

// NewApp is the interactive console: the browser is launched on start and
// closed on stop.
func NewApp() *fx.App {
	return fx.New(
		Core(),

		fx.Provide(
			console.NewInterface,
		),

		fx.Invoke(
			runConsole,
		),

		fx.StartTimeout(2*time.Minute),
	)
}

// NewCommandApp builds the graph without a browser session and fills targets
// from it, for one-shot commands.
func NewCommandApp(targets ...interface{}) *fx.App {
	return fx.New(
		Core(),
		fx.Populate(targets...),
	)
}

func newFilterStore(cfg *config.Config, logger *zap.Logger) (ports.FilterStore, error) {
	return filters.Open(cfg.FilterConfig.ConfigDir, logger)
}
