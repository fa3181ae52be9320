package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"cosmetic-picker/internal/config"
	"cosmetic-picker/internal/console"
	"cosmetic-picker/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestGraphIsComplete(t *testing.T) {
	require.NoError(t, fx.ValidateApp(
		Core(),
		fx.Provide(console.NewInterface),
		fx.Invoke(runConsole),
	))

	var svc *usecase.Service
	require.NoError(t, fx.ValidateApp(Core(), fx.Populate(&svc)))
}

func TestLoggerTeesIntoRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picker.log")

	logger, err := newLogger(&config.Config{AppConfig: &config.AppConfig{
		LogLevel:      "debug",
		LogFile:       path,
		LogMaxSizeMB:  1,
		LogMaxBackups: 1,
	}})
	require.NoError(t, err)

	logger.Debug("Rule saved")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Rule saved"`)
}

func TestLoggerWithoutFile(t *testing.T) {
	logger, err := newLogger(&config.Config{AppConfig: &config.AppConfig{LogLevel: "warn"}})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
}
