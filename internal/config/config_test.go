package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("FILTERS_CONFIG_DIR", "")

	conf, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", conf.AppConfig.LogLevel)
	assert.Equal(t, 30000, conf.BrowserConfig.Timeout)
	assert.Equal(t, 2, conf.PickerConfig.DefaultStrictness)
	assert.Equal(t, filepath.Join(xdg, "rethread"), conf.FilterConfig.ConfigDir)
}

func TestGetConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FILTERS_CONFIG_DIR", dir)
	t.Setenv("PICKER_DEFAULT_STRICTNESS", "3")
	t.Setenv("LOG_FILE", filepath.Join(dir, "picker.log"))

	conf, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, dir, conf.FilterConfig.ConfigDir)
	assert.Equal(t, 3, conf.PickerConfig.DefaultStrictness)
	assert.Equal(t, filepath.Join(dir, "picker.log"), conf.AppConfig.LogFile)
}

func TestGetConfigRejectsStrictnessOutOfRange(t *testing.T) {
	t.Setenv("FILTERS_CONFIG_DIR", t.TempDir())
	t.Setenv("PICKER_DEFAULT_STRICTNESS", "7")

	_, err := GetConfig()
	require.Error(t, err)
}
