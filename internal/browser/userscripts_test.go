package browser

import (
	"context"
	"testing"

	"cosmetic-picker/internal/config"
	"cosmetic-picker/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRegistration(t *testing.T) {
	src, err := registration("cosmetic-filter-example.com", "document.body.dataset.x = '1';")
	require.NoError(t, err)

	assert.Contains(t, src, `registry.scripts["cosmetic-filter-example.com"] = function() {`)
	assert.Contains(t, src, "document.body.dataset.x = '1';")
	assert.Contains(t, src, "setTimeout(")

	removal, err := registration(`odd"id`, "")
	require.NoError(t, err)
	assert.Contains(t, removal, `registry.scripts["odd\"id"] = null;`)
}

func TestScriptRegistry(t *testing.T) {
	r := newScriptRegistry()

	assert.False(t, r.has("a"))
	assert.Equal(t, 1, r.record("a", true))
	assert.Equal(t, 2, r.record("a", true))
	assert.True(t, r.has("a"))

	assert.Zero(t, r.record("a", false))
	assert.False(t, r.has("a"))
}

func TestUserScriptsNeedRunningBrowser(t *testing.T) {
	m := NewManager(Params{
		Config: &config.Config{BrowserConfig: &config.BrowserConfig{}},
		Logger: zaptest.NewLogger(t),
	})

	err := m.InstallUserScript(context.Background(), "cosmetic-filter-a", "void 0;")
	assert.Equal(t, apperr.CodeBrowserNotReady, apperr.CodeOf(err))

	err = m.InstallUserScript(context.Background(), "cosmetic-filter-a", "")
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	err = m.RemoveUserScript(context.Background(), "cosmetic-filter-a")
	assert.Equal(t, apperr.CodeBrowserNotReady, apperr.CodeOf(err))

	_, err = m.NewPickerHost(context.Background())
	assert.Equal(t, apperr.CodeBrowserNotReady, apperr.CodeOf(err))
	assert.False(t, m.IsReady())
}
