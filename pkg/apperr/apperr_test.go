package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap("Save", CodeInternal, cause, nil)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "Save: boom", err.Error())

	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.NotNil(t, appErr.Metadata)
}

func TestCodeOfFindsWrappedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFoundError("Remove", errors.New("no rules")))

	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.True(t, Is(err, CodeNotFound))
	assert.False(t, Is(errors.New("plain"), CodeNotFound))
}

func TestWrapErrorWithReason(t *testing.T) {
	err := WrapErrorWithReason("Navigate", CodeBrowserNotReady, "browser_not_ready")

	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "browser_not_ready", appErr.Metadata[MetaReason])
	assert.Equal(t, "Navigate: browser_not_ready", err.Error())
}
