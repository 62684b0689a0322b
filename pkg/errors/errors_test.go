package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrTokenUnavailable, "item sku-42 is locked")
	assert.True(t, errors.Is(err, ErrTokenUnavailable))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, http.StatusLocked, err.Status)
	assert.Equal(t, "access token held by another operation", ErrTokenUnavailable.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
	assert.Nil(t, FromError(nil))
}
