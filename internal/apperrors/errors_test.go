package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ClientMalformed("missing key").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFound("k").HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, BackendFailed("upsert", errors.New("boom")).HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, PoolExhausted(errors.New("timeout")).HTTPStatus())
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := BackendFailed("select", cause)
	assert.ErrorIs(t, err, cause)
}

func TestAsExtractsFromWrappedChain(t *testing.T) {
	cause := errors.New("boom")
	wrapped := BackendFailed("delete", cause)

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindBackendFailed, appErr.Kind)
}

func TestIsChecksKind(t *testing.T) {
	err := NotFound("missing-key")
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindClientMalformed))
	assert.False(t, Is(errors.New("plain error"), KindNotFound))
}
