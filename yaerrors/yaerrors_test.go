package yaerrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/stretchr/testify/assert"
)

var errStorage = errors.New("storage is down")

func TestFromString_CodeAndMessage(t *testing.T) {
	err := yaerrors.FromString(http.StatusNotFound, "scene is not registered")

	assert.Equal(t, http.StatusNotFound, err.Code())
	assert.Equal(t, "404 | scene is not registered", err.Error())
}

func TestFromError_KeepsCause(t *testing.T) {
	err := yaerrors.FromError(http.StatusInternalServerError, errStorage, "[MEMORY] failed to read")

	assert.Equal(t, "500 | [MEMORY] failed to read: storage is down", err.Error())
	assert.ErrorIs(t, err, errStorage)
}

func TestFromError_NilCauseFallsBackToMessage(t *testing.T) {
	err := yaerrors.FromError(http.StatusBadRequest, nil, "bad payload")

	assert.Equal(t, "400 | bad payload", err.Error())
}

func TestWrap_DoesNotMutateReceiver(t *testing.T) {
	base := yaerrors.FromString(http.StatusConflict, "router is already attached")

	wrapped := base.Wrap("failed to include router")

	assert.Equal(t, "409 | router is already attached", base.Error())
	assert.Equal(t, "409 | failed to include router -> router is already attached", wrapped.Error())
	assert.Equal(t, "failed to include router", wrapped.UnwrapLastError())
}

func TestAs_FindsErrorInChain(t *testing.T) {
	inner := yaerrors.FromString(http.StatusNotFound, "missing")
	outer := fmt.Errorf("handler: %w", inner)

	yaErr, ok := yaerrors.As(outer)

	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, yaErr.Code())
	assert.Equal(t, http.StatusNotFound, yaerrors.CodeOf(outer))
	assert.Equal(t, http.StatusInternalServerError, yaerrors.CodeOf(errStorage))
	assert.Equal(t, 0, yaerrors.CodeOf(nil))
}
