package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceError_Classification(t *testing.T) {
	wrapped := fmt.Errorf("review: %w", NewValidationError("not pending", nil))

	assert.True(t, IsValidationError(wrapped))
	assert.False(t, IsNotFoundError(wrapped))
	assert.Equal(t, http.StatusBadRequest, GetServiceError(wrapped).GetStatusCode())

	assert.True(t, IsUnauthorizedError(NewUnauthorizedError("admins only")))
	assert.True(t, IsNotFoundError(EntityNotFoundError("badge", int64(3))))
}

func TestGetServiceError_WrapsPlainErrors(t *testing.T) {
	cause := errors.New("connection reset")
	svcErr := GetServiceError(cause)

	assert.Equal(t, ErrorTypeInternal, svcErr.Type)
	assert.ErrorIs(t, svcErr, cause)
	assert.Equal(t, http.StatusInternalServerError, svcErr.GetStatusCode())
}

func TestStoreError_KeepsCause(t *testing.T) {
	err := storeError("insert award", context.DeadlineExceeded)

	assert.True(t, IsInternalError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "insert award", err.Details["operation"])
}
