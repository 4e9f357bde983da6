package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := ValidationError("room name is required")

	assert.Equal(t, TypeValidation, err.Type)
	assert.Nil(t, err.Cause)
	assert.NotNil(t, err.Context)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Equal(t, "validation: room name is required", err.Error())
}

func TestExternalError(t *testing.T) {
	cause := fmt.Errorf("egress stop timed out")
	err := ExternalError("provider unavailable", cause)

	assert.Equal(t, TypeExternal, err.Type)
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
	assert.Equal(t, "external: provider unavailable: egress stop timed out", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatusAllTypes(t *testing.T) {
	tests := []struct {
		errType  ErrorType
		expected int
	}{
		{TypeValidation, http.StatusBadRequest},
		{TypeUnauthorized, http.StatusUnauthorized},
		{TypeNotFound, http.StatusNotFound},
		{TypeConflict, http.StatusConflict},
		{TypeInternal, http.StatusInternalServerError},
		{TypeExternal, http.StatusBadGateway},
		{ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			err := &Error{Type: tt.errType}
			assert.Equal(t, tt.expected, err.HTTPStatus())
		})
	}
}

func TestWithContext(t *testing.T) {
	err := NotFoundError("session not found").
		WithContext("session_id", "abc").
		WithContext("room", "main-stage")

	assert.Equal(t, "abc", err.Context["session_id"])
	assert.Equal(t, "main-stage", err.Context["room"])
}

func TestWithContextNilMap(t *testing.T) {
	err := &Error{Type: TypeConflict, Message: "duplicate"}
	err.WithContext("ingress_id", "IN_1")
	assert.Equal(t, "IN_1", err.Context["ingress_id"])
}

func TestToResponse(t *testing.T) {
	resp := ConflictError("ingress already provisioned").WithContext("ingress_id", "IN_1").ToResponse()

	assert.Equal(t, "ingress already provisioned", resp.Error)
	assert.Equal(t, TypeConflict, resp.Type)
	assert.Equal(t, map[string]any{"ingress_id": "IN_1"}, resp.Context)
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("structured passes through", func(t *testing.T) {
		original := ValidationError("bad")
		assert.Same(t, original, AsStructuredError(original))
	})

	t.Run("wrapped structured is found", func(t *testing.T) {
		original := NotFoundError("missing")
		wrapped := fmt.Errorf("handler: %w", original)
		assert.Same(t, original, AsStructuredError(wrapped))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		cause := errors.New("connection reset")
		got := AsStructuredError(cause)
		require.NotNil(t, got)
		assert.Equal(t, TypeInternal, got.Type)
		assert.Equal(t, "internal server error", got.Message)
		assert.ErrorIs(t, got, cause)
	})
}
