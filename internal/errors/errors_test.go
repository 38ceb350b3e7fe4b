package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeForbidden, "Requires Administrator")
		assert.Equal(t, "FORBIDDEN: Requires Administrator", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("missing access")
		err := Wrap(ErrCodeExternal, "External service error: discord", cause)
		assert.Contains(t, err.Error(), "EXTERNAL_SERVICE_ERROR")
		assert.Contains(t, err.Error(), "discord")
		assert.Contains(t, err.Error(), "missing access")
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"usage": "!close <userId>"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Forbidden", func() *AppError { return Forbidden("test") }, ErrCodeForbidden},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("userId", "not a snowflake") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("message") }, ErrCodeMissingRequired},
		{"ThreadDeleteFailed", func() *AppError { return ThreadDeleteFailed("t-1", cause) }, ErrCodeThreadDeleteFailed},
		{"DeliveryFailed", func() *AppError { return DeliveryFailed("user", cause) }, ErrCodeDeliveryFailed},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestDatabase(t *testing.T) {
	t.Run("wraps database error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.Equal(t, ErrCodeDatabase, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestExternal(t *testing.T) {
	t.Run("wraps external service error", func(t *testing.T) {
		cause := errors.New("timeout")
		err := External("discord", cause)
		assert.Equal(t, ErrCodeExternal, err.Code)
		assert.Contains(t, err.Message, "discord")
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError", func(t *testing.T) {
		original := New(ErrCodeDeliveryFailed, "Failed to deliver message to user")
		extracted, ok := AsAppError(original)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("extracts fmt-wrapped AppError", func(t *testing.T) {
		appErr := Forbidden("test")
		extracted, ok := AsAppError(fmt.Errorf("close ticket: %w", appErr))
		assert.True(t, ok)
		assert.Equal(t, appErr, extracted)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		err := errors.New("standard error")
		extracted, ok := AsAppError(err)
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for AppError", func(t *testing.T) {
		err := fmt.Errorf("relay: %w", DeliveryFailed("ticket thread", errors.New("503")))
		assert.Equal(t, ErrCodeDeliveryFailed, GetCode(err))
	})

	t.Run("returns ErrCodeInternal for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.Equal(t, ErrCodeInternal, GetCode(err))
	})
}

func TestMissingRequiredMessage(t *testing.T) {
	t.Run("formats field name correctly", func(t *testing.T) {
		err := MissingRequired("userId")
		assert.Equal(t, "userId is required", err.Message)
	})
}
