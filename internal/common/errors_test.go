package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name            string
		originalError   error
		message         string
		expectedMessage string
	}{
		{
			name:            "wrap simple error",
			originalError:   errors.New("original error"),
			message:         "wrapper message",
			expectedMessage: "wrapper message: original error",
		},
		{
			name:            "wrap nil error",
			originalError:   nil,
			message:         "wrapper message",
			expectedMessage: "wrapper message: <nil>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrappedError := WrapError(tt.originalError, tt.message)
			assert.Error(t, wrappedError)
			assert.Equal(t, tt.expectedMessage, wrappedError.Error())
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("include_patterns", "([", "invalid regular expression")

	assert.Equal(t, "validation failed for field 'include_patterns': invalid regular expression (value: ([)", err.Error())
	assert.True(t, IsValidation(err))
	assert.True(t, IsValidation(WrapError(err, "update scope")))
	assert.False(t, IsNotFound(err))

	var vErr *ValidationError
	require.True(t, errors.As(WrapError(err, "outer"), &vErr))
	assert.Equal(t, "include_patterns", vErr.Field)
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("script record", "42")

	assert.Equal(t, "script record '42' not found", err.Error())
	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(WrapError(err, "lookup"), ErrNotFound))
	assert.False(t, IsValidation(err))
}

func TestStorageError(t *testing.T) {
	inner := errors.New("disk full")
	err := NewStorageError("blob write", inner)

	assert.Equal(t, "storage error during blob write: disk full", err.Error())
	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, inner))
	assert.Equal(t, "storage error during index", NewStorageError("index", nil).Error())
}

func TestErrorCollector(t *testing.T) {
	var ec ErrorCollector
	assert.False(t, ec.HasErrors())
	assert.NoError(t, ec.Error())

	ec.Add(nil)
	ec.Add(errors.New("first"))
	assert.Equal(t, 1, ec.Count())
	assert.Equal(t, "first", ec.Error().Error())

	ec.AddWithContext(errors.New("second"), "record 7")
	assert.Equal(t, 2, ec.Count())
	assert.Equal(t, "multiple errors occurred: [first; record 7: second]", ec.Error().Error())
	assert.Len(t, ec.Errors(), 2)
}

func TestWaitWithCancellation(t *testing.T) {
	assert.NoError(t, WaitWithCancellation(context.Background(), time.Millisecond))
	assert.NoError(t, WaitWithCancellation(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitWithCancellation(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsContextError(err))
	assert.False(t, IsContextError(errors.New("other")))
}
