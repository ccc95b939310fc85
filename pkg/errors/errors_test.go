package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"validation", NewValidation("bad date", nil), ErrValidation},
		{"wrapped not found", fmt.Errorf("lookup: %w", NewNotFound("hold", nil)), ErrNotFound},
		{"expired", NewExpired("hold"), ErrExpired},
		{"conflict", NewConflict("slot is full", nil), ErrConflict},
		{"plain error", fmt.Errorf("boom"), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("service", nil)))
	assert.False(t, IsNotFound(nil))
	assert.True(t, IsExpired(NewExpired("hold")))
	assert.True(t, IsConflict(fmt.Errorf("confirm: %w", NewConflict("overlap", nil))))
	assert.True(t, IsInternal(NewInternal(fmt.Errorf("db down"))))
	assert.False(t, IsValidation(NewConflict("overlap", nil)))
}

func TestAppErrorMessage(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewInternal(cause)

	assert.Equal(t, "internal error: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "hold not found", NewNotFound("hold", nil).Error())
	assert.Equal(t, "conflict", ErrConflict.String())
}
