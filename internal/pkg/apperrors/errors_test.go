package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCustomErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("renaming: %w", NewValidationError("calculationName", "name is too long"))

	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Equal(t, "renaming: name is too long", err.Error())

	var ce *CustomError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "calculationName", ce.Details["field"])
}

func TestConstructors(t *testing.T) {
	assert.ErrorIs(t, NewConflictError("busy"), ErrConflict)
	assert.ErrorIs(t, NewForbiddenError("not yours"), ErrPermissionDenied)
	assert.ErrorIs(t, NewBadRequestError("bad"), ErrBadRequest)
	assert.Equal(t, "conflict", (&CustomError{Err: ErrConflict}).Error())
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("lookup: %w", ErrTokenRevoked)
	assert.True(t, Is(err, ErrTokenExpired, ErrTokenNotFound, ErrTokenRevoked))
	assert.False(t, Is(err, ErrTokenExpired, ErrTokenNotFound))
}
